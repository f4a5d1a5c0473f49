package peerhandlers

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	statsservice "github.com/Black-And-White-Club/arena-sync/app/modules/stats/application"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

// Handlers consumes the peer's relay event topic.
type Handlers interface {
	HandleEvent(msg *message.Message) error
	Dispatch(ctx context.Context, e relay.Event) error
	Keys() []string
}

// ConnectionService is the connection supervisor's event surface.
type ConnectionService interface {
	OnConnectedToMaster(ctx context.Context) error
	HandleDisconnected(ctx context.Context, cause relay.DisconnectCause)
	OnJoinedLobby(ctx context.Context)
	JoinRoom(ctx context.Context, name string) error
	OnJoinedRoom(ctx context.Context, name string)
	OnJoinRoomFailed(ctx context.Context, reason string) error
	OnLeftRoom(ctx context.Context)
}

// RoomPicker names the room to join from the lobby.
type RoomPicker interface {
	TargetRoom(ctx context.Context) string
}

// AuthorityService is the authority coordinator's event surface.
type AuthorityService interface {
	OnMasterSwitched(ctx context.Context, newMaster relay.Player)
	Refresh()
	Reset()
}

// BotService is the bot controller's event surface.
type BotService interface {
	Track(a relay.Actor)
	Forget(id relay.ActorID)
	OnPlayerJoined(ctx context.Context) error
	OnPlayerLeft(ctx context.Context) error
	HandleInitialize(id relay.ActorID, args roomservice.InitializeBotArgs)
	HandleRespawnRequest(ctx context.Context, args roomservice.BotArgs) error
	TakeDamage(ctx context.Context, args roomservice.BotDamageArgs) error
	HandleDeath(ctx context.Context, args roomservice.BotDeathArgs) bool
	Reset()
}

// StatsService is the stats ledger's event surface.
type StatsService interface {
	RecordKill(ctx context.Context, killer string) (statsservice.Entry, error)
	RecordBotKill(ctx context.Context, killer string, botID relay.ActorID, botName string) (statsservice.Entry, bool, error)
	Sync(ctx context.Context, name string, score, kills int, origin int) error
	ApplyRequest(ctx context.Context, req roomservice.StatsArgs) error
	ResetStreak(name string)
	BroadcastAll(ctx context.Context) error
	LoadFromProperties(snap roomservice.Snapshot, local string)
	Reset()
}

// FeedService is the local kill feed.
type FeedService interface {
	Add(text string)
	Clear()
}

// ClockService is the game clock's event surface.
type ClockService interface {
	ReceiveTimer(args roomservice.TimerArgs) bool
	ReceiveGameState(active bool)
	BroadcastState(ctx context.Context) error
	LoadFromProperties(snap roomservice.Snapshot)
	Reset()
}

// EndGameService runs the end-of-game sequence.
type EndGameService interface {
	HandleEndGame(ctx context.Context) error
}

// RoomStore reads the property bag.
type RoomStore interface {
	Snapshot() roomservice.Snapshot
}

// MailboxService delivers and drops deferred master requests.
type MailboxService interface {
	Flush(ctx context.Context)
	Clear()
}

// Lifecycle owns the tasks that live as long as the peer is in a room.
type Lifecycle interface {
	// RoomEntered starts the room tasks; the master also seeds and starts the game.
	RoomEntered(ctx context.Context)
	// RoomLeft stops the room tasks.
	RoomLeft(ctx context.Context)
	// Go runs fn in the background under the room's context, or the peer's outside a room.
	Go(name string, fn func(ctx context.Context) error)
}
