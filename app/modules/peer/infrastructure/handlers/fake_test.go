package peerhandlers

import (
	"context"
	"fmt"
	"sync"

	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	statsservice "github.com/Black-And-White-Club/arena-sync/app/modules/stats/application"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

// recorder is a shared, ordered call trace across every fake.
type recorder struct {
	mu    sync.Mutex
	trace []string
}

func (r *recorder) record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace = append(r.trace, fmt.Sprintf(format, args...))
}

func (r *recorder) Trace() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.trace...)
}

// FakeConnection implements ConnectionService.
type FakeConnection struct {
	*recorder
	JoinFailedErr error
}

func (f *FakeConnection) OnConnectedToMaster(context.Context) error {
	f.record("conn.connected")
	return nil
}

func (f *FakeConnection) HandleDisconnected(_ context.Context, cause relay.DisconnectCause) {
	f.record("conn.disconnected:%s", cause)
}

func (f *FakeConnection) OnJoinedLobby(context.Context) { f.record("conn.lobby") }

func (f *FakeConnection) JoinRoom(_ context.Context, name string) error {
	f.record("conn.join_room:%s", name)
	return nil
}

func (f *FakeConnection) OnJoinedRoom(_ context.Context, name string) {
	f.record("conn.joined:%s", name)
}

func (f *FakeConnection) OnJoinRoomFailed(_ context.Context, reason string) error {
	f.record("conn.join_failed:%s", reason)
	return f.JoinFailedErr
}

func (f *FakeConnection) OnLeftRoom(context.Context) { f.record("conn.left") }

// FakeLobby implements RoomPicker.
type FakeLobby struct {
	*recorder
	Room string
}

func (f *FakeLobby) TargetRoom(context.Context) string {
	f.record("lobby.target")
	return f.Room
}

// FakeAuthority implements AuthorityService.
type FakeAuthority struct{ *recorder }

func (f *FakeAuthority) OnMasterSwitched(_ context.Context, p relay.Player) {
	f.record("authority.master:%d", p.ActorNumber)
}
func (f *FakeAuthority) Refresh() { f.record("authority.refresh") }
func (f *FakeAuthority) Reset()   { f.record("authority.reset") }

// FakeBots implements BotService.
type FakeBots struct {
	*recorder
	DamageErr error
}

func (f *FakeBots) Track(a relay.Actor)     { f.record("bots.track:%d", a.ID) }
func (f *FakeBots) Forget(id relay.ActorID) { f.record("bots.forget:%d", id) }
func (f *FakeBots) Reset()                  { f.record("bots.reset") }
func (f *FakeBots) OnPlayerJoined(context.Context) error {
	f.record("bots.player_joined")
	return nil
}
func (f *FakeBots) OnPlayerLeft(context.Context) error {
	f.record("bots.player_left")
	return nil
}
func (f *FakeBots) HandleInitialize(id relay.ActorID, args roomservice.InitializeBotArgs) {
	f.record("bots.init:%d:%s", id, args.Name)
}
func (f *FakeBots) HandleRespawnRequest(_ context.Context, args roomservice.BotArgs) error {
	f.record("bots.respawn:%d", args.BotID)
	return nil
}
func (f *FakeBots) TakeDamage(_ context.Context, args roomservice.BotDamageArgs) error {
	f.record("bots.damage:%d:%d", args.BotID, args.Amount)
	return f.DamageErr
}
func (f *FakeBots) HandleDeath(_ context.Context, args roomservice.BotDeathArgs) bool {
	f.record("bots.death:%d:%s", args.BotID, args.Killer)
	return true
}

// FakeStats implements StatsService.
type FakeStats struct{ *recorder }

func (f *FakeStats) RecordKill(_ context.Context, killer string) (statsservice.Entry, error) {
	f.record("stats.kill:%s", killer)
	return statsservice.Entry{}, nil
}
func (f *FakeStats) RecordBotKill(_ context.Context, killer string, botID relay.ActorID, botName string) (statsservice.Entry, bool, error) {
	f.record("stats.bot_kill:%s:%d:%s", killer, botID, botName)
	return statsservice.Entry{}, true, nil
}
func (f *FakeStats) Sync(_ context.Context, name string, score, kills int, origin int) error {
	f.record("stats.sync:%s:%d:%d:%d", name, score, kills, origin)
	return nil
}
func (f *FakeStats) ApplyRequest(_ context.Context, req roomservice.StatsArgs) error {
	f.record("stats.request:%s:%d:%d", req.Name, req.Score, req.Kills)
	return nil
}
func (f *FakeStats) ResetStreak(name string) { f.record("stats.reset_streak:%s", name) }
func (f *FakeStats) BroadcastAll(context.Context) error {
	f.record("stats.broadcast")
	return nil
}
func (f *FakeStats) LoadFromProperties(_ roomservice.Snapshot, local string) {
	f.record("stats.load:%s", local)
}
func (f *FakeStats) Reset() { f.record("stats.reset") }

// FakeFeed implements FeedService.
type FakeFeed struct{ *recorder }

func (f *FakeFeed) Add(text string) { f.record("feed:%s", text) }
func (f *FakeFeed) Clear()          { f.record("feed.clear") }

// FakeClock implements ClockService.
type FakeClock struct {
	*recorder
	Accept bool
}

func (f *FakeClock) ReceiveTimer(args roomservice.TimerArgs) bool {
	f.record("clock.timer:%g", args.GameTime)
	return f.Accept
}
func (f *FakeClock) ReceiveGameState(active bool) { f.record("clock.active:%t", active) }
func (f *FakeClock) BroadcastState(context.Context) error {
	f.record("clock.broadcast")
	return nil
}
func (f *FakeClock) LoadFromProperties(roomservice.Snapshot) { f.record("clock.load") }
func (f *FakeClock) Reset()                                  { f.record("clock.reset") }

// FakeEndGame implements EndGameService.
type FakeEndGame struct{ *recorder }

func (f *FakeEndGame) HandleEndGame(context.Context) error {
	f.record("end_game")
	return nil
}

// FakeStore implements RoomStore.
type FakeStore struct{ Snap roomservice.Snapshot }

func (f *FakeStore) Snapshot() roomservice.Snapshot { return f.Snap }

// FakeMailbox implements MailboxService.
type FakeMailbox struct{ *recorder }

func (f *FakeMailbox) Flush(context.Context) { f.record("mailbox.flush") }
func (f *FakeMailbox) Clear()                { f.record("mailbox.clear") }

// FakeLifecycle implements Lifecycle. Go runs fn inline.
type FakeLifecycle struct{ *recorder }

func (f *FakeLifecycle) RoomEntered(context.Context) { f.record("room.entered") }
func (f *FakeLifecycle) RoomLeft(context.Context)    { f.record("room.left") }
func (f *FakeLifecycle) Go(name string, fn func(ctx context.Context) error) {
	f.record("go:%s", name)
	_ = fn(context.Background())
}

var (
	_ ConnectionService = (*FakeConnection)(nil)
	_ RoomPicker        = (*FakeLobby)(nil)
	_ AuthorityService  = (*FakeAuthority)(nil)
	_ BotService        = (*FakeBots)(nil)
	_ StatsService      = (*FakeStats)(nil)
	_ FeedService       = (*FakeFeed)(nil)
	_ ClockService      = (*FakeClock)(nil)
	_ EndGameService    = (*FakeEndGame)(nil)
	_ RoomStore         = (*FakeStore)(nil)
	_ MailboxService    = (*FakeMailbox)(nil)
	_ Lifecycle         = (*FakeLifecycle)(nil)
)
