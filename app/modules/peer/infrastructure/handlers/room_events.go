package peerhandlers

import (
	"context"

	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	statsservice "github.com/Black-And-White-Club/arena-sync/app/modules/stats/application"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

func (h *PeerHandlers) HandleConnectedToMaster(ctx context.Context, _ relay.Event) error {
	return h.c.Connection.OnConnectedToMaster(ctx)
}

func (h *PeerHandlers) HandleDisconnected(ctx context.Context, e relay.Event) error {
	h.leaveRoom(ctx)
	h.c.Connection.HandleDisconnected(ctx, e.Cause)
	return nil
}

// HandleJoinedLobby joins the target room once the lobby is reached.
func (h *PeerHandlers) HandleJoinedLobby(ctx context.Context, _ relay.Event) error {
	h.c.Connection.OnJoinedLobby(ctx)
	if h.c.Lobby == nil {
		return nil
	}
	h.c.Lifecycle.Go("connection.join_room", func(ctx context.Context) error {
		return h.c.Connection.JoinRoom(ctx, h.c.Lobby.TargetRoom(ctx))
	})
	return nil
}

func (h *PeerHandlers) HandleRoomListUpdate(ctx context.Context, e relay.Event) error {
	h.logger.DebugContext(ctx, "Room list updated", attr.Int("rooms", len(e.Rooms)))
	return nil
}

// HandleJoinedRoom seeds the local components from the room and starts the room tasks.
func (h *PeerHandlers) HandleJoinedRoom(ctx context.Context, e relay.Event) error {
	name := h.c.Relay.RoomName()
	if e.Room != nil {
		name = e.Room.Name
	}
	h.c.Connection.OnJoinedRoom(ctx, name)

	snap := h.c.Store.Snapshot()
	h.c.Stats.LoadFromProperties(snap, h.c.Relay.LocalPlayer().Name)
	h.c.Clock.LoadFromProperties(snap)
	if e.Room != nil {
		for _, a := range e.Room.Actors {
			h.c.Bots.Track(a)
		}
	}
	h.c.Mailbox.Flush(ctx)
	h.c.Lifecycle.RoomEntered(ctx)
	h.c.Authority.Refresh()

	h.logger.InfoContext(ctx, "Joined room",
		attr.Room(name),
		attr.Bool("master", h.c.Relay.IsMaster()),
		attr.Int("players", len(h.c.Relay.Players())),
	)
	return nil
}

func (h *PeerHandlers) HandleJoinRoomFailed(ctx context.Context, e relay.Event) error {
	return h.c.Connection.OnJoinRoomFailed(ctx, e.Reason)
}

func (h *PeerHandlers) HandleLeftRoom(ctx context.Context, _ relay.Event) error {
	h.leaveRoom(ctx)
	h.c.Connection.OnLeftRoom(ctx)
	return nil
}

// leaveRoom stops room tasks and drops per-room state.
func (h *PeerHandlers) leaveRoom(ctx context.Context) {
	h.c.Lifecycle.RoomLeft(ctx)
	h.c.Authority.Reset()
	h.c.Mailbox.Clear()
	h.c.Bots.Reset()
	h.c.Stats.Reset()
	h.c.Clock.Reset()
	h.c.Feed.Clear()
}

// HandlePlayerEntered announces the player and, on the master, makes room and brings the
// newcomer up to date.
func (h *PeerHandlers) HandlePlayerEntered(ctx context.Context, e relay.Event) error {
	if e.Player == nil {
		return nil
	}
	h.c.Feed.Add(statsservice.PlayerJoinedLine(e.Player.Name))
	if !h.c.Relay.IsMaster() {
		return nil
	}
	h.c.Authority.Refresh()
	if err := h.c.Stats.BroadcastAll(ctx); err != nil {
		h.logger.WarnContext(ctx, "Failed to send stats to new player", attr.Error(err))
	}
	if err := h.c.Clock.BroadcastState(ctx); err != nil {
		h.logger.WarnContext(ctx, "Failed to send clock to new player", attr.Error(err))
	}
	h.c.Lifecycle.Go("bots.player_joined", h.c.Bots.OnPlayerJoined)
	return nil
}

func (h *PeerHandlers) HandlePlayerLeft(ctx context.Context, e relay.Event) error {
	if e.Player == nil {
		return nil
	}
	h.c.Feed.Add(statsservice.PlayerLeftLine(e.Player.Name))
	if !h.c.Relay.IsMaster() {
		return nil
	}
	h.c.Authority.Refresh()
	h.c.Lifecycle.Go("bots.player_left", h.c.Bots.OnPlayerLeft)
	return nil
}

func (h *PeerHandlers) HandleMasterSwitched(ctx context.Context, e relay.Event) error {
	if e.Player == nil {
		return nil
	}
	h.c.Authority.OnMasterSwitched(ctx, *e.Player)
	return nil
}

// HandlePropertiesUpdated ends the local session if the bag says the game is over and the
// EndGame call never arrived.
func (h *PeerHandlers) HandlePropertiesUpdated(ctx context.Context, e relay.Event) error {
	if _, ok := e.Changed[roomservice.KeyGameEnded]; !ok {
		return nil
	}
	if !h.c.Store.Snapshot().GameEnded {
		return nil
	}
	h.logger.InfoContext(ctx, "Room marked ended, finishing locally")
	return h.c.EndGame.HandleEndGame(ctx)
}

func (h *PeerHandlers) HandleActorChanged(_ context.Context, e relay.Event) error {
	if e.Actor != nil {
		h.c.Bots.Track(*e.Actor)
	}
	return nil
}

func (h *PeerHandlers) HandleActorDestroyed(_ context.Context, e relay.Event) error {
	if e.Actor != nil {
		h.c.Bots.Forget(e.Actor.ID)
	}
	return nil
}
