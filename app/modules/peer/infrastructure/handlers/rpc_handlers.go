package peerhandlers

import (
	"context"

	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

func (h *PeerHandlers) HandleUpdatePlayerStats(ctx context.Context, call *relay.RPC, args roomservice.StatsArgs) error {
	if err := h.c.Stats.Sync(ctx, args.Name, args.Score, args.Kills, call.Sender); err != nil {
		return err
	}
	h.c.Authority.Refresh()
	return nil
}

func (h *PeerHandlers) HandleRequestStatsUpdate(ctx context.Context, _ *relay.RPC, args roomservice.StatsArgs) error {
	return h.c.Stats.ApplyRequest(ctx, args)
}

func (h *PeerHandlers) HandleAddKill(ctx context.Context, _ *relay.RPC, args roomservice.KillArgs) error {
	_, err := h.c.Stats.RecordKill(ctx, args.Killer)
	return err
}

func (h *PeerHandlers) HandleAddBotKill(ctx context.Context, _ *relay.RPC, args roomservice.BotKillArgs) error {
	_, _, err := h.c.Stats.RecordBotKill(ctx, args.Killer, args.BotID, args.BotName)
	return err
}

func (h *PeerHandlers) HandleResetKillStreak(_ context.Context, _ *relay.RPC, args roomservice.PlayerArgs) error {
	h.c.Stats.ResetStreak(args.Name)
	return nil
}

func (h *PeerHandlers) HandleAddMessage(_ context.Context, _ *relay.RPC, args roomservice.MessageArgs) error {
	h.c.Feed.Add(args.Text)
	return nil
}

func (h *PeerHandlers) HandleSyncTimer(_ context.Context, _ *relay.RPC, args roomservice.TimerArgs) error {
	if h.c.Clock.ReceiveTimer(args) {
		h.c.Authority.Refresh()
	}
	return nil
}

func (h *PeerHandlers) HandleSyncGameState(_ context.Context, _ *relay.RPC, args roomservice.GameStateArgs) error {
	h.c.Clock.ReceiveGameState(args.Active)
	return nil
}

func (h *PeerHandlers) HandleEndGame(ctx context.Context, _ relay.Event) error {
	return h.c.EndGame.HandleEndGame(ctx)
}

func (h *PeerHandlers) HandleInitializeBot(_ context.Context, call *relay.RPC, args roomservice.InitializeBotArgs) error {
	h.c.Bots.HandleInitialize(call.ActorID, args)
	return nil
}

func (h *PeerHandlers) HandleRequestBotRespawn(_ context.Context, _ *relay.RPC, args roomservice.BotArgs) error {
	h.c.Lifecycle.Go("bots.respawn", func(ctx context.Context) error {
		return h.c.Bots.HandleRespawnRequest(ctx, args)
	})
	return nil
}

func (h *PeerHandlers) HandleBotDamage(ctx context.Context, _ *relay.RPC, args roomservice.BotDamageArgs) error {
	return h.c.Bots.TakeDamage(ctx, args)
}

func (h *PeerHandlers) HandleProcessBotDeath(ctx context.Context, _ *relay.RPC, args roomservice.BotDeathArgs) error {
	h.c.Bots.HandleDeath(ctx, args)
	return nil
}
