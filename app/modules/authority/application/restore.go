package authorityservice

import (
	"context"
	"fmt"

	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	"github.com/Black-And-White-Club/arena-sync/internal/clock"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
)

// restore re-establishes the backed-up state after the settle delay. Every step checks that the
// local peer is still master; ctx is cancelled when it is not.
func (c *Coordinator) restore(ctx context.Context) error {
	if err := clock.Sleep(ctx, c.clk, c.cfg.SettleDelay); err != nil {
		return err
	}
	return observability.Run(ctx, c.tel, serviceName, "restore_master_state", func(ctx context.Context) error {
		if err := c.stillMaster(ctx); err != nil {
			return err
		}
		b := c.Backup()

		if b.Restorable() {
			if err := c.deps.Clock.Restore(ctx, b.GameTime, b.GameActive); err != nil {
				return fmt.Errorf("restore clock: %w", err)
			}
			c.tel.Logger.InfoContext(ctx, "Restored game clock",
				attr.Float64("game_time", b.GameTime),
				attr.Bool("active", b.GameActive),
			)
		} else {
			c.tel.Logger.InfoContext(ctx, "No running game in backup, keeping room clock")
			if err := c.deps.Clock.BroadcastState(ctx); err != nil {
				c.tel.Logger.WarnContext(ctx, "Failed to broadcast clock", attr.Error(err))
			}
		}
		if err := c.commitClock(ctx); err != nil {
			c.tel.Logger.WarnContext(ctx, "Failed to commit clock", attr.Error(err))
		}

		if err := c.stillMaster(ctx); err != nil {
			return err
		}
		if len(b.Stats) > 0 {
			c.deps.Stats.Restore(b.Stats)
		}
		if err := c.deps.Stats.BroadcastAll(ctx); err != nil {
			return fmt.Errorf("broadcast stats: %w", err)
		}

		if err := c.stillMaster(ctx); err != nil {
			return err
		}
		if err := c.deps.Bots.WriteOccupancy(ctx); err != nil {
			c.tel.Logger.WarnContext(ctx, "Failed to write occupancy", attr.Error(err))
		}
		if err := c.deps.Bots.HandOff(ctx); err != nil {
			return fmt.Errorf("bot hand-off: %w", err)
		}
		c.tel.Logger.InfoContext(ctx, "Master state restore completed",
			attr.Int("players", len(b.Stats)),
			attr.Int("bots", len(b.BotPositions)),
		)
		return nil
	})
}

func (c *Coordinator) stillMaster(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.deps.Relay.InRoom() || !c.deps.Relay.IsMaster() {
		return roomservice.ErrNotMaster
	}
	return nil
}

// commitClock writes the current game phase and time to the room bag.
func (c *Coordinator) commitClock(ctx context.Context) error {
	if c.deps.Store == nil {
		return nil
	}
	s := c.deps.Clock.State()
	batch := roomservice.NewBatch().GameState(s.State)
	if s.HasValue {
		batch.GameTime(s.Remaining)
	}
	return c.deps.Store.Commit(ctx, batch)
}
