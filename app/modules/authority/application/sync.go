package authorityservice

import (
	"context"
	"errors"

	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	"github.com/Black-And-White-Club/arena-sync/internal/clock"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
)

// SyncOnce re-broadcasts every player's stats and the clock. It does nothing off master or while
// a restore is in flight.
func (c *Coordinator) SyncOnce(ctx context.Context) error {
	if !c.deps.Relay.InRoom() || !c.deps.Relay.IsMaster() || c.Stabilizing() {
		return nil
	}
	var errs []error
	if err := c.deps.Stats.BroadcastAll(ctx); err != nil && !errors.Is(err, roomservice.ErrNotMaster) {
		errs = append(errs, err)
	}
	if err := c.deps.Clock.BroadcastState(ctx); err != nil && !errors.Is(err, roomservice.ErrNotMaster) {
		errs = append(errs, err)
	}
	c.Refresh()
	return errors.Join(errs...)
}

// RunSync calls SyncOnce every SyncInterval until ctx ends.
func (c *Coordinator) RunSync(ctx context.Context) error {
	for {
		if err := clock.Sleep(ctx, c.clk, c.cfg.SyncInterval); err != nil {
			return err
		}
		if err := c.SyncOnce(ctx); err != nil {
			c.tel.Logger.WarnContext(ctx, "Periodic sync failed", attr.Error(err))
		}
	}
}
