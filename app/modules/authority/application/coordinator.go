package authorityservice

import (
	"context"
	"sync"

	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	sessionservice "github.com/Black-And-White-Club/arena-sync/app/modules/session/application"
	statsservice "github.com/Black-And-White-Club/arena-sync/app/modules/stats/application"
	"github.com/Black-And-White-Club/arena-sync/internal/clock"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

const serviceName = "authority"

// StatsKeeper is the ledger as seen by the coordinator.
type StatsKeeper interface {
	Backup() map[string]statsservice.Entry
	Restore(backup map[string]statsservice.Entry)
	BroadcastAll(ctx context.Context) error
}

// ClockKeeper is the game clock as seen by the coordinator.
type ClockKeeper interface {
	State() sessionservice.ClockState
	Restore(ctx context.Context, remaining float64, active bool) error
	BroadcastState(ctx context.Context) error
}

// BotKeeper is the bot population controller as seen by the coordinator.
type BotKeeper interface {
	Positions() map[relay.ActorID]relay.Vector3
	WriteOccupancy(ctx context.Context) error
	HandOff(ctx context.Context) error
}

// PropertyCommitter commits batches to the room property bag.
type PropertyCommitter interface {
	Commit(ctx context.Context, batch *roomservice.Batch) error
}

// MailboxFlusher delivers requests deferred while no master was known.
type MailboxFlusher interface {
	Flush(ctx context.Context)
}

// Deps are the collaborators of a Coordinator.
type Deps struct {
	Relay   relay.RoomView
	Stats   StatsKeeper
	Clock   ClockKeeper
	Bots    BotKeeper
	Store   PropertyCommitter
	Mailbox MailboxFlusher
}

// Coordinator is the single owner of master hand-off. It keeps a backup of the authoritative
// state, restores it when the local peer is promoted and drives the master's periodic re-broadcast.
type Coordinator struct {
	deps    Deps
	cfg     Config
	clk     clock.Clock
	tel     observability.Telemetry
	metrics observability.GameMetrics

	mu          sync.Mutex
	backup      Backup
	stabilizing bool
	cancel      context.CancelFunc
	generation  int
	restores    sync.WaitGroup
}

// NewCoordinator creates a coordinator.
func NewCoordinator(deps Deps, cfg Config, clk clock.Clock, tel observability.Telemetry, metrics observability.GameMetrics) *Coordinator {
	if clk == nil {
		clk = clock.Real{}
	}
	if metrics == nil {
		metrics = observability.NoOpMetrics{}
	}
	return &Coordinator{
		deps:    deps,
		cfg:     cfg,
		clk:     clk,
		tel:     tel.WithDefaults(),
		metrics: metrics,
	}
}

// Stabilizing reports whether a restore is in flight.
func (c *Coordinator) Stabilizing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stabilizing
}

// Backup returns a copy of the latest backup.
func (c *Coordinator) Backup() Backup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backup.clone()
}

// Refresh captures the current stats, clock and bot positions. Every peer refreshes from its
// replicated view so whichever peer is promoted has something to restore. Skipped while stabilizing.
func (c *Coordinator) Refresh() {
	if c.Stabilizing() {
		return
	}
	s := c.deps.Clock.State()
	b := Backup{
		Stats:        c.deps.Stats.Backup(),
		GameTime:     s.Remaining,
		HasGameTime:  s.HasValue,
		GameActive:   s.Active,
		BotPositions: c.deps.Bots.Positions(),
		TakenAt:      c.clk.Now(),
	}
	c.mu.Lock()
	c.backup = b
	c.mu.Unlock()
}

// OnMasterSwitched reacts to a new master. A promoted local peer restores the backup in the
// background; any other peer cancels a restore it may still be running.
func (c *Coordinator) OnMasterSwitched(ctx context.Context, newMaster relay.Player) {
	room := c.deps.Relay.RoomName()
	c.metrics.RecordMasterSwitch(room)
	c.tel.Logger.InfoContext(ctx, "Master client switched",
		attr.Room(room),
		attr.Int("new_master", newMaster.ActorNumber),
		attr.String("new_master_name", newMaster.Name),
	)

	if c.deps.Mailbox != nil {
		c.deps.Mailbox.Flush(ctx)
	}

	if newMaster.ActorNumber != c.deps.Relay.LocalPlayer().ActorNumber {
		c.Cancel()
		return
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	restoreCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.generation++
	gen := c.generation
	c.stabilizing = true
	c.mu.Unlock()

	c.restores.Add(1)
	go func() {
		defer c.restores.Done()
		defer cancel()
		if err := c.restore(restoreCtx); err != nil && restoreCtx.Err() == nil {
			c.tel.Logger.ErrorContext(restoreCtx, "Master state restore failed", attr.Error(err))
		}
		c.finishRestore(gen)
	}()
}

// finishRestore leaves stabilizing unless the restore was cancelled or superseded.
func (c *Coordinator) finishRestore(gen int) {
	c.mu.Lock()
	current := c.generation == gen
	if current {
		c.cancel = nil
		c.stabilizing = false
	}
	c.mu.Unlock()
	if current {
		c.Refresh()
	}
}

// Cancel aborts a running restore, used when the peer loses master or leaves the room.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation++
	c.stabilizing = false
}

// Wait blocks until running restores return.
func (c *Coordinator) Wait() {
	c.restores.Wait()
}

// Reset drops the backup, used when the peer leaves its room.
func (c *Coordinator) Reset() {
	c.Cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backup = Backup{}
}
