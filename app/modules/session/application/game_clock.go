package sessionservice

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	"github.com/Black-And-White-Club/arena-sync/internal/clock"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

const serviceName = "session"

// Relay is the slice of the relay the session needs.
type Relay interface {
	relay.RoomView
	relay.Messenger
}

// PropertyCommitter commits batches to the room property bag.
type PropertyCommitter interface {
	Commit(ctx context.Context, batch *roomservice.Batch) error
	Snapshot() roomservice.Snapshot
}

// ClockState is a point-in-time view of the game clock.
type ClockState struct {
	Remaining float64
	HasValue  bool
	Active    bool
	State     roomservice.GameState
	StartedAt time.Time
}

// GameClock counts the game down on the master and tracks the replicated value everywhere else.
type GameClock struct {
	relay   Relay
	store   PropertyCommitter
	clk     clock.Clock
	cfg     Config
	tel     observability.Telemetry
	metrics observability.GameMetrics

	mu        sync.Mutex
	suspended func() bool
	remaining float64
	hasValue  bool
	active    bool
	state     roomservice.GameState
	startedAt time.Time
}

// NewGameClock creates a waiting clock.
func NewGameClock(r Relay, store PropertyCommitter, clk clock.Clock, cfg Config, tel observability.Telemetry, metrics observability.GameMetrics) *GameClock {
	if clk == nil {
		clk = clock.Real{}
	}
	if metrics == nil {
		metrics = observability.NoOpMetrics{}
	}
	return &GameClock{
		relay:   r,
		store:   store,
		clk:     clk,
		cfg:     cfg,
		tel:     tel.WithDefaults(),
		metrics: metrics,
		state:   roomservice.StateWaiting,
	}
}

// SetSuspended installs a check that pauses the countdown while it reports true, used to hold
// the clock still while a new master restores its backup.
func (g *GameClock) SetSuspended(fn func() bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.suspended = fn
}

// State returns the current clock view.
func (g *GameClock) State() ClockState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ClockState{
		Remaining: g.remaining,
		HasValue:  g.hasValue,
		Active:    g.active,
		State:     g.state,
		StartedAt: g.startedAt,
	}
}

func (g *GameClock) requireMaster() error {
	if !g.relay.InRoom() {
		return roomservice.ErrNotInRoom
	}
	if !g.relay.IsMaster() {
		return roomservice.ErrNotMaster
	}
	return nil
}

// Start moves a waiting session into play. Master only.
func (g *GameClock) Start(ctx context.Context) error {
	return observability.Run(ctx, g.tel, serviceName, "start_game", func(ctx context.Context) error {
		if err := g.requireMaster(); err != nil {
			return err
		}
		g.mu.Lock()
		if g.state != roomservice.StateWaiting {
			g.mu.Unlock()
			return ErrAlreadyStarted
		}
		if !g.hasValue {
			g.remaining = g.cfg.Duration.Seconds()
			g.hasValue = true
		}
		g.state = roomservice.StateInProgress
		g.active = true
		g.startedAt = g.clk.Now()
		remaining := g.remaining
		g.mu.Unlock()

		if err := g.store.Commit(ctx, roomservice.NewBatch().
			GameState(roomservice.StateInProgress).
			GameTime(remaining).
			GameEnded(false)); err != nil {
			return err
		}
		return g.broadcast(ctx, remaining, true, true)
	})
}

// Tick advances the countdown by dt while the game is in progress. It reports whether the clock
// reached zero on this tick, in which case EndGame has been broadcast to every peer.
func (g *GameClock) Tick(ctx context.Context, dt time.Duration) (bool, error) {
	if !g.relay.IsMaster() {
		return false, nil
	}
	g.mu.Lock()
	suspended := g.suspended
	g.mu.Unlock()
	if suspended != nil && suspended() {
		return false, nil
	}
	g.mu.Lock()
	if !g.active || g.state != roomservice.StateInProgress || g.remaining <= 0 {
		g.mu.Unlock()
		return false, nil
	}
	g.remaining -= dt.Seconds()
	if g.remaining < 0 {
		g.remaining = 0
	}
	remaining := g.remaining
	g.mu.Unlock()

	g.metrics.SetGameTime(g.relay.RoomName(), remaining)
	if err := g.relay.RPC(ctx, relay.TargetOthers, 0, roomservice.MethodSyncTimer, roomservice.TimerArgs{GameTime: remaining}); err != nil {
		g.tel.Logger.WarnContext(ctx, "Failed to broadcast timer", attr.Error(err))
	}
	if err := g.store.Commit(ctx, roomservice.NewBatch().GameTime(remaining)); err != nil {
		g.tel.Logger.WarnContext(ctx, "Failed to commit game time", attr.Error(err))
	}
	if remaining > 0 {
		return false, nil
	}

	g.tel.Logger.InfoContext(ctx, "Game clock reached zero", attr.Room(g.relay.RoomName()))
	return true, g.relay.RPC(ctx, relay.TargetAll, 0, roomservice.MethodEndGame, struct{}{})
}

// Run ticks the clock until ctx ends or the clock reaches zero. Ticks are skipped while the local
// peer is not master.
func (g *GameClock) Run(ctx context.Context) error {
	tick := g.cfg.TickInterval
	if tick <= 0 {
		tick = time.Second
	}
	for {
		if err := clock.Sleep(ctx, g.clk, tick); err != nil {
			return err
		}
		ended, err := g.Tick(ctx, tick)
		if err != nil {
			g.tel.Logger.WarnContext(ctx, "Clock tick failed", attr.Error(err))
		}
		if ended {
			return nil
		}
	}
}

// ReceiveTimer applies a replicated timer value. Values above the local one are rejected unless
// the update is a reset. It reports whether the value was taken.
func (g *GameClock) ReceiveTimer(args roomservice.TimerArgs) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if args.GameTime < 0 {
		return false
	}
	if g.hasValue && !args.Reset && args.GameTime > g.remaining {
		return false
	}
	g.remaining = args.GameTime
	g.hasValue = true
	return true
}

// ReceiveGameState applies a replicated game-active flag.
func (g *GameClock) ReceiveGameState(active bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == roomservice.StateEnding {
		g.active = false
		return
	}
	g.active = active
	if active && g.state == roomservice.StateWaiting {
		g.state = roomservice.StateInProgress
		g.startedAt = g.clk.Now()
	}
}

// ResetGameTimer restarts the countdown at d. Master only.
func (g *GameClock) ResetGameTimer(ctx context.Context, d time.Duration) error {
	return observability.Run(ctx, g.tel, serviceName, "reset_game_timer", func(ctx context.Context) error {
		if d <= 0 {
			return ErrInvalidDuration
		}
		if err := g.requireMaster(); err != nil {
			return err
		}
		g.mu.Lock()
		if g.state == roomservice.StateEnding {
			g.mu.Unlock()
			return ErrGameEnded
		}
		g.remaining = d.Seconds()
		g.hasValue = true
		g.active = true
		if g.state == roomservice.StateWaiting {
			g.startedAt = g.clk.Now()
		}
		g.state = roomservice.StateInProgress
		remaining := g.remaining
		g.mu.Unlock()

		if err := g.store.Commit(ctx, roomservice.NewBatch().
			GameState(roomservice.StateInProgress).
			GameTime(remaining)); err != nil {
			return err
		}
		return g.broadcast(ctx, remaining, true, true)
	}, attribute.Float64("duration_seconds", d.Seconds()))
}

// SetGameActive pauses or resumes the countdown. Master only.
func (g *GameClock) SetGameActive(ctx context.Context, active bool) error {
	return observability.Run(ctx, g.tel, serviceName, "set_game_active", func(ctx context.Context) error {
		if err := g.requireMaster(); err != nil {
			return err
		}
		g.mu.Lock()
		if g.state == roomservice.StateEnding {
			g.mu.Unlock()
			return ErrGameEnded
		}
		g.active = active
		if active && g.state == roomservice.StateWaiting {
			g.state = roomservice.StateInProgress
			g.startedAt = g.clk.Now()
			if !g.hasValue {
				g.remaining = g.cfg.Duration.Seconds()
				g.hasValue = true
			}
		}
		state := g.state
		g.mu.Unlock()

		if err := g.store.Commit(ctx, roomservice.NewBatch().GameState(state)); err != nil {
			return err
		}
		return g.relay.RPC(ctx, relay.TargetOthers, 0, roomservice.MethodSyncGameState, roomservice.GameStateArgs{Active: active})
	}, attribute.Bool("active", active))
}

// Restore adopts a backed-up clock on a peer that just became master and re-broadcasts it. The
// clock never moves up: a local value below the backup is kept.
func (g *GameClock) Restore(ctx context.Context, remaining float64, active bool) error {
	g.mu.Lock()
	if g.state == roomservice.StateEnding {
		g.mu.Unlock()
		return ErrGameEnded
	}
	if !g.hasValue || remaining < g.remaining {
		g.remaining = remaining
	}
	g.hasValue = true
	g.active = active
	if active && g.state == roomservice.StateWaiting {
		g.state = roomservice.StateInProgress
		g.startedAt = g.clk.Now()
	}
	g.mu.Unlock()
	return g.BroadcastState(ctx)
}

// BroadcastState re-sends the clock and active flag to the other peers. Master only.
func (g *GameClock) BroadcastState(ctx context.Context) error {
	if err := g.requireMaster(); err != nil {
		return err
	}
	s := g.State()
	if !s.HasValue {
		return nil
	}
	return g.broadcast(ctx, s.Remaining, s.Active, false)
}

func (g *GameClock) broadcast(ctx context.Context, remaining float64, active, reset bool) error {
	if err := g.relay.RPC(ctx, relay.TargetOthers, 0, roomservice.MethodSyncTimer, roomservice.TimerArgs{GameTime: remaining, Reset: reset}); err != nil {
		return err
	}
	return g.relay.RPC(ctx, relay.TargetOthers, 0, roomservice.MethodSyncGameState, roomservice.GameStateArgs{Active: active})
}

// LoadFromProperties seeds the clock from the room bag after joining.
func (g *GameClock) LoadFromProperties(snap roomservice.Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if snap.HasGameTime && !g.hasValue {
		g.remaining = snap.GameTime
		g.hasValue = true
	}
	switch {
	case snap.GameEnded || snap.GameState == roomservice.StateEnding:
		g.state = roomservice.StateEnding
		g.active = false
	case snap.GameState == roomservice.StateInProgress:
		if g.state == roomservice.StateWaiting {
			g.startedAt = g.clk.Now()
		}
		g.state = roomservice.StateInProgress
		g.active = true
	}
}

// markEnding moves the clock into Ending. It reports false when the clock was already ending.
func (g *GameClock) markEnding() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == roomservice.StateEnding {
		return false
	}
	g.state = roomservice.StateEnding
	g.active = false
	g.remaining = 0
	g.hasValue = true
	return true
}

// Reset returns the clock to Waiting, used when the peer leaves its room.
func (g *GameClock) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.remaining = 0
	g.hasValue = false
	g.active = false
	g.state = roomservice.StateWaiting
	g.startedAt = time.Time{}
}
