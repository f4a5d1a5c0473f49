package sessionservice

import (
	"context"
	"sync"

	backenddto "github.com/Black-And-White-Club/arena-sync/app/modules/backend/dto"
	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	statsservice "github.com/Black-And-White-Club/arena-sync/app/modules/stats/application"
	"github.com/Black-And-White-Club/arena-sync/internal/clock"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
)

// GameEndDisabler is implemented by anything that must stop affecting gameplay once the game ends.
type GameEndDisabler interface {
	DisableOnGameEnd(ctx context.Context)
}

// DisablerSource lists the local GameEndDisablers.
type DisablerSource interface {
	GameEndDisablers() []GameEndDisabler
}

// StatsSource exposes the ledger to the end-of-game sequence.
type StatsSource interface {
	Backup() map[string]statsservice.Entry
	PublishLocal(ctx context.Context) error
}

// Backend receives end-of-game submissions.
type Backend interface {
	AddLeaderboardEntry(ctx context.Context, entry backenddto.LeaderboardEntry) (backenddto.LeaderboardEntry, error)
	SubmitTrace(ctx context.Context, req backenddto.TraceRequest) (backenddto.TraceReceipt, error)
}

// Disconnector leaves the relay voluntarily.
type Disconnector interface {
	Disconnect(ctx context.Context) error
}

// ResultSink displays the final leaderboard.
type ResultSink interface {
	ShowLeaderboard(ctx context.Context, standings []Standing)
}

// Finisher runs the end-of-game sequence on every peer.
type Finisher struct {
	relay        Relay
	store        PropertyCommitter
	gameClock    *GameClock
	stats        StatsSource
	disablers    DisablerSource
	backend      Backend
	disconnector Disconnector
	sink         ResultSink
	clk          clock.Clock
	cfg          Config
	tel          observability.Telemetry

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	showing   bool
	standings []Standing
	receipt   backenddto.TraceReceipt
}

// FinisherDeps are the collaborators of a Finisher. Backend and Sink may be nil.
type FinisherDeps struct {
	Relay        Relay
	Store        PropertyCommitter
	Clock        *GameClock
	Stats        StatsSource
	Disablers    DisablerSource
	Backend      Backend
	Disconnector Disconnector
	Sink         ResultSink
}

// NewFinisher creates an idle Finisher.
func NewFinisher(deps FinisherDeps, clk clock.Clock, cfg Config, tel observability.Telemetry) *Finisher {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Finisher{
		relay:        deps.Relay,
		store:        deps.Store,
		gameClock:    deps.Clock,
		stats:        deps.Stats,
		disablers:    deps.Disablers,
		backend:      deps.Backend,
		disconnector: deps.Disconnector,
		sink:         deps.Sink,
		clk:          clk,
		cfg:          cfg,
		tel:          tel.WithDefaults(),
	}
}

// HandleEndGame ends the session locally. Repeated calls are ignored. The delayed part of the
// sequence runs in the background; Done reports when it finishes.
func (f *Finisher) HandleEndGame(ctx context.Context) error {
	if !f.gameClock.markEnding() {
		return nil
	}
	f.tel.Logger.InfoContext(ctx, "Game ended", attr.Room(f.relay.RoomName()), attr.Bool("master", f.relay.IsMaster()))

	if f.disablers != nil {
		for _, d := range f.disablers.GameEndDisablers() {
			d.DisableOnGameEnd(ctx)
		}
	}

	if f.relay.IsMaster() {
		if err := f.store.Commit(ctx, roomservice.NewBatch().
			GameEnded(true).
			GameState(roomservice.StateEnding).
			GameTime(0)); err != nil {
			f.tel.Logger.WarnContext(ctx, "Failed to mark game ended", attr.Error(err))
		}
	}
	if err := f.stats.PublishLocal(ctx); err != nil {
		f.tel.Logger.WarnContext(ctx, "Final stats flush failed", attr.Error(err))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	f.mu.Lock()
	f.cancel = cancel
	f.done = done
	f.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		f.finish(runCtx)
	}()
	return nil
}

func (f *Finisher) finish(ctx context.Context) {
	master := f.relay.IsMaster()
	delay := f.cfg.FlushDelay
	if master {
		delay += f.cfg.MasterFlushExtra
	}
	if err := clock.Sleep(ctx, f.clk, delay); err != nil {
		return
	}

	standings := Rank(f.store.Snapshot())
	f.mu.Lock()
	f.showing = true
	f.standings = standings
	f.mu.Unlock()
	if f.sink != nil {
		f.sink.ShowLeaderboard(ctx, standings)
	}

	f.submitEntry(ctx, standings)
	if f.relay.IsMaster() {
		f.archiveTrace(ctx)
	}

	grace := f.cfg.DisconnectGrace
	if !f.relay.IsMaster() {
		grace += f.cfg.NonMasterGraceExtra
	}
	if err := clock.Sleep(ctx, f.clk, grace); err != nil {
		return
	}
	if f.disconnector != nil {
		if err := f.disconnector.Disconnect(ctx); err != nil {
			f.tel.Logger.WarnContext(ctx, "End-of-game disconnect failed", attr.Error(err))
		}
	}
	f.mu.Lock()
	f.showing = false
	f.mu.Unlock()
}

func (f *Finisher) submitEntry(ctx context.Context, standings []Standing) {
	if f.backend == nil {
		return
	}
	local := f.relay.LocalPlayer()
	for _, s := range standings {
		if s.Name != local.Name {
			continue
		}
		if _, err := f.backend.AddLeaderboardEntry(ctx, backenddto.LeaderboardEntry{
			WalletAddress: local.UserID,
			Kills:         s.Kills,
			Score:         s.Score,
			RoomID:        f.relay.RoomName(),
			Username:      local.Name,
		}); err != nil {
			f.tel.Logger.WarnContext(ctx, "Leaderboard submission failed", attr.Error(err))
		}
		return
	}
}

func (f *Finisher) archiveTrace(ctx context.Context) {
	now := f.clk.Now()
	trace := BuildTrace(f.relay.RoomName(), f.relay.Players(), f.stats.Backup(), f.gameClock.State().StartedAt, now)

	if f.cfg.TraceDir != "" {
		path, err := SaveTrace(f.cfg.TraceDir, trace, now)
		if err != nil {
			f.tel.Logger.WarnContext(ctx, "Failed to save trace", attr.Error(err))
		} else {
			f.tel.Logger.InfoContext(ctx, "Trace saved", attr.String("path", path))
		}
	}
	if f.backend == nil {
		return
	}

	receipt, err := f.backend.SubmitTrace(ctx, trace)
	if err != nil {
		f.tel.Logger.WarnContext(ctx, "Trace submission failed", attr.Error(err))
		return
	}
	f.mu.Lock()
	f.receipt = receipt
	f.mu.Unlock()
	if err := f.store.Commit(ctx, roomservice.NewBatch().
		Set(roomservice.KeyTraceDigest, receipt.Digest).
		Set(roomservice.KeyTraceURL, receipt.URL)); err != nil {
		f.tel.Logger.WarnContext(ctx, "Failed to store trace receipt", attr.Error(err))
	}
}

// LeaderboardShowing reports whether the final leaderboard is on screen.
func (f *Finisher) LeaderboardShowing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.showing
}

// Standings returns the last computed leaderboard.
func (f *Finisher) Standings() []Standing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Standing(nil), f.standings...)
}

// Receipt returns the trace receipt stored by the master, if any.
func (f *Finisher) Receipt() backenddto.TraceReceipt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receipt
}

// Done is closed when the background sequence finishes. It is nil before the game ends.
func (f *Finisher) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Cancel stops a running sequence.
func (f *Finisher) Cancel() {
	f.mu.Lock()
	cancel := f.cancel
	f.showing = false
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
