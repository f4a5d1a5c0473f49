package peer

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	peerhandlers "github.com/Black-And-White-Club/arena-sync/app/modules/peer/infrastructure/handlers"
	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	sessionservice "github.com/Black-And-White-Club/arena-sync/app/modules/session/application"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
)

// roomTasks owns the goroutines that live while the peer is in a room: the clock, bot
// maintenance and the periodic authority sync, plus one-off background work.
type roomTasks struct {
	m *Module

	mu     sync.Mutex
	base   context.Context
	room   context.Context
	cancel context.CancelFunc
	loops  *errgroup.Group
	work   sync.WaitGroup
}

var _ peerhandlers.Lifecycle = (*roomTasks)(nil)

func newRoomTasks(m *Module) *roomTasks {
	return &roomTasks{m: m, base: context.Background()}
}

// bind sets the peer context that room contexts derive from.
func (t *roomTasks) bind(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.base = ctx
}

func (t *roomTasks) RoomEntered(ctx context.Context) {
	t.RoomLeft(ctx)

	t.mu.Lock()
	roomCtx, cancel := context.WithCancel(t.base)
	g := &errgroup.Group{}
	t.room, t.cancel, t.loops = roomCtx, cancel, g
	t.mu.Unlock()

	m := t.m
	m.Avatar.Reset()
	m.brains.Reset()
	g.Go(func() error { return quiet(m.Clock.Run(roomCtx)) })
	g.Go(func() error { return quiet(m.Bots.RunMaintenance(roomCtx)) })
	g.Go(func() error { return quiet(m.Coordinator.RunSync(roomCtx)) })

	if m.Client.IsMaster() {
		t.Go("room.start_game", t.startGame)
	}
}

// startGame seeds a room that was created without properties and starts a waiting game.
func (t *roomTasks) startGame(ctx context.Context) error {
	m := t.m
	props, err := roomservice.InitialProperties(m.cfg.Session.Duration, m.clk.Now())
	if err != nil {
		return err
	}
	if err := m.Store.InitializeIfMissing(ctx, props); err != nil {
		return err
	}
	if m.Clock.State().State != roomservice.StateWaiting {
		return nil
	}
	if err := m.Clock.Start(ctx); err != nil && !errors.Is(err, sessionservice.ErrAlreadyStarted) {
		return err
	}
	return nil
}

func (t *roomTasks) RoomLeft(ctx context.Context) {
	t.mu.Lock()
	cancel, g := t.cancel, t.loops
	t.room, t.cancel, t.loops = nil, nil, nil
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if err := g.Wait(); err != nil {
		t.m.logger.WarnContext(ctx, "Room task failed", attr.Error(err))
	}
}

func (t *roomTasks) Go(name string, fn func(ctx context.Context) error) {
	t.mu.Lock()
	ctx := t.base
	if t.room != nil {
		ctx = t.room
	}
	t.mu.Unlock()

	t.work.Add(1)
	go func() {
		defer t.work.Done()
		start := time.Now()
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.m.logger.WarnContext(ctx, "Background task failed",
				attr.String("task", name),
				attr.Duration("elapsed", time.Since(start)),
				attr.Error(err),
			)
		}
	}()
}

// wait blocks until background work started with Go has finished.
func (t *roomTasks) wait() {
	t.work.Wait()
}

func quiet(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
