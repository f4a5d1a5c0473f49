package peer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	authorityservice "github.com/Black-And-White-Club/arena-sync/app/modules/authority/application"
	backenddto "github.com/Black-And-White-Club/arena-sync/app/modules/backend/dto"
	botservice "github.com/Black-And-White-Club/arena-sync/app/modules/bots/application"
	connectionservice "github.com/Black-And-White-Club/arena-sync/app/modules/connection/application"
	peerhandlers "github.com/Black-And-White-Club/arena-sync/app/modules/peer/infrastructure/handlers"
	peerrouter "github.com/Black-And-White-Club/arena-sync/app/modules/peer/infrastructure/router"
	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	sessionservice "github.com/Black-And-White-Club/arena-sync/app/modules/session/application"
	statsservice "github.com/Black-And-White-Club/arena-sync/app/modules/stats/application"
	"github.com/Black-And-White-Club/arena-sync/internal/clock"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

// Backend is the arena backend as seen by a peer. Implementations degrade to defaults instead of
// failing, so a peer never blocks on it.
type Backend interface {
	sessionservice.Backend
	LookupUser(ctx context.Context, wallet string) (backenddto.UserProfile, error)
}

// Dialer creates the peer's relay client. The client publishes its events on topic.
type Dialer func(publisher message.Publisher, topic string) (relay.Client, error)

// Module is one headless peer: the relay client, the event router and every component.
type Module struct {
	cfg     Config
	obs     *observability.Observability
	logger  *slog.Logger
	clk     clock.Clock
	backend Backend

	PubSub *gochannel.GoChannel
	Client relay.Client
	Router *peerrouter.PeerRouter

	Store       *roomservice.PropertyStore
	Actors      *roomservice.ActorRegistry
	Mailbox     *roomservice.MasterMailbox
	Feed        *statsservice.Feed
	Ledger      *statsservice.Ledger
	Clock       *sessionservice.GameClock
	Finisher    *sessionservice.Finisher
	Bots        *botservice.Controller
	Coordinator *authorityservice.Coordinator
	Supervisor  *connectionservice.Supervisor
	Avatar      *Avatar
	Console     *Console

	handlers *peerhandlers.PeerHandlers
	tasks    *roomTasks
	brains   *brains

	mu         sync.Mutex
	started    bool
	cancelFunc context.CancelFunc
	routerDone chan struct{}
}

// NewPeerModule wires a peer. backend may be nil; clk defaults to the wall clock.
func NewPeerModule(ctx context.Context, cfg Config, obs *observability.Observability, dial Dialer, backend Backend, clk clock.Clock) (*Module, error) {
	if obs == nil {
		obs = observability.NewNop()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if cfg.Wallet == "" {
		cfg.Wallet = DefaultWallet
	}
	logger := obs.Logger.With(attr.String("peer", cfg.DisplayName))
	logger.InfoContext(ctx, "peer.NewPeerModule called", attr.String("topic", cfg.Topic))

	wmLogger := watermill.NewSlogLogger(logger)
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            64,
		BlockPublishUntilSubscriberAck: true,
	}, wmLogger)

	client, err := dial(pubsub, cfg.Topic)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 5 * time.Second}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer router: %w", err)
	}

	tel := observability.Telemetry{Logger: logger, Tracer: obs.Tracer, Metrics: obs.Metrics}
	m := &Module{
		cfg:     cfg,
		obs:     obs,
		logger:  logger,
		clk:     clk,
		backend: backend,
		PubSub:  pubsub,
		Client:  client,
		Router:  peerrouter.NewPeerRouter(logger, router, pubsub, cfg.Topic, obs.Tracer, obs.Registry),
		Console: NewConsole(logger),
		brains:  newBrains(),
	}
	m.tasks = newRoomTasks(m)

	m.Store = roomservice.NewPropertyStore(client, tel)
	m.Actors = roomservice.NewActorRegistry(client, tel)
	m.Mailbox = roomservice.NewMasterMailbox(client, logger)
	m.Feed = statsservice.NewFeed(client, logger)
	m.Feed.Subscribe(m.Console.FeedLine)
	m.Ledger = statsservice.NewLedger(client, m.Store, m.Mailbox, m.Feed, tel, obs.Metrics)
	m.Clock = sessionservice.NewGameClock(client, m.Store, clk, cfg.Session, tel, obs.Metrics)

	m.Bots = botservice.NewController(botservice.Deps{
		Relay:      client,
		Actors:     m.Actors,
		Store:      m.Store,
		Mailbox:    m.Mailbox,
		Announcer:  m.Feed,
		Kills:      m.Ledger,
		Disabler:   m.brains,
		Nav:        botservice.DefaultSurface,
		GameActive: func() bool { return m.Clock.State().Active },
		Suspended:  func() bool { return m.Coordinator.Stabilizing() },
	}, cfg.Bots, clk, tel, obs.Metrics)

	m.Coordinator = authorityservice.NewCoordinator(authorityservice.Deps{
		Relay:   client,
		Stats:   m.Ledger,
		Clock:   m.Clock,
		Bots:    m.Bots,
		Store:   m.Store,
		Mailbox: m.Mailbox,
	}, cfg.Authority, clk, tel, obs.Metrics)
	m.Clock.SetSuspended(m.Coordinator.Stabilizing)

	m.Avatar = NewAvatar(cfg.DisplayName, m.Bots, m.Ledger, logger)

	m.Supervisor = connectionservice.NewSupervisor(connectionservice.Deps{
		Relay:              client,
		Input:              m.Avatar,
		Status:             m.Console,
		LeaderboardShowing: func() bool { return m.Finisher.LeaderboardShowing() },
	}, cfg.Connection, clk, tel, obs.Metrics)

	m.Finisher = sessionservice.NewFinisher(sessionservice.FinisherDeps{
		Relay:        client,
		Store:        m.Store,
		Clock:        m.Clock,
		Stats:        m.Ledger,
		Disablers:    m,
		Backend:      backend,
		Disconnector: m.Supervisor,
		Sink:         m.Console,
	}, clk, cfg.Session, tel)

	m.handlers = peerhandlers.NewPeerHandlers(peerhandlers.Components{
		Relay:      client,
		Connection: m.Supervisor,
		Lobby:      m,
		Authority:  m.Coordinator,
		Bots:       m.Bots,
		Stats:      m.Ledger,
		Feed:       m.Feed,
		Clock:      m.Clock,
		EndGame:    m.Finisher,
		Store:      m.Store,
		Mailbox:    m.Mailbox,
		Lifecycle:  m.tasks,
	}, logger, obs.Tracer)

	if err := m.Router.Configure(ctx, m.handlers); err != nil {
		return nil, fmt.Errorf("failed to configure peer router: %w", err)
	}
	return m, nil
}

// GameEndDisablers lists what stops affecting gameplay when the game ends.
func (m *Module) GameEndDisablers() []sessionservice.GameEndDisabler {
	return []sessionservice.GameEndDisabler{m.Avatar, m.Bots}
}

// TargetRoom picks the room to join from the lobby: the configured room, the room the backend
// assigned to the wallet, or a room named after the wallet.
func (m *Module) TargetRoom(ctx context.Context) string {
	if m.cfg.Room != "" {
		return m.cfg.Room
	}
	if m.backend != nil {
		profile, err := m.backend.LookupUser(ctx, m.cfg.Wallet)
		if err != nil {
			m.logger.WarnContext(ctx, "User lookup failed", attr.Error(err))
		}
		if profile.CurrentRoom != "" {
			return profile.CurrentRoom
		}
	}
	return roomservice.WalletRoomName(m.cfg.Wallet)
}

// Start runs the event router and connects to the relay.
func (m *Module) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	m.started = true
	m.cancelFunc = cancel
	m.routerDone = make(chan struct{})
	m.mu.Unlock()

	m.tasks.bind(ctx)
	go func() {
		defer close(m.routerDone)
		if err := m.Router.Router.Run(ctx); err != nil {
			m.logger.ErrorContext(ctx, "Peer router stopped", attr.Error(err))
		}
	}()
	select {
	case <-m.Router.Router.Running():
	case <-ctx.Done():
		return ctx.Err()
	}
	return m.Supervisor.Connect(ctx)
}

// Run starts the peer and blocks until ctx ends.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	if wg != nil {
		defer wg.Done()
	}
	m.logger.InfoContext(ctx, "Starting peer module")
	if err := m.Start(ctx); err != nil {
		m.logger.ErrorContext(ctx, "Peer failed to start", attr.Error(err))
		return
	}
	<-ctx.Done()
	m.logger.InfoContext(ctx, "Peer module goroutine stopped")
}

// Wait blocks until in-flight background sequences have finished.
func (m *Module) Wait() {
	m.tasks.wait()
	m.Bots.Wait()
	m.Coordinator.Wait()
	m.Supervisor.Wait()
}

// Close stops the peer and releases its resources.
func (m *Module) Close() error {
	m.logger.Info("Stopping peer module")
	ctx := context.Background()

	m.Supervisor.Cancel()
	m.Coordinator.Cancel()
	m.Finisher.Cancel()
	m.tasks.RoomLeft(ctx)

	m.mu.Lock()
	cancel, done := m.cancelFunc, m.routerDone
	m.mu.Unlock()

	err := m.Client.Close()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if cerr := m.PubSub.Close(); cerr != nil && err == nil {
		err = cerr
	}
	m.logger.Info("Peer module stopped")
	return err
}

// Config returns the peer's configuration.
func (m *Module) Config() Config { return m.cfg }

// BotDisabled reports whether a bot's local behaviour has been switched off.
func (m *Module) BotDisabled(id relay.ActorID) bool { return m.brains.Disabled(id) }
