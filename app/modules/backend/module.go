package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"

	backendservice "github.com/Black-And-White-Club/arena-sync/app/modules/backend/application"
	backendhandlers "github.com/Black-And-White-Club/arena-sync/app/modules/backend/infrastructure/handlers"
	backendjwt "github.com/Black-And-White-Club/arena-sync/app/modules/backend/infrastructure/jwt"
	tracequeue "github.com/Black-And-White-Club/arena-sync/app/modules/backend/infrastructure/queue"
	backenddb "github.com/Black-And-White-Club/arena-sync/app/modules/backend/infrastructure/repositories"
	"github.com/Black-And-White-Club/arena-sync/config"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
)

// Module is the arena backend: service, HTTP routes and the trace archive queue.
type Module struct {
	service    *backendservice.BackendService
	queue      *tracequeue.Service
	logger     *slog.Logger
	cancelFunc context.CancelFunc
}

// NewModule wires the backend onto db and registers its routes. With useQueue false, traces are
// archived inline instead of by River.
func NewModule(
	ctx context.Context,
	cfg *config.Config,
	obs *observability.Observability,
	db *bun.DB,
	httpRouter chi.Router,
	useQueue bool,
) (*Module, error) {
	logger := obs.Logger.With(attr.String("module", "backend"))
	logger.InfoContext(ctx, "Initializing backend module")

	var tokens backendjwt.Provider
	if cfg.JWT.Secret != "" {
		tokens = backendjwt.NewProvider(cfg.JWT.Secret)
	}

	tel := observability.Telemetry{Logger: logger, Tracer: obs.Tracer, Metrics: obs.Metrics}
	service := backendservice.NewBackendService(backenddb.NewRepository(), db, nil, tokens, cfg.BackendServiceConfig(), tel)

	m := &Module{service: service, logger: logger}
	if useQueue {
		queue, err := tracequeue.NewService(ctx, cfg.Postgres.DSN, service, logger, obs.Metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace queue: %w", err)
		}
		service.SetQueue(queue)
		m.queue = queue
	}

	if httpRouter != nil {
		routes := cfg.RouteConfig()
		routes.Tokens = tokens
		routes.Metrics = promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{})
		backendhandlers.Mount(httpRouter, backendhandlers.NewBackendHandlers(service, logger, obs.Tracer), routes)
	}
	return m, nil
}

// Run starts the archive queue and blocks until ctx is done.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	if wg != nil {
		defer wg.Done()
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if m.queue != nil {
		if err := m.queue.Start(ctx); err != nil {
			m.logger.ErrorContext(ctx, "Failed to start trace queue", attr.Error(err))
			return
		}
	}
	m.logger.InfoContext(ctx, "Backend module started")
	<-ctx.Done()
}

// Close stops the archive queue.
func (m *Module) Close() error {
	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	if m.queue == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.queue.Stop(ctx)
}

// Service exposes the backend service.
func (m *Module) Service() backendservice.Service { return m.service }
