package peerrouter

import (
	"context"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	peerhandlers "github.com/Black-And-White-Club/arena-sync/app/modules/peer/infrastructure/handlers"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
)

const (
	TestEnvironmentFlag  = "APP_ENV"
	TestEnvironmentValue = "test"

	// HandlerName is the router handler consuming the relay event topic.
	HandlerName = "peer.events"
)

type PeerRouter struct {
	logger         *slog.Logger
	Router         *message.Router
	subscriber     message.Subscriber
	topic          string
	tracer         trace.Tracer
	metricsBuilder *metrics.PrometheusMetricsBuilder
	metricsEnabled bool
}

// NewPeerRouter creates a router consuming relay events for one peer from topic.
func NewPeerRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber message.Subscriber,
	topic string,
	tracer trace.Tracer,
	prometheusRegistry prometheus.Registerer,
) *PeerRouter {
	inTestEnv := os.Getenv(TestEnvironmentFlag) == TestEnvironmentValue

	var metricsBuilder *metrics.PrometheusMetricsBuilder
	if prometheusRegistry != nil && !inTestEnv {
		builder := metrics.NewPrometheusMetricsBuilder(prometheusRegistry, "arena", "peer")
		metricsBuilder = &builder
	}

	return &PeerRouter{
		logger:         logger,
		Router:         router,
		subscriber:     subscriber,
		topic:          topic,
		tracer:         tracer,
		metricsBuilder: metricsBuilder,
		metricsEnabled: metricsBuilder != nil,
	}
}

// Configure sets up the middlewares and registers the event handler.
func (r *PeerRouter) Configure(routerCtx context.Context, handlers peerhandlers.Handlers) error {
	if r.metricsEnabled {
		r.logger.Info("Adding Prometheus router metrics middleware for peer")
		r.metricsBuilder.AddPrometheusRouterMetrics(r.Router)
	}

	r.Router.AddMiddleware(
		middleware.CorrelationID,
		correlationContext,
		middleware.Recoverer,
		observability.TraceHandler(r.tracer),
	)

	return r.RegisterHandlers(routerCtx, handlers)
}

// RegisterHandlers binds the relay event topic to the dispatcher.
func (r *PeerRouter) RegisterHandlers(_ context.Context, handlers peerhandlers.Handlers) error {
	r.Router.AddConsumerHandler(HandlerName, r.topic, r.subscriber, handlers.HandleEvent)
	r.logger.Info("Registered peer handlers",
		attr.String("topic", r.topic),
		attr.Int("routes", len(handlers.Keys())),
	)
	return nil
}

// Close stops the router.
func (r *PeerRouter) Close() error {
	return r.Router.Close()
}

// correlationContext copies the message correlation ID into its context for log attributes.
func correlationContext(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		if id := middleware.MessageCorrelationID(msg); id != "" {
			msg.SetContext(attr.WithCorrelationID(msg.Context(), id))
		}
		return h(msg)
	}
}
