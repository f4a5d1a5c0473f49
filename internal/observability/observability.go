// Package observability bootstraps logging, metrics and tracing for the arena binaries.
package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config selects how telemetry is emitted.
type Config struct {
	ServiceName    string
	Environment    string
	Version        string
	LogLevel       string
	MetricsAddress string
	// TraceEndpoint is the OTLP gRPC collector address. Empty disables trace export.
	TraceEndpoint   string
	TraceInsecure   bool
	TraceSampleRate float64
}

// Observability bundles the telemetry handles passed to modules.
type Observability struct {
	Logger   *slog.Logger
	Tracer   trace.Tracer
	Registry *prometheus.Registry
	Metrics  *PrometheusMetrics

	tracerProvider *sdktrace.TracerProvider
}

// New builds the telemetry bundle for a binary. With a TraceEndpoint it installs an SDK tracer
// provider exporting over OTLP as the global otel provider; Shutdown flushes it.
func New(ctx context.Context, cfg Config) (*Observability, error) {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).With(
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.String("version", cfg.Version),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	o := &Observability{
		Logger:   logger,
		Registry: registry,
		Metrics:  NewPrometheusMetrics(registry, "arena"),
	}
	if cfg.TraceEndpoint != "" {
		tp, err := newOTLPTracerProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
		o.tracerProvider = tp
		logger.Info("Exporting traces", slog.String("endpoint", cfg.TraceEndpoint))
	}
	o.Tracer = otel.Tracer(cfg.ServiceName)
	return o, nil
}

// Shutdown flushes and stops the tracer provider, if one was installed.
func (o *Observability) Shutdown(ctx context.Context) error {
	if o.tracerProvider == nil {
		return nil
	}
	return o.tracerProvider.Shutdown(ctx)
}

// NewNop returns a bundle that drops all output.
func NewNop() *Observability {
	return &Observability{
		Logger:   NopLogger(),
		Tracer:   noop.NewTracerProvider().Tracer("nop"),
		Registry: prometheus.NewRegistry(),
		Metrics:  NewPrometheusMetrics(nil, "arena"),
	}
}

// NopLogger returns a logger that writes nowhere.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ServeMetrics exposes the registry on addr until ctx is cancelled. An empty addr disables the endpoint.
func (o *Observability) ServeMetrics(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(o.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	o.Logger.Info("Serving metrics", slog.String("address", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
