package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
)

// Telemetry is the trio every service carries.
type Telemetry struct {
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics Metrics
}

// NopTelemetry returns a Telemetry that records nothing.
func NopTelemetry() Telemetry {
	return Telemetry{
		Logger:  NopLogger(),
		Tracer:  noop.NewTracerProvider().Tracer("nop"),
		Metrics: NoOpMetrics{},
	}
}

// WithDefaults fills unset fields with no-op implementations.
func (t Telemetry) WithDefaults() Telemetry {
	nop := NopTelemetry()
	if t.Logger == nil {
		t.Logger = nop.Logger
	}
	if t.Tracer == nil {
		t.Tracer = nop.Tracer
	}
	if t.Metrics == nil {
		t.Metrics = nop.Metrics
	}
	return t
}

// WithTelemetry wraps a service operation with a span, metrics and panic recovery.
func WithTelemetry[T any](
	ctx context.Context,
	tel Telemetry,
	service, operation string,
	op func(ctx context.Context) (T, error),
	attrs ...attribute.KeyValue,
) (result T, err error) {
	ctx, span := tel.Tracer.Start(ctx, service+"."+operation, trace.WithAttributes(
		append([]attribute.KeyValue{
			attribute.String("operation", operation),
			attribute.String("service", service),
		}, attrs...)...,
	))
	defer span.End()

	tel.Metrics.RecordOperationAttempt(ctx, operation, service)
	start := time.Now()
	defer func() {
		tel.Metrics.RecordOperationDuration(ctx, operation, service, time.Since(start))
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operation, r)
			tel.Logger.ErrorContext(ctx, "Critical panic recovered",
				attr.String("operation", operation),
				attr.ExtractCorrelationID(ctx),
				attr.Error(err),
			)
			tel.Metrics.RecordOperationFailure(ctx, operation, service)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			var zero T
			result = zero
		}
	}()

	result, err = op(ctx)
	if err != nil {
		wrapped := fmt.Errorf("%s: %w", operation, err)
		tel.Logger.WarnContext(ctx, "Operation failed",
			attr.String("operation", operation),
			attr.String("service", service),
			attr.ExtractCorrelationID(ctx),
			attr.Error(wrapped),
		)
		tel.Metrics.RecordOperationFailure(ctx, operation, service)
		span.RecordError(wrapped)
		span.SetStatus(codes.Error, wrapped.Error())
		return result, wrapped
	}

	tel.Metrics.RecordOperationSuccess(ctx, operation, service)
	return result, nil
}

// Run is WithTelemetry for operations without a result.
func Run(ctx context.Context, tel Telemetry, service, operation string, op func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	_, err := WithTelemetry(ctx, tel, service, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, attrs...)
	return err
}
