package observability

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TraceHandler is a router middleware that wraps every handled message in a span named after
// the handler. The span context replaces the message context.
func TraceHandler(tracer trace.Tracer) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			name := message.HandlerNameFromCtx(msg.Context())
			if name == "" {
				name = "handler"
			}
			ctx, span := tracer.Start(msg.Context(), name, trace.WithAttributes(
				attribute.String("message.uuid", msg.UUID),
				attribute.String("message.topic", message.SubscribeTopicFromCtx(msg.Context())),
			))
			defer span.End()
			msg.SetContext(ctx)

			out, err := h(msg)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return out, err
		}
	}
}
