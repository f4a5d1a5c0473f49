package peerhandlers

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"

	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

// Components are the services the peer's events are routed to.
type Components struct {
	Relay      relay.RoomView
	Connection ConnectionService
	Lobby      RoomPicker
	Authority  AuthorityService
	Bots       BotService
	Stats      StatsService
	Feed       FeedService
	Clock      ClockService
	EndGame    EndGameService
	Store      RoomStore
	Mailbox    MailboxService
	Lifecycle  Lifecycle
}

type eventHandler func(ctx context.Context, e relay.Event) error

// PeerHandlers dispatches relay events to the components.
type PeerHandlers struct {
	c      Components
	logger *slog.Logger
	tracer trace.Tracer
	routes map[string]eventHandler
}

// NewPeerHandlers creates the dispatcher.
func NewPeerHandlers(c Components, logger *slog.Logger, tracer trace.Tracer) *PeerHandlers {
	h := &PeerHandlers{c: c, logger: logger, tracer: tracer}
	h.routes = h.buildRoutes()
	return h
}

var _ Handlers = (*PeerHandlers)(nil)

// HandleEvent is the router handler. Every message is acked: a failed event is logged, never
// redelivered, since the relay stream is not replayable.
func (h *PeerHandlers) HandleEvent(msg *message.Message) error {
	ctx := msg.Context()
	e, err := relay.FromMessage(msg)
	if err != nil {
		h.logger.ErrorContext(ctx, "Dropping undecodable relay event", attr.CorrelationIDFromMsg(msg), attr.Error(err))
		return nil
	}
	if err := h.Dispatch(ctx, e); err != nil {
		h.logger.WarnContext(ctx, "Relay event handler failed",
			attr.String("handler_key", e.HandlerKey()),
			attr.CorrelationIDFromMsg(msg),
			attr.Error(err),
		)
	}
	return nil
}

// Dispatch runs the handler registered for e. Unknown keys are ignored.
func (h *PeerHandlers) Dispatch(ctx context.Context, e relay.Event) error {
	fn, ok := h.routes[e.HandlerKey()]
	if !ok {
		h.logger.DebugContext(ctx, "No handler for relay event", attr.String("handler_key", e.HandlerKey()))
		return nil
	}
	return fn(ctx, e)
}

// Keys lists the registered handler keys.
func (h *PeerHandlers) Keys() []string {
	return slices.Sorted(maps.Keys(h.routes))
}

// rpc adapts a typed RPC handler to an eventHandler.
func rpc[T any](fn func(ctx context.Context, call *relay.RPC, args T) error) eventHandler {
	return func(ctx context.Context, e relay.Event) error {
		var args T
		if err := e.RPC.Decode(&args); err != nil {
			return err
		}
		return fn(ctx, e.RPC, args)
	}
}
