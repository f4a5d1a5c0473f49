package natsrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
	"github.com/Black-And-White-Club/arena-sync/internal/relay/memrelay"
)

// EventPublisher sends encoded events to a client inbox. *nats.Conn satisfies it.
type EventPublisher interface {
	Publish(subject string, data []byte) error
}

// Server answers relay requests against a Hub.
type Server struct {
	hub       *memrelay.Hub
	nc        *nats.Conn
	publisher EventPublisher
	prefix    string
	timings   Timings
	logger    *slog.Logger
	tracer    trace.Tracer

	subscription *nats.Subscription
	cancelFunc   context.CancelFunc
}

// NewServer creates a server that publishes events through publisher. nc may be nil when the
// server is driven through Serve directly.
func NewServer(hub *memrelay.Hub, nc *nats.Conn, publisher EventPublisher, prefix string, timings Timings, logger *slog.Logger, tracer trace.Tracer) *Server {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Server{
		hub:       hub,
		nc:        nc,
		publisher: publisher,
		prefix:    prefix,
		timings:   timings,
		logger:    logger,
		tracer:    tracer,
	}
}

// Run subscribes to relay requests and sweeps silent peers until ctx ends.
func (s *Server) Run(ctx context.Context, wg *sync.WaitGroup) error {
	if wg != nil {
		defer wg.Done()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel
	defer cancel()

	subject := s.prefix + ".*"
	sub, err := s.nc.Subscribe(subject, s.HandleRequest)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	s.subscription = sub
	s.logger.InfoContext(ctx, "Relay server listening", attr.String("subject", subject))

	s.hub.RunSweeper(ctx, s.timings.SweepInterval, s.timings.PeerTimeout)
	s.logger.InfoContext(ctx, "Relay server stopped")
	return nil
}

// Close stops Run and unsubscribes.
func (s *Server) Close() error {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	if s.subscription != nil {
		if err := s.subscription.Unsubscribe(); err != nil {
			return fmt.Errorf("error unsubscribing: %w", err)
		}
	}
	return nil
}

// HandleRequest decodes a request, serves it and responds.
func (s *Server) HandleRequest(msg *nats.Msg) {
	op := msg.Subject[strings.LastIndexByte(msg.Subject, '.')+1:]
	ctx, span := s.tracer.Start(context.Background(), "RelayServer."+op)
	defer span.End()

	var req Request
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.ErrorContext(ctx, "Failed to unmarshal relay request", attr.String("op", op), attr.Error(err))
		s.respond(ctx, msg, Response{Code: "bad_request", Message: "invalid request format"})
		return
	}
	span.SetAttributes(attribute.String("peer_id", req.PeerID))

	resp := s.Serve(ctx, op, req)
	if resp.Code != "" {
		span.SetStatus(codes.Error, resp.Message)
		s.logger.DebugContext(ctx, "Relay request rejected",
			attr.String("op", op),
			attr.String("peer_id", req.PeerID),
			attr.String("code", resp.Code),
		)
	}
	s.respond(ctx, msg, resp)
}

func (s *Server) respond(ctx context.Context, msg *nats.Msg, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal relay response", attr.Error(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.ErrorContext(ctx, "Failed to send relay response", attr.Error(err))
	}
}

// Serve executes one operation against the hub.
func (s *Server) Serve(ctx context.Context, op string, req Request) Response {
	if req.PeerID == "" {
		return Response{Code: "bad_request", Message: "missing peer id"}
	}
	var err error
	switch op {
	case OpConnect:
		if req.Inbox == "" {
			return Response{Code: "bad_request", Message: "missing inbox"}
		}
		err = s.hub.Connect(ctx, req.PeerID, req.Name, req.UserID, &inboxSink{
			publisher: s.publisher,
			subject:   EventSubject(s.prefix, req.Inbox),
			logger:    s.logger,
		})
	case OpHeartbeat:
		err = s.hub.Heartbeat(req.PeerID)
	case OpJoinLobby:
		err = s.hub.JoinLobby(ctx, req.PeerID)
	case OpJoinOrCreateRoom:
		var opts relay.RoomOptions
		if req.Options != nil {
			opts = *req.Options
		}
		err = s.hub.JoinOrCreateRoom(ctx, req.PeerID, req.Room, opts)
	case OpRejoinRoom:
		err = s.hub.RejoinRoom(ctx, req.PeerID, req.Room)
	case OpLeaveRoom:
		err = s.hub.LeaveRoom(ctx, req.PeerID)
	case OpDisconnect:
		cause := req.Cause
		if cause == "" {
			cause = relay.CauseClientLogic
		}
		err = s.hub.Disconnect(ctx, req.PeerID, cause)
	case OpSetProperties:
		err = s.hub.SetRoomProperties(ctx, req.PeerID, req.Batch)
	case OpInstantiate:
		if req.Spec == nil {
			return ErrorResponse(relay.ErrEmptyPayload)
		}
		actor, ierr := s.hub.Instantiate(ctx, req.PeerID, *req.Spec)
		if ierr != nil {
			return ErrorResponse(ierr)
		}
		return Response{Actor: &actor}
	case OpDestroy:
		err = s.hub.Destroy(ctx, req.PeerID, req.ActorID)
	case OpRequestOwnership:
		err = s.hub.RequestOwnership(ctx, req.PeerID, req.ActorID)
	case OpTransferOwnership:
		err = s.hub.TransferOwnership(ctx, req.PeerID, req.ActorID, req.NewOwner)
	case OpRPC:
		err = s.hub.RPC(ctx, req.PeerID, req.Target, req.ActorID, req.Method, req.Args)
	default:
		return Response{Code: "unknown_op", Message: "unknown relay operation " + op}
	}
	if err != nil {
		return ErrorResponse(err)
	}
	return Response{}
}

// inboxSink forwards hub events for one peer to its inbox subject.
type inboxSink struct {
	publisher EventPublisher
	subject   string
	logger    *slog.Logger
}

func (s *inboxSink) Push(e relay.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("Dropping relay event", attr.String("event_type", string(e.Type)), attr.Error(err))
		return
	}
	if err := s.publisher.Publish(s.subject, data); err != nil {
		s.logger.Warn("Failed to publish relay event",
			attr.String("event_type", string(e.Type)),
			attr.String("subject", s.subject),
			attr.Error(err),
		)
	}
}
