package natsrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Black-And-White-Club/arena-sync/internal/clock"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

// Transport carries requests to the relay server and delivers its events.
type Transport interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
	Subscribe(subject string, fn func(data []byte)) (unsubscribe func() error, err error)
}

// NATSTransport is a Transport over a NATS connection.
type NATSTransport struct {
	Conn *nats.Conn
}

func (t NATSTransport) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	msg, err := t.Conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, err
	}
	return msg.Data, nil
}

func (t NATSTransport) Subscribe(subject string, fn func(data []byte)) (func() error, error) {
	sub, err := t.Conn.Subscribe(subject, func(msg *nats.Msg) { fn(msg.Data) })
	if err != nil {
		return nil, err
	}
	return sub.Unsubscribe, nil
}

// Client is one peer's connection to a relay Server.
type Client struct {
	*relay.Mirror

	transport Transport
	outbox    *relay.Outbox
	prefix    string
	inbox     string
	name      string
	userID    string
	timings   Timings
	clock     clock.Clock
	logger    *slog.Logger

	unsubscribe func() error

	mu            sync.Mutex
	peerID        string
	stopHeartbeat context.CancelFunc
	heartbeats    sync.WaitGroup
}

var _ relay.Client = (*Client)(nil)

// ClientConfig identifies the peer to the server.
type ClientConfig struct {
	Prefix  string
	Name    string
	UserID  string
	Timings Timings
	Clock   clock.Clock
}

// NewClient subscribes to the client's event inbox. Events are applied to the mirror and
// published on topic in arrival order.
func NewClient(transport Transport, cfg ClientConfig, publisher message.Publisher, topic string, logger *slog.Logger) (*Client, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.Timings == (Timings{}) {
		cfg.Timings = DefaultTimings()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	mirror := relay.NewMirror(cfg.Name, cfg.UserID)
	c := &Client{
		Mirror:    mirror,
		transport: transport,
		outbox:    relay.NewOutbox(mirror, publisher, topic, logger),
		prefix:    cfg.Prefix,
		inbox:     uuid.NewString(),
		name:      cfg.Name,
		userID:    cfg.UserID,
		timings:   cfg.Timings,
		clock:     cfg.Clock,
		logger:    logger,
		peerID:    uuid.NewString(),
	}

	unsubscribe, err := transport.Subscribe(EventSubject(c.prefix, c.inbox), c.receive)
	if err != nil {
		c.outbox.Close(context.Background())
		return nil, fmt.Errorf("failed to subscribe to relay events: %w", err)
	}
	c.unsubscribe = unsubscribe
	return c, nil
}

func (c *Client) receive(data []byte) {
	var e relay.Event
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Error("Dropping malformed relay event", attr.Error(err))
		return
	}
	if e.Type == relay.EventDisconnected {
		c.mu.Lock()
		c.peerID = uuid.NewString()
		if c.stopHeartbeat != nil {
			c.stopHeartbeat()
			c.stopHeartbeat = nil
		}
		c.mu.Unlock()
	}
	c.outbox.Push(e)
}

// PeerID returns the server-side identity of this client's current session.
func (c *Client) PeerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerID
}

func (c *Client) call(ctx context.Context, op string, req Request) (Response, error) {
	if req.PeerID == "" {
		req.PeerID = c.PeerID()
	}
	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal %s request: %w", op, err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timings.RequestTimeout)
	defer cancel()

	reply, err := c.transport.Request(ctx, Subject(c.prefix, op), data)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Response{}, err
		}
		return Response{}, fmt.Errorf("%w: %s: %v", relay.ErrTransport, op, err)
	}
	var resp Response
	if err := json.Unmarshal(reply, &resp); err != nil {
		return Response{}, fmt.Errorf("failed to unmarshal %s response: %w", op, err)
	}
	return resp, resp.Err()
}

func (c *Client) do(ctx context.Context, op string, req Request) error {
	_, err := c.call(ctx, op, req)
	return err
}

func (c *Client) Connect(ctx context.Context) error {
	peerID := c.PeerID()
	if err := c.do(ctx, OpConnect, Request{PeerID: peerID, Inbox: c.inbox, Name: c.name, UserID: c.userID}); err != nil {
		return err
	}
	c.startHeartbeat(peerID)
	return nil
}

func (c *Client) startHeartbeat(peerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopHeartbeat != nil {
		c.stopHeartbeat()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.stopHeartbeat = cancel
	c.heartbeats.Add(1)
	go func() {
		defer c.heartbeats.Done()
		c.heartbeatLoop(ctx, peerID)
	}()
}

func (c *Client) heartbeatLoop(ctx context.Context, peerID string) {
	for {
		if err := clock.Sleep(ctx, c.clock, c.timings.HeartbeatInterval); err != nil {
			return
		}
		err := c.do(ctx, OpHeartbeat, Request{PeerID: peerID})
		switch {
		case err == nil:
		case errors.Is(err, relay.ErrNotConnected), errors.Is(err, context.Canceled):
			return
		default:
			c.logger.Warn("Relay heartbeat failed", attr.String("peer_id", peerID), attr.Error(err))
		}
	}
}

func (c *Client) JoinLobby(ctx context.Context) error {
	return c.do(ctx, OpJoinLobby, Request{})
}

func (c *Client) JoinOrCreateRoom(ctx context.Context, name string, opts relay.RoomOptions) error {
	return c.do(ctx, OpJoinOrCreateRoom, Request{Room: name, Options: &opts})
}

func (c *Client) RejoinRoom(ctx context.Context, name string) error {
	return c.do(ctx, OpRejoinRoom, Request{Room: name})
}

func (c *Client) LeaveRoom(ctx context.Context) error {
	return c.do(ctx, OpLeaveRoom, Request{})
}

func (c *Client) Disconnect(ctx context.Context) error {
	return c.do(ctx, OpDisconnect, Request{Cause: relay.CauseClientLogic})
}

func (c *Client) SetRoomProperties(ctx context.Context, batch relay.Properties) error {
	return c.do(ctx, OpSetProperties, Request{Batch: batch})
}

func (c *Client) Instantiate(ctx context.Context, spec relay.InstantiateSpec) (relay.Actor, error) {
	resp, err := c.call(ctx, OpInstantiate, Request{Spec: &spec})
	if err != nil {
		return relay.Actor{}, err
	}
	if resp.Actor == nil {
		return relay.Actor{}, fmt.Errorf("relay server returned no actor for %s", spec.Prefab)
	}
	return *resp.Actor, nil
}

func (c *Client) Destroy(ctx context.Context, id relay.ActorID) error {
	return c.do(ctx, OpDestroy, Request{ActorID: id})
}

func (c *Client) RequestOwnership(ctx context.Context, id relay.ActorID) error {
	return c.do(ctx, OpRequestOwnership, Request{ActorID: id})
}

func (c *Client) TransferOwnership(ctx context.Context, id relay.ActorID, newOwner int) error {
	return c.do(ctx, OpTransferOwnership, Request{ActorID: id, NewOwner: newOwner})
}

func (c *Client) RPC(ctx context.Context, target relay.Target, actorID relay.ActorID, method string, args any) error {
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal rpc %s: %w", method, err)
	}
	return c.do(ctx, OpRPC, Request{Target: target, ActorID: actorID, Method: method, Args: payload})
}

// Close disconnects if needed, stops the heartbeat and drains pending events.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if c.Mirror.Connected() {
		if err := c.Disconnect(ctx); err != nil {
			c.logger.Warn("Failed to disconnect from relay", attr.Error(err))
		}
	}
	c.mu.Lock()
	if c.stopHeartbeat != nil {
		c.stopHeartbeat()
		c.stopHeartbeat = nil
	}
	c.mu.Unlock()
	c.heartbeats.Wait()

	var err error
	if c.unsubscribe != nil {
		err = c.unsubscribe()
	}
	c.outbox.Close(ctx)
	return err
}
