package memrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

// Client is one peer's connection to a Hub.
type Client struct {
	*relay.Mirror

	hub    *Hub
	outbox *relay.Outbox
	peerID string
	name   string
	userID string

	mu sync.Mutex
}

var _ relay.Client = (*Client)(nil)

// NewClient creates a peer client that publishes its events on topic.
func NewClient(hub *Hub, name, userID string, publisher message.Publisher, topic string, logger *slog.Logger) *Client {
	mirror := relay.NewMirror(name, userID)
	return &Client{
		Mirror: mirror,
		hub:    hub,
		outbox: relay.NewOutbox(mirror, publisher, topic, logger),
		peerID: uuid.NewString(),
		name:   name,
		userID: userID,
	}
}

// PeerID returns the hub-side identity of this client.
func (c *Client) PeerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerID
}

func (c *Client) Connect(ctx context.Context) error {
	return c.hub.Connect(ctx, c.PeerID(), c.name, c.userID, c)
}

// Push receives hub events. A disconnect rotates the peer id so a later Connect registers afresh.
func (c *Client) Push(e relay.Event) {
	if e.Type == relay.EventDisconnected {
		c.mu.Lock()
		c.peerID = uuid.NewString()
		c.mu.Unlock()
	}
	c.outbox.Push(e)
}

func (c *Client) JoinLobby(ctx context.Context) error {
	return c.hub.JoinLobby(ctx, c.PeerID())
}

func (c *Client) JoinOrCreateRoom(ctx context.Context, name string, opts relay.RoomOptions) error {
	return c.hub.JoinOrCreateRoom(ctx, c.PeerID(), name, opts)
}

func (c *Client) RejoinRoom(ctx context.Context, name string) error {
	return c.hub.RejoinRoom(ctx, c.PeerID(), name)
}

func (c *Client) LeaveRoom(ctx context.Context) error {
	return c.hub.LeaveRoom(ctx, c.PeerID())
}

func (c *Client) Disconnect(ctx context.Context) error {
	return c.hub.Disconnect(ctx, c.PeerID(), relay.CauseClientLogic)
}

// Drop simulates an involuntary transport failure.
func (c *Client) Drop(ctx context.Context, cause relay.DisconnectCause) error {
	return c.hub.Disconnect(ctx, c.PeerID(), cause)
}

func (c *Client) SetRoomProperties(ctx context.Context, batch relay.Properties) error {
	return c.hub.SetRoomProperties(ctx, c.PeerID(), batch)
}

func (c *Client) Instantiate(ctx context.Context, spec relay.InstantiateSpec) (relay.Actor, error) {
	return c.hub.Instantiate(ctx, c.PeerID(), spec)
}

func (c *Client) Destroy(ctx context.Context, id relay.ActorID) error {
	return c.hub.Destroy(ctx, c.PeerID(), id)
}

func (c *Client) RequestOwnership(ctx context.Context, id relay.ActorID) error {
	return c.hub.RequestOwnership(ctx, c.PeerID(), id)
}

func (c *Client) TransferOwnership(ctx context.Context, id relay.ActorID, newOwner int) error {
	return c.hub.TransferOwnership(ctx, c.PeerID(), id, newOwner)
}

func (c *Client) RPC(ctx context.Context, target relay.Target, actorID relay.ActorID, method string, args any) error {
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal rpc %s: %w", method, err)
	}
	return c.hub.RPC(ctx, c.PeerID(), target, actorID, method, payload)
}

// Close disconnects if needed and drains pending events.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if c.Mirror.Connected() {
		_ = c.hub.Disconnect(ctx, c.PeerID(), relay.CauseClientLogic)
	}
	c.outbox.Close(ctx)
	return nil
}
