package natsrelay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
	"github.com/Black-And-White-Club/arena-sync/internal/relay/memrelay"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type relayFixture struct {
	net *loopback
	hub *memrelay.Hub
	kv  *FakeKeyValue
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()
	kv := NewFakeKeyValue()
	hub := memrelay.NewHub(NewKVPropertyBackend(kv), nil, observability.NopLogger())
	net := newLoopback()
	net.server = NewServer(hub, nil, net, "", DefaultTimings(), observability.NopLogger(), observability.NopTelemetry().Tracer)
	return &relayFixture{net: net, hub: hub, kv: kv}
}

func (f *relayFixture) client(t *testing.T, name string) *Client {
	t.Helper()
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubsub.Close() })

	timings := DefaultTimings()
	timings.HeartbeatInterval = time.Hour
	c, err := NewClient(f.net, ClientConfig{Name: name, UserID: name + "-id", Timings: timings}, pubsub, "arena.peer."+name, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func joinArena(t *testing.T, c *Client) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	require.Eventually(t, c.Connected, waitFor, tick)
	require.NoError(t, c.JoinOrCreateRoom(ctx, "arena", relay.RoomOptions{IsOpen: true, IsVisible: true}))
	require.Eventually(t, c.InRoom, waitFor, tick)
}

func TestClient_RoomFlowThroughServer(t *testing.T) {
	ctx := context.Background()
	f := newRelayFixture(t)
	alice := f.client(t, "alice")
	bob := f.client(t, "bob")

	joinArena(t, alice)
	joinArena(t, bob)

	assert.True(t, alice.IsMaster())
	assert.False(t, bob.IsMaster())
	require.Eventually(t, func() bool { return len(alice.Players()) == 2 }, waitFor, tick)

	require.NoError(t, bob.SetRoomProperties(ctx, relay.Properties{"Kills_bob": json.RawMessage(`2`)}))
	require.Eventually(t, func() bool {
		return string(alice.Properties()["Kills_bob"]) == "2"
	}, waitFor, tick)
	assert.Len(t, f.kv.StoredKeys(), 1)

	actor, err := alice.Instantiate(ctx, relay.InstantiateSpec{Prefab: "Bot", RoomObject: true})
	require.NoError(t, err)
	assert.Equal(t, alice.LocalPlayer().ActorNumber, actor.Owner)
	require.Eventually(t, func() bool {
		_, ok := bob.Actor(actor.ID)
		return ok
	}, waitFor, tick)

	require.NoError(t, bob.RPC(ctx, relay.TargetAll, 0, "AddMessage", map[string]string{"text": "hi"}))
	assert.ErrorIs(t, bob.Destroy(ctx, actor.ID+100), relay.ErrActorNotFound)
	assert.ErrorIs(t, bob.Destroy(ctx, actor.ID), relay.ErrOwnershipDenied)
	require.NoError(t, alice.TransferOwnership(ctx, actor.ID, bob.LocalPlayer().ActorNumber))
	require.Eventually(t, func() bool {
		a, ok := bob.Actor(actor.ID)
		return ok && a.Owner == bob.LocalPlayer().ActorNumber
	}, waitFor, tick)
	require.NoError(t, bob.Destroy(ctx, actor.ID))
}

func TestClient_MasterHandOffWhenPeerGoesSilent(t *testing.T) {
	ctx := context.Background()
	f := newRelayFixture(t)
	alice := f.client(t, "alice")
	bob := f.client(t, "bob")
	joinArena(t, alice)
	joinArena(t, bob)

	// Only bob keeps beating.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, f.hub.Heartbeat(bob.PeerID()))
	dropped := f.hub.Sweep(ctx, 10*time.Millisecond)
	assert.Len(t, dropped, 1)

	require.Eventually(t, func() bool { return !alice.Connected() }, waitFor, tick)
	require.Eventually(t, bob.IsMaster, waitFor, tick)
}

func TestClient_DisconnectStartsFreshSession(t *testing.T) {
	ctx := context.Background()
	f := newRelayFixture(t)
	alice := f.client(t, "alice")
	joinArena(t, alice)

	first := alice.PeerID()
	require.NoError(t, alice.Disconnect(ctx))
	require.Eventually(t, func() bool { return !alice.Connected() }, waitFor, tick)
	assert.NotEqual(t, first, alice.PeerID())

	assert.ErrorIs(t, alice.JoinLobby(ctx), relay.ErrNotConnected)
	require.NoError(t, alice.Connect(ctx))
	require.Eventually(t, alice.Connected, waitFor, tick)
	assert.ErrorIs(t, alice.Connect(ctx), relay.ErrAlreadyConnected)
}

func TestClient_TransportDown(t *testing.T) {
	f := newRelayFixture(t)
	alice := f.client(t, "alice")
	f.net.SetDown(true)

	err := alice.Connect(context.Background())
	assert.ErrorIs(t, err, relay.ErrTransport)
	assert.False(t, alice.Connected())
}

func TestClient_HeartbeatKeepsSessionAlive(t *testing.T) {
	ctx := context.Background()
	f := newRelayFixture(t)
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubsub.Close()

	timings := DefaultTimings()
	timings.HeartbeatInterval = 5 * time.Millisecond
	c, err := NewClient(f.net, ClientConfig{Name: "carol", Timings: timings}, pubsub, "arena.peer.carol", observability.NopLogger())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Connect(ctx))
	require.Eventually(t, c.Connected, waitFor, tick)
	time.Sleep(60 * time.Millisecond)

	assert.Empty(t, f.hub.Sweep(ctx, 40*time.Millisecond))
	assert.True(t, c.Connected())
}
