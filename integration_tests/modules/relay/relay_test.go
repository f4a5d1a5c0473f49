package relay_integration_tests

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Black-And-White-Club/arena-sync/internal/clock"
	"github.com/Black-And-White-Club/arena-sync/internal/natsconn"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
	"github.com/Black-And-White-Club/arena-sync/internal/relay/memrelay"
	"github.com/Black-And-White-Club/arena-sync/internal/relay/natsrelay"
)

const (
	waitFor = 10 * time.Second
	tick    = 20 * time.Millisecond
)

func newBackend(t *testing.T, bucket string) *natsrelay.KVPropertyBackend {
	t.Helper()
	kv, err := natsconn.KeyValue(testEnv.Ctx, testEnv.NatsConn, bucket)
	require.NoError(t, err)
	return natsrelay.NewKVPropertyBackend(kv)
}

func TestRelayBroker_ProvisionsRoomBucket(t *testing.T) {
	ctx := context.Background()
	status, err := testEnv.Rooms.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, natsrelay.DefaultBucket, status.Bucket())
	assert.Equal(t, int64(1), status.History())

	backend := natsrelay.NewKVPropertyBackend(testEnv.Rooms)
	_, err = backend.Create(ctx, "Room_Bucket", relay.Properties{"NPCCount": json.RawMessage(`3`)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Delete(ctx, "Room_Bucket") })

	entry, err := testEnv.Rooms.Get(ctx, "room."+base64.RawURLEncoding.EncodeToString([]byte("Room_Bucket")))
	require.NoError(t, err)
	assert.Contains(t, string(entry.Value()), "NPCCount")
}

func TestKVPropertyBackend_JetStream(t *testing.T) {
	ctx := context.Background()
	backend := newBackend(t, "arena_rooms_kv_test")

	props, err := backend.Create(ctx, "Room_1", relay.Properties{"GameState": json.RawMessage(`0`)})
	require.NoError(t, err)
	assert.Equal(t, "0", string(props["GameState"]))

	again, err := backend.Create(ctx, "Room_1", relay.Properties{"GameState": json.RawMessage(`2`)})
	require.NoError(t, err)
	assert.Equal(t, "0", string(again["GameState"]), "create keeps the stored bag")

	var wg sync.WaitGroup
	for _, key := range []string{"Kills_a", "Kills_b", "Kills_c", "Kills_d"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := backend.Merge(ctx, "Room_1", relay.Properties{key: json.RawMessage(`1`)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	merged, err := backend.Merge(ctx, "Room_1", relay.Properties{"GameState": json.RawMessage(`1`)})
	require.NoError(t, err)
	for _, key := range []string{"GameState", "Kills_a", "Kills_b", "Kills_c", "Kills_d"} {
		assert.Contains(t, merged, key)
	}
	assert.Equal(t, "1", string(merged["GameState"]))

	require.NoError(t, backend.Delete(ctx, "Room_1"))
	fresh, err := backend.Create(ctx, "Room_1", nil)
	require.NoError(t, err)
	assert.Empty(t, fresh)
}

func newClient(t *testing.T, name string) *natsrelay.Client {
	t.Helper()
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubsub.Close() })

	c, err := natsrelay.NewClient(natsrelay.NATSTransport{Conn: testEnv.NatsConn}, natsrelay.ClientConfig{
		Prefix:  natsrelay.DefaultPrefix,
		Name:    name,
		UserID:  name + "-wallet",
		Timings: natsrelay.DefaultTimings(),
	}, pubsub, "arena.peer."+name, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRelayServer_OverNATS(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := memrelay.NewHub(newBackend(t, "arena_rooms_flow_test"), clock.Real{}, observability.NopLogger())
	server := natsrelay.NewServer(hub, testEnv.NatsConn, testEnv.NatsConn, natsrelay.DefaultPrefix,
		natsrelay.DefaultTimings(), observability.NopLogger(), observability.NopTelemetry().Tracer)
	var wg sync.WaitGroup
	require.NoError(t, server.Run(ctx, &wg))
	defer func() {
		cancel()
		_ = server.Close()
		wg.Wait()
	}()

	alice := newClient(t, "alice")
	bob := newClient(t, "bob")
	for _, c := range []*natsrelay.Client{alice, bob} {
		require.NoError(t, c.Connect(ctx))
		require.Eventually(t, c.Connected, waitFor, tick)
		require.NoError(t, c.JoinOrCreateRoom(ctx, "Room_NATS", relay.RoomOptions{IsOpen: true, IsVisible: true}))
		require.Eventually(t, c.InRoom, waitFor, tick)
	}

	assert.True(t, alice.IsMaster())
	require.Eventually(t, func() bool { return len(alice.Players()) == 2 }, waitFor, tick)

	require.NoError(t, bob.SetRoomProperties(ctx, relay.Properties{"Kills_bob": json.RawMessage(`3`)}))
	require.Eventually(t, func() bool {
		return string(alice.Properties()["Kills_bob"]) == "3"
	}, waitFor, tick)

	actor, err := alice.Instantiate(ctx, relay.InstantiateSpec{Prefab: "Bot", RoomObject: true})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := bob.Actor(actor.ID)
		return ok
	}, waitFor, tick)

	require.NoError(t, alice.LeaveRoom(ctx))
	require.Eventually(t, bob.IsMaster, waitFor, tick)
}
