package roomservice

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

// ActorRelay is the slice of the relay the actor registry needs.
type ActorRelay interface {
	relay.RoomView
	relay.ActorRegistry
	relay.Messenger
}

// ActorRegistry spawns and tracks replicated actors.
type ActorRegistry struct {
	relay ActorRelay
	tel   observability.Telemetry
}

// NewActorRegistry creates a registry over r.
func NewActorRegistry(r ActorRelay, tel observability.Telemetry) *ActorRegistry {
	return &ActorRegistry{relay: r, tel: tel.WithDefaults()}
}

// Spawn instantiates prefab owned by the local peer. data is JSON-encoded into the actor's payload.
func (a *ActorRegistry) Spawn(ctx context.Context, prefab string, pos relay.Vector3, rot relay.Quaternion, data any, roomObject bool) (relay.Actor, error) {
	return observability.WithTelemetry(ctx, a.tel, serviceName, "spawn_actor", func(ctx context.Context) (relay.Actor, error) {
		var payload []byte
		if data != nil {
			raw, err := json.Marshal(data)
			if err != nil {
				return relay.Actor{}, fmt.Errorf("encode actor data: %w", err)
			}
			payload = raw
		}
		return a.relay.Instantiate(ctx, relay.InstantiateSpec{
			Prefab:     prefab,
			Position:   pos,
			Rotation:   rot,
			Data:       payload,
			RoomObject: roomObject,
		})
	}, attribute.String("prefab", prefab))
}

// Destroy removes an actor.
func (a *ActorRegistry) Destroy(ctx context.Context, id relay.ActorID) error {
	return observability.Run(ctx, a.tel, serviceName, "destroy_actor", func(ctx context.Context) error {
		return a.relay.Destroy(ctx, id)
	}, attribute.Int64("actor_id", int64(id)))
}

// Adopt takes ownership of an actor for the local peer.
func (a *ActorRegistry) Adopt(ctx context.Context, id relay.ActorID) error {
	return observability.Run(ctx, a.tel, serviceName, "adopt_actor", func(ctx context.Context) error {
		return a.relay.RequestOwnership(ctx, id)
	}, attribute.Int64("actor_id", int64(id)))
}

// Transfer hands an actor to another player.
func (a *ActorRegistry) Transfer(ctx context.Context, id relay.ActorID, newOwner int) error {
	return observability.Run(ctx, a.tel, serviceName, "transfer_actor", func(ctx context.Context) error {
		return a.relay.TransferOwnership(ctx, id, newOwner)
	}, attribute.Int64("actor_id", int64(id)))
}

// Invoke sends an RPC addressed to an actor, or to the room when id is zero.
func (a *ActorRegistry) Invoke(ctx context.Context, id relay.ActorID, method string, args any, target relay.Target) error {
	return a.relay.RPC(ctx, target, id, method, args)
}

// ByPrefab returns the known actors of prefab ordered oldest first.
func (a *ActorRegistry) ByPrefab(prefab string) []relay.Actor {
	var out []relay.Actor
	for _, actor := range a.relay.Actors() {
		if actor.Prefab == prefab {
			out = append(out, actor)
		}
	}
	return out
}

// Orphans returns actors of prefab with no owner.
func (a *ActorRegistry) Orphans(prefab string) []relay.Actor {
	var out []relay.Actor
	for _, actor := range a.ByPrefab(prefab) {
		if actor.Orphaned() {
			out = append(out, actor)
		}
	}
	return out
}

// Lookup returns an actor by id.
func (a *ActorRegistry) Lookup(id relay.ActorID) (relay.Actor, bool) {
	return a.relay.Actor(id)
}

// LocalActorNumber is the local peer's actor number in the room.
func (a *ActorRegistry) LocalActorNumber() int {
	return a.relay.LocalPlayer().ActorNumber
}
