package natsrelay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Black-And-White-Club/arena-sync/internal/relay"
	"github.com/Black-And-White-Club/arena-sync/internal/relay/memrelay"
)

// DefaultBucket holds room property bags.
const DefaultBucket = "arena_rooms"

const maxMergeAttempts = 16

// KVPropertyBackend keeps room property bags in a JetStream key-value bucket. Merges are
// compare-and-swap on the entry revision, so two relay processes sharing the bucket never
// interleave a batch.
type KVPropertyBackend struct {
	kv jetstream.KeyValue
}

var _ memrelay.PropertyBackend = (*KVPropertyBackend)(nil)

func NewKVPropertyBackend(kv jetstream.KeyValue) *KVPropertyBackend {
	return &KVPropertyBackend{kv: kv}
}

// roomKey encodes the room name into the restricted key alphabet.
func roomKey(room string) string {
	return "room." + base64.RawURLEncoding.EncodeToString([]byte(room))
}

func (b *KVPropertyBackend) Create(ctx context.Context, room string, initial relay.Properties) (relay.Properties, error) {
	if initial == nil {
		initial = relay.Properties{}
	}
	data, err := json.Marshal(initial)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties for room %s: %w", room, err)
	}
	_, err = b.kv.Create(ctx, roomKey(room), data)
	if err == nil {
		return initial.Clone(), nil
	}
	if !errors.Is(err, jetstream.ErrKeyExists) {
		return nil, fmt.Errorf("failed to create property bag for room %s: %w", room, err)
	}
	existing, _, err := b.load(ctx, room)
	return existing, err
}

func (b *KVPropertyBackend) Merge(ctx context.Context, room string, batch relay.Properties) (relay.Properties, error) {
	for range maxMergeAttempts {
		props, revision, err := b.load(ctx, room)
		if err != nil {
			return nil, err
		}
		props.Merge(batch.Clone())
		data, err := json.Marshal(props)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal properties for room %s: %w", room, err)
		}
		_, err = b.kv.Update(ctx, roomKey(room), data, revision)
		if err == nil {
			return props, nil
		}
		if !errors.Is(err, jetstream.ErrKeyExists) {
			return nil, fmt.Errorf("failed to update property bag for room %s: %w", room, err)
		}
	}
	return nil, fmt.Errorf("property bag for room %s kept changing during merge", room)
}

func (b *KVPropertyBackend) Delete(ctx context.Context, room string) error {
	err := b.kv.Purge(ctx, roomKey(room))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete property bag for room %s: %w", room, err)
	}
	return nil
}

func (b *KVPropertyBackend) load(ctx context.Context, room string) (relay.Properties, uint64, error) {
	entry, err := b.kv.Get(ctx, roomKey(room))
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil, 0, relay.ErrRoomNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read property bag for room %s: %w", room, err)
	}
	props := relay.Properties{}
	if err := json.Unmarshal(entry.Value(), &props); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal property bag for room %s: %w", room, err)
	}
	return props, entry.Revision(), nil
}
