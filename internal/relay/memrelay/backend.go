package memrelay

import (
	"context"
	"sync"

	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

// PropertyBackend stores room property bags on behalf of the hub.
// Merge must apply the whole batch or nothing.
type PropertyBackend interface {
	Create(ctx context.Context, room string, initial relay.Properties) (relay.Properties, error)
	Merge(ctx context.Context, room string, batch relay.Properties) (relay.Properties, error)
	Delete(ctx context.Context, room string) error
}

// MemoryBackend keeps property bags in process memory.
type MemoryBackend struct {
	mu    sync.Mutex
	rooms map[string]relay.Properties
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{rooms: make(map[string]relay.Properties)}
}

func (b *MemoryBackend) Create(_ context.Context, room string, initial relay.Properties) (relay.Properties, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.rooms[room]; ok {
		return existing.Clone(), nil
	}
	b.rooms[room] = initial.Clone()
	return initial.Clone(), nil
}

func (b *MemoryBackend) Merge(_ context.Context, room string, batch relay.Properties) (relay.Properties, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	props, ok := b.rooms[room]
	if !ok {
		return nil, relay.ErrRoomNotFound
	}
	props.Merge(batch.Clone())
	return props.Clone(), nil
}

func (b *MemoryBackend) Delete(_ context.Context, room string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rooms, room)
	return nil
}
