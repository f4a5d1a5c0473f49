package roomservice

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

const serviceName = "room"

// RoomRelay is the slice of the relay the room services need.
type RoomRelay interface {
	relay.RoomView
	relay.PropertyWriter
	relay.Messenger
}

// PropertyStore is the typed, master-guarded view of the room property bag.
type PropertyStore struct {
	relay RoomRelay
	tel   observability.Telemetry
}

// NewPropertyStore creates a store over r.
func NewPropertyStore(r RoomRelay, tel observability.Telemetry) *PropertyStore {
	return &PropertyStore{relay: r, tel: tel.WithDefaults()}
}

// Snapshot decodes the current bag. Decode problems are logged and the partial snapshot returned.
func (s *PropertyStore) Snapshot() Snapshot {
	snap, err := Decode(s.relay.Properties())
	if err != nil {
		s.tel.Logger.Warn("Room properties partially decoded", attr.Room(s.relay.RoomName()), attr.Error(err))
	}
	return snap
}

// Commit writes batch as one atomic merge. Only the master may commit.
func (s *PropertyStore) Commit(ctx context.Context, batch *Batch) error {
	return observability.Run(ctx, s.tel, serviceName, "commit_properties", func(ctx context.Context) error {
		if !s.relay.InRoom() {
			return ErrNotInRoom
		}
		if !s.relay.IsMaster() {
			return ErrNotMaster
		}
		props, err := batch.Properties()
		if err != nil {
			return err
		}
		if len(props) == 0 {
			return nil
		}
		return s.relay.SetRoomProperties(ctx, props)
	}, attribute.String("room", s.relay.RoomName()))
}

// InitializeIfMissing writes the initial keys that are absent from the bag. Master only.
func (s *PropertyStore) InitializeIfMissing(ctx context.Context, initial relay.Properties) error {
	current := s.relay.Properties()
	batch := NewBatch()
	for k, v := range initial {
		if _, ok := current[k]; !ok {
			batch.props[k] = v
		}
	}
	if batch.Empty() {
		return nil
	}
	return s.Commit(ctx, batch)
}

type deferredCall struct {
	method string
	args   any
}

// MasterMailbox sends directed requests to the master client. When no master is known the
// request is held and delivered by Flush once authority is visible again.
type MasterMailbox struct {
	relay  RoomRelay
	logger *slog.Logger

	mu      sync.Mutex
	pending []deferredCall
}

// NewMasterMailbox creates a mailbox over r.
func NewMasterMailbox(r RoomRelay, logger *slog.Logger) *MasterMailbox {
	return &MasterMailbox{relay: r, logger: logger}
}

// Send delivers method to the master, or defers it.
func (m *MasterMailbox) Send(ctx context.Context, method string, args any) error {
	if _, ok := m.relay.Master(); !ok || !m.relay.InRoom() {
		m.mu.Lock()
		m.pending = append(m.pending, deferredCall{method: method, args: args})
		m.mu.Unlock()
		m.logger.InfoContext(ctx, "No master client known, deferring request", attr.String("method", method))
		return nil
	}
	return m.relay.RPC(ctx, relay.TargetMasterClient, 0, method, args)
}

// Flush delivers deferred requests in order. Requests that fail stay queued.
func (m *MasterMailbox) Flush(ctx context.Context) {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for i, call := range pending {
		if err := m.relay.RPC(ctx, relay.TargetMasterClient, 0, call.method, call.args); err != nil {
			m.logger.WarnContext(ctx, "Deferred master request failed", attr.String("method", call.method), attr.Error(err))
			m.mu.Lock()
			m.pending = append(append([]deferredCall(nil), pending[i:]...), m.pending...)
			m.mu.Unlock()
			return
		}
	}
}

// Pending returns the number of deferred requests.
func (m *MasterMailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Clear drops deferred requests, used when the peer leaves its room.
func (m *MasterMailbox) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
}
