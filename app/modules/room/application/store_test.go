package roomservice

import (
	"context"
	"errors"
	"testing"

	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
	"github.com/Black-And-White-Club/arena-sync/internal/relay/relaytest"
)

func TestPropertyStore_Commit(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(f *relaytest.FakeClient)
		wantErr    error
		wantWrites int
	}{
		{
			name:       "master commits",
			setup:      func(f *relaytest.FakeClient) { f.EnterRoom("arena", 1, 1) },
			wantWrites: 1,
		},
		{
			name:    "non-master is refused",
			setup:   func(f *relaytest.FakeClient) { f.EnterRoom("arena", 2, 1, relay.Player{ActorNumber: 1, Name: "host"}) },
			wantErr: ErrNotMaster,
		},
		{
			name:    "outside a room",
			setup:   func(f *relaytest.FakeClient) {},
			wantErr: ErrNotInRoom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := relaytest.NewFakeClient("alice")
			tt.setup(fake)
			store := NewPropertyStore(fake, observability.NopTelemetry())

			err := store.Commit(context.Background(), NewBatch().GameTime(42))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Commit() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Commit() unexpected error: %v", err)
			}
			if got := len(fake.Batches()); got != tt.wantWrites {
				t.Errorf("writes = %d, want %d", got, tt.wantWrites)
			}
			if tt.wantWrites > 0 && store.Snapshot().GameTime != 42 {
				t.Errorf("GameTime = %v, want 42", store.Snapshot().GameTime)
			}
		})
	}
}

func TestPropertyStore_InitializeIfMissing(t *testing.T) {
	fake := relaytest.NewFakeClient("alice")
	fake.EnterRoom("arena", 1, 1)
	store := NewPropertyStore(fake, observability.NopTelemetry())

	existing, _ := NewBatch().GameTime(99).Properties()
	fake.SetProperties(existing)

	initial, _ := NewBatch().GameTime(300).GameState(StateWaiting).Properties()
	if err := store.InitializeIfMissing(context.Background(), initial); err != nil {
		t.Fatalf("InitializeIfMissing() error: %v", err)
	}

	snap := store.Snapshot()
	if snap.GameTime != 99 {
		t.Errorf("GameTime overwritten: %v", snap.GameTime)
	}
	batches := fake.Batches()
	if len(batches) != 1 {
		t.Fatalf("writes = %d, want 1", len(batches))
	}
	if _, ok := batches[0][KeyGameTime]; ok {
		t.Errorf("batch should not carry the existing key")
	}
}

func TestMasterMailbox_DefersUntilMasterKnown(t *testing.T) {
	ctx := context.Background()
	fake := relaytest.NewFakeClient("bob")
	fake.EnterRoom("arena", 2, 0)
	box := NewMasterMailbox(fake, observability.NopLogger())

	if err := box.Send(ctx, "RequestStatsUpdate", map[string]int{"Score": 10}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if box.Pending() != 1 || len(fake.Sent("")) != 0 {
		t.Fatalf("request should be deferred, pending=%d sent=%d", box.Pending(), len(fake.Sent("")))
	}

	fake.AddPlayer(relay.Player{ActorNumber: 3, Name: "carol"})
	fake.SetMaster(3)
	box.Flush(ctx)

	sent := fake.Sent("RequestStatsUpdate")
	if len(sent) != 1 || sent[0].Target != relay.TargetMasterClient {
		t.Fatalf("sent = %+v, want one master-directed request", sent)
	}
	if box.Pending() != 0 {
		t.Errorf("pending = %d after flush", box.Pending())
	}
}

func TestMasterMailbox_FailedFlushKeepsOrder(t *testing.T) {
	ctx := context.Background()
	fake := relaytest.NewFakeClient("bob")
	fake.EnterRoom("arena", 2, 0)
	box := NewMasterMailbox(fake, observability.NopLogger())
	_ = box.Send(ctx, "first", nil)
	_ = box.Send(ctx, "second", nil)

	fake.AddPlayer(relay.Player{ActorNumber: 1, Name: "host"})
	fake.SetMaster(1)
	fake.RPCFunc = func(context.Context, relay.Target, relay.ActorID, string, any) error {
		return relay.ErrTransport
	}
	box.Flush(ctx)
	if box.Pending() != 2 {
		t.Fatalf("pending = %d, want 2", box.Pending())
	}

	fake.RPCFunc = nil
	box.Flush(ctx)
	sent := fake.Sent("")
	if len(sent) != 2 || sent[0].Method != "first" || sent[1].Method != "second" {
		t.Errorf("sent order = %+v", sent)
	}
}
