package relay

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMirror_TracksRoomThroughEvents(t *testing.T) {
	m := NewMirror("bob", "wallet-bob")

	m.Apply(Event{Type: EventConnectedToMaster})
	m.Apply(Event{Type: EventJoinedRoom, Room: &RoomSnapshot{
		Name:        "arena",
		Players:     []Player{{ActorNumber: 1, Name: "alice"}, {ActorNumber: 2, Name: "bob"}},
		Master:      1,
		Properties:  Properties{"GameState": json.RawMessage(`"Waiting"`)},
		Actors:      []Actor{{ID: 7, Prefab: "NPC", Owner: 1, Sequence: 1}},
		LocalPlayer: Player{ActorNumber: 2, Name: "bob"},
	}})

	if m.IsMaster() {
		t.Fatalf("bob should not be master yet")
	}

	m.Apply(Event{Type: EventPropertiesUpdated, Changed: Properties{"GameState": json.RawMessage(`"InProgress"`)}})
	m.Apply(Event{Type: EventPlayerLeft, Player: &Player{ActorNumber: 1, Name: "alice"}})
	m.Apply(Event{Type: EventOwnershipChanged, Actor: &Actor{ID: 7, Prefab: "NPC", Owner: 0, Sequence: 1}})
	m.Apply(Event{Type: EventMasterSwitched, Player: &Player{ActorNumber: 2, Name: "bob"}})

	if !m.IsMaster() {
		t.Errorf("bob should be master after the switch")
	}
	if got := string(m.Properties()["GameState"]); got != `"InProgress"` {
		t.Errorf("GameState = %s, want \"InProgress\"", got)
	}
	wantPlayers := []Player{{ActorNumber: 2, Name: "bob", IsMaster: true}}
	if diff := cmp.Diff(wantPlayers, m.Players()); diff != "" {
		t.Errorf("Players() mismatch (-want +got):\n%s", diff)
	}
	a, ok := m.Actor(7)
	if !ok || !a.Orphaned() {
		t.Errorf("actor 7 should be known and orphaned, got %+v ok=%v", a, ok)
	}

	m.Apply(Event{Type: EventDisconnected, Cause: CauseServerTimeout})
	if m.InRoom() || m.Connected() || len(m.Actors()) != 0 {
		t.Errorf("disconnect should clear room state")
	}
}

func TestEvent_HandlerKey(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{name: "plain event", event: Event{Type: EventPlayerEntered}, want: "player_entered"},
		{name: "rpc routes by method", event: Event{Type: EventRPC, RPC: &RPC{Method: "SyncTimer"}}, want: "rpc.SyncTimer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.HandlerKey(); got != tt.want {
				t.Errorf("HandlerKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
