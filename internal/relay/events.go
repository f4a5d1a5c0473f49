package relay

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// EventType names a relay callback delivered to a peer.
type EventType string

const (
	EventConnectedToMaster EventType = "connected_to_master"
	EventDisconnected      EventType = "disconnected"
	EventJoinedLobby       EventType = "joined_lobby"
	EventRoomListUpdate    EventType = "room_list_update"
	EventJoinedRoom        EventType = "joined_room"
	EventJoinRoomFailed    EventType = "join_room_failed"
	EventLeftRoom          EventType = "left_room"
	EventPlayerEntered     EventType = "player_entered"
	EventPlayerLeft        EventType = "player_left"
	EventMasterSwitched    EventType = "master_switched"
	EventPropertiesUpdated EventType = "properties_updated"
	EventActorInstantiated EventType = "actor_instantiated"
	EventActorDestroyed    EventType = "actor_destroyed"
	EventOwnershipChanged  EventType = "ownership_changed"
	EventRPC               EventType = "rpc"
)

// MetadataEventType is the watermill metadata key carrying the EventType.
const MetadataEventType = "event_type"

// MetadataRPCMethod is the watermill metadata key carrying the RPC method for EventRPC.
const MetadataRPCMethod = "rpc_method"

// Event is a relay callback. Only the fields relevant to Type are set.
type Event struct {
	Type    EventType       `json:"type"`
	Cause   DisconnectCause `json:"cause,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Rooms   []RoomInfo      `json:"rooms,omitempty"`
	Room    *RoomSnapshot   `json:"room,omitempty"`
	Player  *Player         `json:"player,omitempty"`
	Changed Properties      `json:"changed,omitempty"`
	Actor   *Actor          `json:"actor,omitempty"`
	RPC     *RPC            `json:"rpc,omitempty"`
}

// RPC is a remote procedure call addressed to the room or to one actor.
type RPC struct {
	Method  string          `json:"method"`
	Sender  int             `json:"sender"`
	ActorID ActorID         `json:"actor_id,omitempty"`
	Target  Target          `json:"target"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// Decode unmarshals the RPC arguments into v.
func (r *RPC) Decode(v any) error {
	if len(r.Args) == 0 {
		return fmt.Errorf("rpc %s: %w", r.Method, ErrEmptyPayload)
	}
	if err := json.Unmarshal(r.Args, v); err != nil {
		return fmt.Errorf("rpc %s: %w", r.Method, err)
	}
	return nil
}

// HandlerKey returns the key a router uses to dispatch e.
func (e Event) HandlerKey() string {
	if e.Type == EventRPC && e.RPC != nil {
		return RPCHandlerKey(e.RPC.Method)
	}
	return string(e.Type)
}

// RPCHandlerKey returns the dispatch key for an RPC method.
func RPCHandlerKey(method string) string { return "rpc." + method }

// ToMessage encodes e as a watermill message, reusing correlationID when given.
func ToMessage(e Event, correlationID string) (*message.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal relay event %s: %w", e.Type, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataEventType, string(e.Type))
	if e.RPC != nil {
		msg.Metadata.Set(MetadataRPCMethod, e.RPC.Method)
	}
	if correlationID == "" {
		correlationID = watermill.NewUUID()
	}
	middleware.SetCorrelationID(correlationID, msg)
	return msg, nil
}

// FromMessage decodes a relay event from a watermill message.
func FromMessage(msg *message.Message) (Event, error) {
	var e Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal relay event %s: %w", msg.UUID, err)
	}
	return e, nil
}
