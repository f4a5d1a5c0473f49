// Package natsrelay runs the relay hub behind NATS request/reply so peers in separate processes
// can share rooms. Room property bags can be kept in a JetStream key-value bucket.
package natsrelay

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

// DefaultPrefix is the subject namespace for relay requests.
const DefaultPrefix = "arena.relay"

// Operations carried in the last subject token.
const (
	OpConnect           = "connect"
	OpHeartbeat         = "heartbeat"
	OpJoinLobby         = "join_lobby"
	OpJoinOrCreateRoom  = "join_or_create_room"
	OpRejoinRoom        = "rejoin_room"
	OpLeaveRoom         = "leave_room"
	OpDisconnect        = "disconnect"
	OpSetProperties     = "set_properties"
	OpInstantiate       = "instantiate"
	OpDestroy           = "destroy"
	OpRequestOwnership  = "request_ownership"
	OpTransferOwnership = "transfer_ownership"
	OpRPC               = "rpc"
)

// Subject returns the request subject for op.
func Subject(prefix, op string) string { return prefix + "." + op }

// EventSubject is where the server publishes events for a client inbox.
func EventSubject(prefix, inbox string) string { return prefix + ".events." + inbox }

// Request is the body of every relay request. Only the fields relevant to the operation are set.
type Request struct {
	PeerID   string                 `json:"peer_id"`
	Inbox    string                 `json:"inbox,omitempty"`
	Name     string                 `json:"name,omitempty"`
	UserID   string                 `json:"user_id,omitempty"`
	Room     string                 `json:"room,omitempty"`
	Options  *relay.RoomOptions     `json:"options,omitempty"`
	Batch    relay.Properties       `json:"batch,omitempty"`
	Spec     *relay.InstantiateSpec `json:"spec,omitempty"`
	ActorID  relay.ActorID          `json:"actor_id,omitempty"`
	NewOwner int                    `json:"new_owner,omitempty"`
	Target   relay.Target           `json:"target,omitempty"`
	Method   string                 `json:"method,omitempty"`
	Args     json.RawMessage        `json:"args,omitempty"`
	Cause    relay.DisconnectCause  `json:"cause,omitempty"`
}

// Response answers a Request. Code is empty on success.
type Response struct {
	Code    string       `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
	Actor   *relay.Actor `json:"actor,omitempty"`
}

var errorCodes = []struct {
	code string
	err  error
}{
	{"not_connected", relay.ErrNotConnected},
	{"already_connected", relay.ErrAlreadyConnected},
	{"not_in_room", relay.ErrNotInRoom},
	{"room_not_found", relay.ErrRoomNotFound},
	{"room_full", relay.ErrRoomFull},
	{"room_closed", relay.ErrRoomClosed},
	{"actor_not_found", relay.ErrActorNotFound},
	{"ownership_denied", relay.ErrOwnershipDenied},
	{"no_master", relay.ErrNoMaster},
	{"empty_payload", relay.ErrEmptyPayload},
	{"transport", relay.ErrTransport},
}

// ErrorResponse encodes err so the client can restore the relay sentinel.
func ErrorResponse(err error) Response {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return Response{Code: c.code, Message: err.Error()}
		}
	}
	return Response{Code: "internal", Message: err.Error()}
}

// Err turns a response back into an error wrapping the matching relay sentinel.
func (r Response) Err() error {
	if r.Code == "" {
		return nil
	}
	for _, c := range errorCodes {
		if c.code == r.Code {
			if r.Message == c.err.Error() {
				return c.err
			}
			return fmt.Errorf("%w: %s", c.err, r.Message)
		}
	}
	return fmt.Errorf("relay server error: %s", r.Message)
}

// Timings control request deadlines and liveness.
type Timings struct {
	RequestTimeout    time.Duration
	HeartbeatInterval time.Duration
	// PeerTimeout is how long the server waits for a heartbeat before dropping a peer.
	PeerTimeout   time.Duration
	SweepInterval time.Duration
}

// DefaultTimings match a relay running on a local network.
func DefaultTimings() Timings {
	return Timings{
		RequestTimeout:    5 * time.Second,
		HeartbeatInterval: time.Second,
		PeerTimeout:       10 * time.Second,
		SweepInterval:     2 * time.Second,
	}
}
