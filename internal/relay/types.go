package relay

import (
	"encoding/json"
	"math"
	"time"
)

// MaxPlayers is the human capacity of every arena room.
const MaxPlayers = 6

// ActorID is the relay-assigned identity of a network-spawned object.
type ActorID int64

// Properties is a room property bag. Values are JSON documents so every transport carries them unchanged.
type Properties map[string]json.RawMessage

// Clone returns a deep copy of p.
func (p Properties) Clone() Properties {
	if p == nil {
		return Properties{}
	}
	out := make(Properties, len(p))
	for k, v := range p {
		cp := make(json.RawMessage, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// Merge overwrites keys of p with the keys of batch.
func (p Properties) Merge(batch Properties) {
	for k, v := range batch {
		p[k] = v
	}
}

// Player is a human participant of a room.
type Player struct {
	ActorNumber int    `json:"actor_number"`
	Name        string `json:"name"`
	UserID      string `json:"user_id,omitempty"`
	IsMaster    bool   `json:"is_master"`
}

// Vector3 is a world position.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Dist returns the euclidean distance between v and o.
func (v Vector3) Dist(o Vector3) float64 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Quaternion is a world orientation.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity is the zero rotation.
var Identity = Quaternion{W: 1}

// Actor is a replicated object tracked by the relay.
type Actor struct {
	ID       ActorID         `json:"id"`
	Prefab   string          `json:"prefab"`
	Owner    int             `json:"owner"`
	Creator  int             `json:"creator"`
	Position Vector3         `json:"position"`
	Rotation Quaternion      `json:"rotation"`
	Data     json.RawMessage `json:"data,omitempty"`
	// RoomObject actors survive their owner leaving and become owner-less.
	RoomObject bool `json:"room_object"`
	// Sequence orders actors by creation inside a room.
	Sequence int64 `json:"sequence"`
}

// Orphaned reports whether the actor has no owning peer.
func (a Actor) Orphaned() bool { return a.Owner == 0 }

// RoomOptions configure room creation.
type RoomOptions struct {
	IsVisible         bool          `json:"is_visible"`
	IsOpen            bool          `json:"is_open"`
	MaxPlayers        int           `json:"max_players"`
	EmptyRoomTTL      time.Duration `json:"empty_room_ttl"`
	PlayerTTL         time.Duration `json:"player_ttl"`
	InitialProperties Properties    `json:"initial_properties,omitempty"`
	LobbyProperties   []string      `json:"lobby_properties,omitempty"`
}

// RoomInfo is a lobby listing entry.
type RoomInfo struct {
	Name        string     `json:"name"`
	PlayerCount int        `json:"player_count"`
	MaxPlayers  int        `json:"max_players"`
	IsOpen      bool       `json:"is_open"`
	IsVisible   bool       `json:"is_visible"`
	Properties  Properties `json:"properties,omitempty"`
}

// RoomSnapshot is the full room state handed to a peer when it joins.
type RoomSnapshot struct {
	Name        string      `json:"name"`
	Options     RoomOptions `json:"options"`
	Players     []Player    `json:"players"`
	Master      int         `json:"master"`
	Properties  Properties  `json:"properties"`
	Actors      []Actor     `json:"actors"`
	LocalPlayer Player      `json:"local_player"`
}

// Target selects RPC recipients.
type Target string

const (
	TargetAll          Target = "all"
	TargetOthers       Target = "others"
	TargetMasterClient Target = "master"
)

// DisconnectCause explains why a peer left the relay.
type DisconnectCause string

const (
	CauseClientLogic   DisconnectCause = "client_logic"
	CauseServerTimeout DisconnectCause = "server_timeout"
	CauseClientTimeout DisconnectCause = "client_timeout"
	CauseException     DisconnectCause = "exception"
	CauseServerClosed  DisconnectCause = "server_closed"
)

// Voluntary reports whether the local peer asked for the disconnect.
func (c DisconnectCause) Voluntary() bool { return c == CauseClientLogic }
