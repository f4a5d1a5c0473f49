// Package relay defines the realtime relay primitives consumed by the arena core: the room directory,
// the replicated property bag, the actor registry and RPC fan-out.
package relay

import "context"

// Directory moves the local peer between master server, lobby and rooms.
// Room-level outcomes (joined, join failed) are reported as events, not as errors.
type Directory interface {
	Connect(ctx context.Context) error
	JoinLobby(ctx context.Context) error
	JoinOrCreateRoom(ctx context.Context, name string, opts RoomOptions) error
	RejoinRoom(ctx context.Context, name string) error
	LeaveRoom(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// RoomView exposes the local peer's current view of its room.
type RoomView interface {
	Connected() bool
	InRoom() bool
	RoomName() string
	LocalPlayer() Player
	Players() []Player
	Master() (Player, bool)
	IsMaster() bool
	Properties() Properties
}

// PropertyWriter merges a batch into the room property bag. The relay applies the batch atomically
// and fans it out to every peer in the room, the writer included.
type PropertyWriter interface {
	SetRoomProperties(ctx context.Context, batch Properties) error
}

// InstantiateSpec describes an actor to spawn.
type InstantiateSpec struct {
	Prefab     string
	Position   Vector3
	Rotation   Quaternion
	Data       []byte
	RoomObject bool
}

// ActorRegistry spawns, destroys and re-owns replicated actors.
type ActorRegistry interface {
	Instantiate(ctx context.Context, spec InstantiateSpec) (Actor, error)
	Destroy(ctx context.Context, id ActorID) error
	RequestOwnership(ctx context.Context, id ActorID) error
	TransferOwnership(ctx context.Context, id ActorID, newOwner int) error
	Actors() []Actor
	Actor(id ActorID) (Actor, bool)
}

// Messenger sends RPCs. A zero actorID addresses the room.
type Messenger interface {
	RPC(ctx context.Context, target Target, actorID ActorID, method string, args any) error
}

// Client is everything a peer needs from the relay.
type Client interface {
	Directory
	RoomView
	PropertyWriter
	ActorRegistry
	Messenger
	Close() error
}
