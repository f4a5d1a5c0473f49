// Package relaytest provides a programmable relay.Client for service tests.
package relaytest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

// SentRPC is an RPC captured by FakeClient.
type SentRPC struct {
	Target  relay.Target
	ActorID relay.ActorID
	Method  string
	Args    json.RawMessage
}

// Decode unmarshals the captured arguments into v.
func (s SentRPC) Decode(v any) error { return json.Unmarshal(s.Args, v) }

// FakeClient is an in-memory relay.Client. Room state is set directly by tests; operations
// apply their default effect unless the matching Func field is set.
type FakeClient struct {
	mu    sync.Mutex
	trace []string

	connected bool
	roomName  string
	local     relay.Player
	players   map[int]relay.Player
	master    int
	props     relay.Properties
	actors    map[relay.ActorID]relay.Actor
	nextID    relay.ActorID
	seq       int64
	sent      []SentRPC
	batches   []relay.Properties

	ConnectFunc           func(ctx context.Context) error
	JoinLobbyFunc         func(ctx context.Context) error
	JoinOrCreateRoomFunc  func(ctx context.Context, name string, opts relay.RoomOptions) error
	RejoinRoomFunc        func(ctx context.Context, name string) error
	LeaveRoomFunc         func(ctx context.Context) error
	DisconnectFunc        func(ctx context.Context) error
	SetRoomPropertiesFunc func(ctx context.Context, batch relay.Properties) error
	InstantiateFunc       func(ctx context.Context, spec relay.InstantiateSpec) (relay.Actor, error)
	DestroyFunc           func(ctx context.Context, id relay.ActorID) error
	RequestOwnershipFunc  func(ctx context.Context, id relay.ActorID) error
	RPCFunc               func(ctx context.Context, target relay.Target, actorID relay.ActorID, method string, args any) error
}

var _ relay.Client = (*FakeClient)(nil)

// NewFakeClient creates a disconnected fake for a player named name.
func NewFakeClient(name string) *FakeClient {
	return &FakeClient{
		local:   relay.Player{Name: name},
		players: make(map[int]relay.Player),
		props:   relay.Properties{},
		actors:  make(map[relay.ActorID]relay.Actor),
	}
}

func (f *FakeClient) record(step string) {
	f.trace = append(f.trace, step)
}

// Trace returns the sequence of operations invoked on the fake.
func (f *FakeClient) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

// CountOf returns how many times step appears in the trace.
func (f *FakeClient) CountOf(step string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.trace {
		if s == step {
			n++
		}
	}
	return n
}

// --- test setup helpers ---

// EnterRoom places the local player in a room with the given other players. master is an actor
// number. An entry in others carrying localActor replaces the local player's details.
func (f *FakeClient) EnterRoom(name string, localActor int, master int, others ...relay.Player) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	f.roomName = name
	f.local.ActorNumber = localActor
	f.players = map[int]relay.Player{localActor: f.local}
	for _, p := range others {
		if p.ActorNumber == localActor {
			f.local = p
		}
		f.players[p.ActorNumber] = p
	}
	f.master = master
}

// AddPlayer adds a remote player.
func (f *FakeClient) AddPlayer(p relay.Player) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players[p.ActorNumber] = p
}

// RemovePlayer removes a player.
func (f *FakeClient) RemovePlayer(actorNumber int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.players, actorNumber)
}

// SetMaster changes the master client.
func (f *FakeClient) SetMaster(actorNumber int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.master = actorNumber
}

// SetConnected sets the connection flag.
func (f *FakeClient) SetConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = v
	if !v {
		f.roomName = ""
	}
}

// PutActor inserts or replaces an actor.
func (f *FakeClient) PutActor(a relay.Actor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.Sequence == 0 {
		f.seq++
		a.Sequence = f.seq
	}
	if a.ID > f.nextID {
		f.nextID = a.ID
	}
	f.actors[a.ID] = a
}

// SetProperties replaces keys of the property bag without recording a write.
func (f *FakeClient) SetProperties(p relay.Properties) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.props.Merge(p.Clone())
}

// Sent returns captured RPCs, optionally filtered by method.
func (f *FakeClient) Sent(method string) []SentRPC {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SentRPC
	for _, s := range f.sent {
		if method == "" || s.Method == method {
			out = append(out, s)
		}
	}
	return out
}

// Batches returns every property batch written through SetRoomProperties.
func (f *FakeClient) Batches() []relay.Properties {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]relay.Properties(nil), f.batches...)
}

// --- relay.Client ---

func (f *FakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.record("Connect")
	fn := f.ConnectFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	f.SetConnected(true)
	return nil
}

func (f *FakeClient) JoinLobby(ctx context.Context) error {
	f.mu.Lock()
	f.record("JoinLobby")
	fn := f.JoinLobbyFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return nil
}

func (f *FakeClient) JoinOrCreateRoom(ctx context.Context, name string, opts relay.RoomOptions) error {
	f.mu.Lock()
	f.record("JoinOrCreateRoom:" + name)
	fn := f.JoinOrCreateRoomFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, name, opts)
	}
	return nil
}

func (f *FakeClient) RejoinRoom(ctx context.Context, name string) error {
	f.mu.Lock()
	f.record("RejoinRoom:" + name)
	fn := f.RejoinRoomFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, name)
	}
	return nil
}

func (f *FakeClient) LeaveRoom(ctx context.Context) error {
	f.mu.Lock()
	f.record("LeaveRoom")
	fn := f.LeaveRoomFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	f.mu.Lock()
	f.roomName = ""
	f.mu.Unlock()
	return nil
}

func (f *FakeClient) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	f.record("Disconnect")
	fn := f.DisconnectFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	f.SetConnected(false)
	return nil
}

func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *FakeClient) InRoom() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roomName != ""
}

func (f *FakeClient) RoomName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roomName
}

func (f *FakeClient) LocalPlayer() relay.Player {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.local
	p.IsMaster = f.roomName != "" && p.ActorNumber == f.master
	return p
}

func (f *FakeClient) Players() []relay.Player {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roomName == "" {
		return nil
	}
	out := make([]relay.Player, 0, len(f.players))
	for _, p := range f.players {
		p.IsMaster = p.ActorNumber == f.master
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActorNumber < out[j].ActorNumber })
	return out
}

func (f *FakeClient) Master() (relay.Player, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[f.master]
	if !ok || f.roomName == "" {
		return relay.Player{}, false
	}
	p.IsMaster = true
	return p, true
}

func (f *FakeClient) IsMaster() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roomName != "" && f.local.ActorNumber == f.master
}

func (f *FakeClient) Properties() relay.Properties {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.props.Clone()
}

func (f *FakeClient) SetRoomProperties(ctx context.Context, batch relay.Properties) error {
	f.mu.Lock()
	f.record("SetRoomProperties")
	fn := f.SetRoomPropertiesFunc
	f.mu.Unlock()
	if fn != nil {
		if err := fn(ctx, batch); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.props.Merge(batch.Clone())
	f.batches = append(f.batches, batch.Clone())
	return nil
}

func (f *FakeClient) Instantiate(ctx context.Context, spec relay.InstantiateSpec) (relay.Actor, error) {
	f.mu.Lock()
	f.record("Instantiate:" + spec.Prefab)
	fn := f.InstantiateFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, spec)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.seq++
	a := relay.Actor{
		ID:         f.nextID,
		Prefab:     spec.Prefab,
		Owner:      f.local.ActorNumber,
		Creator:    f.local.ActorNumber,
		Position:   spec.Position,
		Rotation:   spec.Rotation,
		Data:       spec.Data,
		RoomObject: spec.RoomObject,
		Sequence:   f.seq,
	}
	f.actors[a.ID] = a
	return a, nil
}

func (f *FakeClient) Destroy(ctx context.Context, id relay.ActorID) error {
	f.mu.Lock()
	f.record(fmt.Sprintf("Destroy:%d", id))
	fn := f.DestroyFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.actors[id]; !ok {
		return relay.ErrActorNotFound
	}
	delete(f.actors, id)
	return nil
}

func (f *FakeClient) RequestOwnership(ctx context.Context, id relay.ActorID) error {
	f.mu.Lock()
	f.record(fmt.Sprintf("RequestOwnership:%d", id))
	fn := f.RequestOwnershipFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.actors[id]
	if !ok {
		return relay.ErrActorNotFound
	}
	a.Owner = f.local.ActorNumber
	f.actors[id] = a
	return nil
}

func (f *FakeClient) TransferOwnership(_ context.Context, id relay.ActorID, newOwner int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("TransferOwnership:%d:%d", id, newOwner))
	a, ok := f.actors[id]
	if !ok {
		return relay.ErrActorNotFound
	}
	a.Owner = newOwner
	f.actors[id] = a
	return nil
}

func (f *FakeClient) Actors() []relay.Actor {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]relay.Actor, 0, len(f.actors))
	for _, a := range f.actors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func (f *FakeClient) Actor(id relay.ActorID) (relay.Actor, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.actors[id]
	return a, ok
}

func (f *FakeClient) RPC(ctx context.Context, target relay.Target, actorID relay.ActorID, method string, args any) error {
	f.mu.Lock()
	f.record("RPC:" + method)
	fn := f.RPCFunc
	f.mu.Unlock()
	if fn != nil {
		if err := fn(ctx, target, actorID, method, args); err != nil {
			return err
		}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, SentRPC{Target: target, ActorID: actorID, Method: method, Args: raw})
	return nil
}
