// Package memrelay is an in-process relay: a hub that owns rooms, master election, property bags
// and actors, and a Client per peer. It backs tests, local simulation and the NATS relay server.
package memrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Black-And-White-Club/arena-sync/internal/clock"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

// Sink receives the events addressed to one peer. Push must not block.
type Sink interface {
	Push(e relay.Event)
}

type peerState struct {
	id       string
	name     string
	userID   string
	sink     Sink
	inLobby  bool
	room     string
	actorNum int
	lastSeen time.Time
}

type member struct {
	peerID string
	player relay.Player
}

type room struct {
	name      string
	opts      relay.RoomOptions
	members   []*member
	master    int
	nextActor int
	props     relay.Properties
	actors    map[relay.ActorID]*relay.Actor
	seq       int64
}

func (r *room) member(actorNum int) *member {
	for _, m := range r.members {
		if m.player.ActorNumber == actorNum {
			return m
		}
	}
	return nil
}

func (r *room) players() []relay.Player {
	out := make([]relay.Player, 0, len(r.members))
	for _, m := range r.members {
		p := m.player
		p.IsMaster = p.ActorNumber == r.master
		out = append(out, p)
	}
	return out
}

func (r *room) actorList() []relay.Actor {
	out := make([]relay.Actor, 0, len(r.actors))
	for _, a := range r.actors {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// Hub is the authoritative relay state. All methods are safe for concurrent use.
type Hub struct {
	mu        sync.Mutex
	peers     map[string]*peerState
	rooms     map[string]*room
	backend   PropertyBackend
	clock     clock.Clock
	logger    *slog.Logger
	nextActor relay.ActorID
	available bool
}

// NewHub creates a hub storing property bags in backend.
func NewHub(backend PropertyBackend, c clock.Clock, logger *slog.Logger) *Hub {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	if c == nil {
		c = clock.Real{}
	}
	return &Hub{
		peers:     make(map[string]*peerState),
		rooms:     make(map[string]*room),
		backend:   backend,
		clock:     c,
		logger:    logger,
		available: true,
	}
}

// SetAvailable toggles whether new connections are accepted. Used to simulate an unreachable relay.
func (h *Hub) SetAvailable(ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.available = ok
}

// Connect registers a peer and reports ConnectedToMaster to it.
func (h *Hub) Connect(_ context.Context, peerID, name, userID string, sink Sink) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.available {
		return relay.ErrTransport
	}
	if _, ok := h.peers[peerID]; ok {
		return relay.ErrAlreadyConnected
	}

	h.peers[peerID] = &peerState{id: peerID, name: name, userID: userID, sink: sink, lastSeen: h.clock.Now()}
	sink.Push(relay.Event{Type: relay.EventConnectedToMaster})
	h.logger.Info("Peer connected", attr.String("peer_id", peerID), attr.String("name", name))
	return nil
}

// JoinLobby subscribes the peer to room list updates.
func (h *Hub) JoinLobby(_ context.Context, peerID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.peerLocked(peerID)
	if err != nil {
		return err
	}
	p.inLobby = true
	p.sink.Push(relay.Event{Type: relay.EventJoinedLobby})
	p.sink.Push(relay.Event{Type: relay.EventRoomListUpdate, Rooms: h.roomListLocked()})
	return nil
}

// JoinOrCreateRoom joins name, creating it with opts when it does not exist.
func (h *Hub) JoinOrCreateRoom(ctx context.Context, peerID, name string, opts relay.RoomOptions) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.peerLocked(peerID)
	if err != nil {
		return err
	}
	if p.room != "" {
		p.sink.Push(relay.Event{Type: relay.EventJoinRoomFailed, Reason: "already in a room"})
		return nil
	}

	r, ok := h.rooms[name]
	if !ok {
		if opts.MaxPlayers <= 0 {
			opts.MaxPlayers = relay.MaxPlayers
		}
		props, err := h.backend.Create(ctx, name, opts.InitialProperties)
		if err != nil {
			p.sink.Push(relay.Event{Type: relay.EventJoinRoomFailed, Reason: err.Error()})
			return nil
		}
		r = &room{
			name:    name,
			opts:    opts,
			props:   props,
			actors:  make(map[relay.ActorID]*relay.Actor),
			members: nil,
		}
		h.rooms[name] = r
		h.logger.Info("Room created", attr.Room(name))
	}

	h.admitLocked(p, r)
	return nil
}

// RejoinRoom joins an existing room by name.
func (h *Hub) RejoinRoom(_ context.Context, peerID, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.peerLocked(peerID)
	if err != nil {
		return err
	}
	r, ok := h.rooms[name]
	if !ok {
		p.sink.Push(relay.Event{Type: relay.EventJoinRoomFailed, Reason: relay.ErrRoomNotFound.Error()})
		return nil
	}
	if p.room != "" {
		p.sink.Push(relay.Event{Type: relay.EventJoinRoomFailed, Reason: "already in a room"})
		return nil
	}
	h.admitLocked(p, r)
	return nil
}

func (h *Hub) admitLocked(p *peerState, r *room) {
	switch {
	case !r.opts.IsOpen:
		p.sink.Push(relay.Event{Type: relay.EventJoinRoomFailed, Reason: relay.ErrRoomClosed.Error()})
		return
	case len(r.members) >= r.opts.MaxPlayers:
		p.sink.Push(relay.Event{Type: relay.EventJoinRoomFailed, Reason: relay.ErrRoomFull.Error()})
		return
	}

	r.nextActor++
	player := relay.Player{ActorNumber: r.nextActor, Name: p.name, UserID: p.userID}
	r.members = append(r.members, &member{peerID: p.id, player: player})
	if r.master == 0 {
		r.master = player.ActorNumber
	}
	player.IsMaster = r.master == player.ActorNumber

	p.room = r.name
	p.actorNum = player.ActorNumber
	p.inLobby = false

	snap := &relay.RoomSnapshot{
		Name:        r.name,
		Options:     r.opts,
		Players:     r.players(),
		Master:      r.master,
		Properties:  r.props.Clone(),
		Actors:      r.actorList(),
		LocalPlayer: player,
	}
	p.sink.Push(relay.Event{Type: relay.EventJoinedRoom, Room: snap})
	h.broadcastLocked(r, p.id, relay.Event{Type: relay.EventPlayerEntered, Player: &player})
	h.publishRoomListLocked()

	h.logger.Info("Peer joined room",
		attr.String("peer_id", p.id),
		attr.Room(r.name),
		attr.Actor("actor_number", player.ActorNumber),
		attr.Bool("master", player.IsMaster),
	)
}

// LeaveRoom removes the peer from its room and returns it to the master server.
func (h *Hub) LeaveRoom(ctx context.Context, peerID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.peerLocked(peerID)
	if err != nil {
		return err
	}
	if p.room == "" {
		return relay.ErrNotInRoom
	}
	h.removeFromRoomLocked(ctx, p)
	p.sink.Push(relay.Event{Type: relay.EventLeftRoom})
	p.sink.Push(relay.Event{Type: relay.EventConnectedToMaster})
	return nil
}

// Disconnect drops the peer with the given cause.
func (h *Hub) Disconnect(ctx context.Context, peerID string, cause relay.DisconnectCause) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.peerLocked(peerID)
	if err != nil {
		return err
	}
	if p.room != "" {
		h.removeFromRoomLocked(ctx, p)
	}
	delete(h.peers, peerID)
	p.sink.Push(relay.Event{Type: relay.EventDisconnected, Cause: cause})
	h.logger.Info("Peer disconnected", attr.String("peer_id", peerID), attr.String("cause", string(cause)))
	return nil
}

func (h *Hub) removeFromRoomLocked(ctx context.Context, p *peerState) {
	r, ok := h.rooms[p.room]
	p.room = ""
	leaving := p.actorNum
	p.actorNum = 0
	if !ok {
		return
	}

	var left relay.Player
	kept := r.members[:0]
	for _, m := range r.members {
		if m.player.ActorNumber == leaving {
			left = m.player
			continue
		}
		kept = append(kept, m)
	}
	r.members = kept

	if len(r.members) == 0 {
		delete(h.rooms, r.name)
		if err := h.backend.Delete(ctx, r.name); err != nil {
			h.logger.Warn("Failed to delete room properties", attr.Room(r.name), attr.Error(err))
		}
		h.publishRoomListLocked()
		h.logger.Info("Room closed", attr.Room(r.name))
		return
	}

	for id, a := range r.actors {
		if a.Owner != leaving {
			continue
		}
		if a.RoomObject {
			a.Owner = 0
			orphan := *a
			h.broadcastLocked(r, "", relay.Event{Type: relay.EventOwnershipChanged, Actor: &orphan})
			continue
		}
		gone := *a
		delete(r.actors, id)
		h.broadcastLocked(r, "", relay.Event{Type: relay.EventActorDestroyed, Actor: &gone})
	}

	h.broadcastLocked(r, "", relay.Event{Type: relay.EventPlayerLeft, Player: &left})

	if r.master == leaving {
		next := r.members[0].player
		for _, m := range r.members[1:] {
			if m.player.ActorNumber < next.ActorNumber {
				next = m.player
			}
		}
		r.master = next.ActorNumber
		next.IsMaster = true
		h.broadcastLocked(r, "", relay.Event{Type: relay.EventMasterSwitched, Player: &next})
		h.logger.Info("Master client switched", attr.Room(r.name), attr.Actor("new_master", next.ActorNumber))
	}
	h.publishRoomListLocked()
}

// SetRoomProperties merges batch atomically and fans it out to the whole room.
func (h *Hub) SetRoomProperties(ctx context.Context, peerID string, batch relay.Properties) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, r, err := h.roomOfLocked(peerID)
	if err != nil {
		return err
	}
	merged, err := h.backend.Merge(ctx, r.name, batch)
	if err != nil {
		return fmt.Errorf("merge room properties: %w", err)
	}
	r.props = merged
	h.broadcastLocked(r, "", relay.Event{Type: relay.EventPropertiesUpdated, Changed: batch.Clone()})

	for _, k := range r.opts.LobbyProperties {
		if _, ok := batch[k]; ok {
			h.publishRoomListLocked()
			break
		}
	}
	return nil
}

// Instantiate spawns an actor owned by the calling peer.
func (h *Hub) Instantiate(_ context.Context, peerID string, spec relay.InstantiateSpec) (relay.Actor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, r, err := h.roomOfLocked(peerID)
	if err != nil {
		return relay.Actor{}, err
	}
	h.nextActor++
	r.seq++
	a := &relay.Actor{
		ID:         h.nextActor,
		Prefab:     spec.Prefab,
		Owner:      p.actorNum,
		Creator:    p.actorNum,
		Position:   spec.Position,
		Rotation:   spec.Rotation,
		Data:       json.RawMessage(spec.Data),
		RoomObject: spec.RoomObject,
		Sequence:   r.seq,
	}
	r.actors[a.ID] = a
	out := *a
	h.broadcastLocked(r, "", relay.Event{Type: relay.EventActorInstantiated, Actor: &out})
	return out, nil
}

// Destroy removes an actor. Only its owner or the master may destroy it.
func (h *Hub) Destroy(_ context.Context, peerID string, id relay.ActorID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, r, err := h.roomOfLocked(peerID)
	if err != nil {
		return err
	}
	a, ok := r.actors[id]
	if !ok {
		return relay.ErrActorNotFound
	}
	if a.Owner != p.actorNum && r.master != p.actorNum {
		return relay.ErrOwnershipDenied
	}
	gone := *a
	delete(r.actors, id)
	h.broadcastLocked(r, "", relay.Event{Type: relay.EventActorDestroyed, Actor: &gone})
	return nil
}

// RequestOwnership grants the actor to the caller when it is orphaned or the caller is master.
func (h *Hub) RequestOwnership(_ context.Context, peerID string, id relay.ActorID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, r, err := h.roomOfLocked(peerID)
	if err != nil {
		return err
	}
	a, ok := r.actors[id]
	if !ok {
		return relay.ErrActorNotFound
	}
	if !a.Orphaned() && r.master != p.actorNum {
		return relay.ErrOwnershipDenied
	}
	a.Owner = p.actorNum
	out := *a
	h.broadcastLocked(r, "", relay.Event{Type: relay.EventOwnershipChanged, Actor: &out})
	return nil
}

// TransferOwnership hands an actor to another player in the room.
func (h *Hub) TransferOwnership(_ context.Context, peerID string, id relay.ActorID, newOwner int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, r, err := h.roomOfLocked(peerID)
	if err != nil {
		return err
	}
	a, ok := r.actors[id]
	if !ok {
		return relay.ErrActorNotFound
	}
	if a.Owner != p.actorNum && r.master != p.actorNum && !a.Orphaned() {
		return relay.ErrOwnershipDenied
	}
	if r.member(newOwner) == nil {
		return fmt.Errorf("transfer actor %d to %d: %w", id, newOwner, relay.ErrOwnershipDenied)
	}
	a.Owner = newOwner
	out := *a
	h.broadcastLocked(r, "", relay.Event{Type: relay.EventOwnershipChanged, Actor: &out})
	return nil
}

// RPC delivers a call to the selected targets in the caller's room.
func (h *Hub) RPC(_ context.Context, peerID string, target relay.Target, actorID relay.ActorID, method string, args json.RawMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, r, err := h.roomOfLocked(peerID)
	if err != nil {
		return err
	}
	call := &relay.RPC{Method: method, Sender: p.actorNum, ActorID: actorID, Target: target, Args: args}
	e := relay.Event{Type: relay.EventRPC, RPC: call}

	switch target {
	case relay.TargetAll:
		h.broadcastLocked(r, "", e)
	case relay.TargetOthers:
		h.broadcastLocked(r, p.id, e)
	case relay.TargetMasterClient:
		m := r.member(r.master)
		if m == nil {
			return relay.ErrNoMaster
		}
		if peer, ok := h.peers[m.peerID]; ok {
			peer.sink.Push(e)
		}
	default:
		return fmt.Errorf("unknown rpc target %q", target)
	}
	return nil
}

// Heartbeat marks the peer as alive.
func (h *Hub) Heartbeat(peerID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, err := h.peerLocked(peerID)
	if err != nil {
		return err
	}
	p.lastSeen = h.clock.Now()
	return nil
}

// Sweep disconnects peers silent for longer than timeout and returns their ids.
func (h *Hub) Sweep(ctx context.Context, timeout time.Duration) []string {
	h.mu.Lock()
	cutoff := h.clock.Now().Add(-timeout)
	var stale []string
	for id, p := range h.peers {
		if p.lastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	h.mu.Unlock()

	sort.Strings(stale)
	for _, id := range stale {
		if err := h.Disconnect(ctx, id, relay.CauseServerTimeout); err != nil {
			h.logger.Warn("Failed to drop stale peer", attr.String("peer_id", id), attr.Error(err))
		}
	}
	return stale
}

// RunSweeper calls Sweep every interval until ctx ends.
func (h *Hub) RunSweeper(ctx context.Context, interval, timeout time.Duration) {
	for {
		if err := clock.Sleep(ctx, h.clock, interval); err != nil {
			return
		}
		if dropped := h.Sweep(ctx, timeout); len(dropped) > 0 {
			h.logger.Info("Dropped silent peers", attr.Int("count", len(dropped)))
		}
	}
}

// Rooms returns the current room listing.
func (h *Hub) Rooms() []relay.RoomInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.roomListLocked()
}

func (h *Hub) peerLocked(peerID string) (*peerState, error) {
	p, ok := h.peers[peerID]
	if !ok {
		return nil, relay.ErrNotConnected
	}
	p.lastSeen = h.clock.Now()
	return p, nil
}

func (h *Hub) roomOfLocked(peerID string) (*peerState, *room, error) {
	p, err := h.peerLocked(peerID)
	if err != nil {
		return nil, nil, err
	}
	r, ok := h.rooms[p.room]
	if !ok {
		return nil, nil, relay.ErrNotInRoom
	}
	return p, r, nil
}

func (h *Hub) broadcastLocked(r *room, exceptPeer string, e relay.Event) {
	for _, m := range r.members {
		if m.peerID == exceptPeer {
			continue
		}
		if p, ok := h.peers[m.peerID]; ok {
			p.sink.Push(e)
		}
	}
}

func (h *Hub) roomListLocked() []relay.RoomInfo {
	out := make([]relay.RoomInfo, 0, len(h.rooms))
	for _, r := range h.rooms {
		if !r.opts.IsVisible {
			continue
		}
		exposed := relay.Properties{}
		for _, k := range r.opts.LobbyProperties {
			if v, ok := r.props[k]; ok {
				exposed[k] = v
			}
		}
		out = append(out, relay.RoomInfo{
			Name:        r.name,
			PlayerCount: len(r.members),
			MaxPlayers:  r.opts.MaxPlayers,
			IsOpen:      r.opts.IsOpen,
			IsVisible:   r.opts.IsVisible,
			Properties:  exposed.Clone(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (h *Hub) publishRoomListLocked() {
	rooms := h.roomListLocked()
	for _, p := range h.peers {
		if p.inLobby {
			p.sink.Push(relay.Event{Type: relay.EventRoomListUpdate, Rooms: rooms})
		}
	}
}
