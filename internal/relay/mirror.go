package relay

import (
	"sort"
	"sync"
)

// Mirror is the client-side copy of relay state, rebuilt from the event stream.
// Every transport applies events to its Mirror before handing them to the peer,
// so queries made while handling an event reflect that event.
type Mirror struct {
	mu        sync.RWMutex
	connected bool
	inLobby   bool
	room      *RoomSnapshot
	actors    map[ActorID]Actor
	local     Player
	rooms     []RoomInfo
}

// NewMirror creates an empty mirror for a peer with the given display name.
func NewMirror(name, userID string) *Mirror {
	return &Mirror{
		local:  Player{Name: name, UserID: userID},
		actors: make(map[ActorID]Actor),
	}
}

// Apply folds e into the mirror.
func (m *Mirror) Apply(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch e.Type {
	case EventConnectedToMaster:
		m.connected = true
	case EventDisconnected:
		m.connected = false
		m.inLobby = false
		m.leaveRoomLocked()
	case EventJoinedLobby:
		m.inLobby = true
	case EventRoomListUpdate:
		m.rooms = append([]RoomInfo(nil), e.Rooms...)
	case EventJoinedRoom:
		if e.Room == nil {
			return
		}
		snap := *e.Room
		snap.Players = append([]Player(nil), e.Room.Players...)
		snap.Properties = e.Room.Properties.Clone()
		m.room = &snap
		m.inLobby = false
		m.local = snap.LocalPlayer
		m.actors = make(map[ActorID]Actor, len(snap.Actors))
		for _, a := range snap.Actors {
			m.actors[a.ID] = a
		}
		m.markMasterLocked(snap.Master)
	case EventLeftRoom:
		m.leaveRoomLocked()
	case EventPlayerEntered:
		if m.room == nil || e.Player == nil {
			return
		}
		m.room.Players = append(m.room.Players, *e.Player)
	case EventPlayerLeft:
		if m.room == nil || e.Player == nil {
			return
		}
		kept := m.room.Players[:0]
		for _, p := range m.room.Players {
			if p.ActorNumber != e.Player.ActorNumber {
				kept = append(kept, p)
			}
		}
		m.room.Players = kept
	case EventMasterSwitched:
		if m.room == nil || e.Player == nil {
			return
		}
		m.markMasterLocked(e.Player.ActorNumber)
	case EventPropertiesUpdated:
		if m.room == nil {
			return
		}
		if m.room.Properties == nil {
			m.room.Properties = Properties{}
		}
		m.room.Properties.Merge(e.Changed.Clone())
	case EventActorInstantiated, EventOwnershipChanged:
		if e.Actor != nil {
			m.actors[e.Actor.ID] = *e.Actor
		}
	case EventActorDestroyed:
		if e.Actor != nil {
			delete(m.actors, e.Actor.ID)
		}
	}
}

func (m *Mirror) leaveRoomLocked() {
	m.room = nil
	m.actors = make(map[ActorID]Actor)
	m.local.IsMaster = false
	m.local.ActorNumber = 0
}

func (m *Mirror) markMasterLocked(master int) {
	m.room.Master = master
	for i := range m.room.Players {
		m.room.Players[i].IsMaster = m.room.Players[i].ActorNumber == master
	}
	m.local.IsMaster = m.local.ActorNumber == master
}

func (m *Mirror) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *Mirror) InLobby() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inLobby
}

func (m *Mirror) InRoom() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.room != nil
}

func (m *Mirror) RoomName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.room == nil {
		return ""
	}
	return m.room.Name
}

func (m *Mirror) LocalPlayer() Player {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.local
}

// Players returns the room's players ordered by actor number.
func (m *Mirror) Players() []Player {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.room == nil {
		return nil
	}
	out := append([]Player(nil), m.room.Players...)
	sort.Slice(out, func(i, j int) bool { return out[i].ActorNumber < out[j].ActorNumber })
	return out
}

func (m *Mirror) Master() (Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.room == nil {
		return Player{}, false
	}
	for _, p := range m.room.Players {
		if p.ActorNumber == m.room.Master {
			return p, true
		}
	}
	return Player{}, false
}

func (m *Mirror) IsMaster() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.room != nil && m.local.IsMaster
}

func (m *Mirror) Properties() Properties {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.room == nil {
		return Properties{}
	}
	return m.room.Properties.Clone()
}

// Actors returns all known actors ordered by creation.
func (m *Mirror) Actors() []Actor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Actor, 0, len(m.actors))
	for _, a := range m.actors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func (m *Mirror) Actor(id ActorID) (Actor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.actors[id]
	return a, ok
}

// Rooms returns the last lobby listing.
func (m *Mirror) Rooms() []RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RoomInfo(nil), m.rooms...)
}
