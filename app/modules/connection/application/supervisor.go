package connectionservice

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	"github.com/Black-And-White-Club/arena-sync/internal/clock"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

const serviceName = "connection"

// Relay is the slice of the relay the supervisor drives.
type Relay interface {
	relay.Directory
	Connected() bool
	InRoom() bool
	RoomName() string
}

// InputReleaser gives input capture back to the player when the connection drops.
type InputReleaser interface {
	ReleaseInput(ctx context.Context)
}

// StatusSink receives status lines for the player.
type StatusSink interface {
	Status(ctx context.Context, text string)
}

// Deps are the collaborators of a Supervisor. Input and Status are optional.
type Deps struct {
	Relay  Relay
	Input  InputReleaser
	Status StatusSink
	// LeaderboardShowing reports whether the end-of-game leaderboard is up; no reconnect happens then.
	LeaderboardShowing func() bool
}

// Supervisor walks the peer through master server, lobby and room, and brings it back after an
// involuntary disconnect.
type Supervisor struct {
	deps    Deps
	cfg     Config
	clk     clock.Clock
	tel     observability.Telemetry
	metrics observability.GameMetrics

	mu           sync.Mutex
	state        State
	lastRoom     string
	rejoin       bool
	reconnecting bool
	terminal     bool
	cancel       context.CancelFunc
	loops        sync.WaitGroup
}

// NewSupervisor creates a disconnected supervisor.
func NewSupervisor(deps Deps, cfg Config, clk clock.Clock, tel observability.Telemetry, metrics observability.GameMetrics) *Supervisor {
	if clk == nil {
		clk = clock.Real{}
	}
	if metrics == nil {
		metrics = observability.NoOpMetrics{}
	}
	if deps.LeaderboardShowing == nil {
		deps.LeaderboardShowing = func() bool { return false }
	}
	return &Supervisor{
		deps:    deps,
		cfg:     cfg,
		clk:     clk,
		tel:     tel.WithDefaults(),
		metrics: metrics,
		state:   StateDisconnected,
	}
}

func (s *Supervisor) status(ctx context.Context, text string) {
	if s.deps.Status != nil {
		s.deps.Status.Status(ctx, text)
	}
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reconnecting reports whether a reconnect loop is running.
func (s *Supervisor) Reconnecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnecting
}

// Failed reports whether the last reconnect loop gave up.
func (s *Supervisor) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal
}

// LastRoom is the room the peer will try to rejoin.
func (s *Supervisor) LastRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRoom
}

// Connect starts the transport connection. The lobby join follows on ConnectedToMaster.
func (s *Supervisor) Connect(ctx context.Context) error {
	return observability.Run(ctx, s.tel, serviceName, "connect", func(ctx context.Context) error {
		s.setState(StateConnectingToMaster)
		s.status(ctx, StatusConnecting)
		if err := s.deps.Relay.Connect(ctx); err != nil {
			s.setState(StateDisconnected)
			return err
		}
		return nil
	})
}

// OnConnectedToMaster rejoins the remembered room after a reconnect, or joins the lobby.
func (s *Supervisor) OnConnectedToMaster(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateConnectedToMaster
	room, rejoin := s.lastRoom, s.rejoin && s.lastRoom != ""
	s.mu.Unlock()

	if rejoin {
		s.tel.Logger.InfoContext(ctx, "Rejoining room", attr.Room(room))
		s.status(ctx, fmt.Sprintf("Rejoining room %s...", room))
		s.setState(StateJoiningRoom)
		return s.deps.Relay.RejoinRoom(ctx, room)
	}
	s.status(ctx, StatusJoiningLobby)
	return s.joinLobby(ctx)
}

func (s *Supervisor) joinLobby(ctx context.Context) error {
	s.setState(StateJoiningLobby)
	if err := s.deps.Relay.JoinLobby(ctx); err != nil {
		s.setState(StateConnectedToMaster)
		return err
	}
	return nil
}

// OnJoinedLobby records the lobby join.
func (s *Supervisor) OnJoinedLobby(ctx context.Context) {
	s.setState(StateInLobby)
	s.status(ctx, "")
}

// JoinRoom joins name, creating it with the standard options if it does not exist.
func (s *Supervisor) JoinRoom(ctx context.Context, name string) error {
	return observability.Run(ctx, s.tel, serviceName, "join_room", func(ctx context.Context) error {
		if name == "" {
			return ErrEmptyRoomName
		}
		opts, err := roomservice.DefaultRoomOptions(s.cfg.GameDuration, s.clk.Now())
		if err != nil {
			return err
		}
		s.setState(StateJoiningRoom)
		s.status(ctx, fmt.Sprintf("Joining room %s...", name))
		if err := s.deps.Relay.JoinOrCreateRoom(ctx, name, opts); err != nil {
			s.setState(StateInLobby)
			return err
		}
		return nil
	}, attribute.String("room", name))
}

// OnJoinedRoom remembers the room for a later rejoin.
func (s *Supervisor) OnJoinedRoom(ctx context.Context, name string) {
	s.mu.Lock()
	s.state = StateInRoom
	s.lastRoom = name
	s.rejoin = false
	s.mu.Unlock()
	s.status(ctx, fmt.Sprintf("Joined room %s", name))
}

// OnJoinRoomFailed falls back to a fresh lobby join when a rejoin was refused.
func (s *Supervisor) OnJoinRoomFailed(ctx context.Context, reason string) error {
	s.mu.Lock()
	wasRejoin := s.rejoin
	if wasRejoin {
		s.lastRoom = ""
		s.rejoin = false
	}
	s.state = StateConnectedToMaster
	s.mu.Unlock()

	s.tel.Logger.WarnContext(ctx, "Failed to join room", attr.String("reason", reason), attr.Bool("rejoin", wasRejoin))
	s.status(ctx, "Failed to join room: "+reason)
	if wasRejoin {
		return s.joinLobby(ctx)
	}
	return nil
}

// LeaveRoom leaves the current room; the room is forgotten and will not be rejoined.
func (s *Supervisor) LeaveRoom(ctx context.Context) error {
	s.mu.Lock()
	s.lastRoom = ""
	s.rejoin = false
	s.mu.Unlock()
	return s.deps.Relay.LeaveRoom(ctx)
}

// OnLeftRoom returns the state to the master server.
func (s *Supervisor) OnLeftRoom(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateInRoom {
		s.state = StateConnectedToMaster
	}
}

// Disconnect closes the connection voluntarily and stops any reconnect loop.
func (s *Supervisor) Disconnect(ctx context.Context) error {
	s.Cancel()
	s.mu.Lock()
	s.rejoin = false
	s.mu.Unlock()
	return s.deps.Relay.Disconnect(ctx)
}

// HandleDisconnected reacts to a lost connection. A voluntary disconnect or one during the
// end-of-game leaderboard is final; any other cause starts a reconnect.
func (s *Supervisor) HandleDisconnected(ctx context.Context, cause relay.DisconnectCause) {
	s.mu.Lock()
	wasInRoom := s.state == StateInRoom || s.state == StateJoiningRoom
	s.state = StateDisconnected
	s.mu.Unlock()

	s.tel.Logger.WarnContext(ctx, "Disconnected from relay",
		attr.String("cause", string(cause)),
		attr.Bool("was_in_room", wasInRoom),
	)
	if s.deps.Input != nil {
		s.deps.Input.ReleaseInput(ctx)
	}

	if s.deps.LeaderboardShowing() {
		s.tel.Logger.InfoContext(ctx, "Disconnected while showing leaderboard, not reconnecting")
		s.status(ctx, "")
		return
	}
	if cause.Voluntary() {
		s.Cancel()
		return
	}

	s.mu.Lock()
	s.rejoin = wasInRoom && s.lastRoom != ""
	s.mu.Unlock()
	s.status(ctx, fmt.Sprintf("Disconnected: %s. Attempting to reconnect...", cause))
	s.TryReconnect(ctx)
}

// HandleAppPaused reconnects when the app resumes without a connection.
func (s *Supervisor) HandleAppPaused(ctx context.Context, paused bool) {
	if !paused {
		s.resume(ctx)
	}
}

// HandleAppFocused reconnects when the app regains focus without a connection.
func (s *Supervisor) HandleAppFocused(ctx context.Context, focused bool) {
	if focused {
		s.resume(ctx)
	}
}

func (s *Supervisor) resume(ctx context.Context) {
	if s.deps.Relay.Connected() || s.Reconnecting() {
		return
	}
	s.TryReconnect(ctx)
}
