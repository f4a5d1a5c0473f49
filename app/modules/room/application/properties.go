package roomservice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

// Room property keys.
const (
	KeyGameTime        = "GameTime"
	KeyGameState       = "GameState"
	KeyRealPlayerCount = "RealPlayerCount"
	KeyNPCCount        = "NPCCount"
	KeyTotalPlayers    = "TotalPlayers"
	KeyPlayerStats     = "PlayerStats"
	KeyGameEnded       = "GameEnded"
	KeyCreatedAt       = "CreatedAt"
	KeyTraceDigest     = "TraceDigest"
	KeyTraceURL        = "TraceURL"
)

// CreatedAtLayout formats the CreatedAt property.
const CreatedAtLayout = "2006-01-02 15:04:05"

// LobbyKeys are the properties exposed in lobby listings.
var LobbyKeys = []string{KeyGameTime, KeyCreatedAt, KeyGameState, KeyRealPlayerCount, KeyNPCCount, KeyTotalPlayers}

// GameState is the session phase.
type GameState string

const (
	StateWaiting    GameState = "Waiting"
	StateInProgress GameState = "InProgress"
	StateEnding     GameState = "Ending"
)

// PlayerStats is one entry of the PlayerStats property.
type PlayerStats struct {
	Score int `json:"Score"`
	Kills int `json:"Kills"`
}

// Snapshot is a decoded property bag. Missing keys decode to zero values.
type Snapshot struct {
	GameTime        float64                `json:"GameTime"`
	HasGameTime     bool                   `json:"-"`
	GameState       GameState              `json:"GameState"`
	RealPlayerCount int                    `json:"RealPlayerCount"`
	NPCCount        int                    `json:"NPCCount"`
	TotalPlayers    int                    `json:"TotalPlayers"`
	PlayerStats     map[string]PlayerStats `json:"PlayerStats"`
	// StatsOrder lists PlayerStats names in the order they appear in the stored document.
	StatsOrder  []string `json:"-"`
	GameEnded   bool     `json:"GameEnded"`
	CreatedAt   string   `json:"CreatedAt"`
	TraceDigest string   `json:"TraceDigest"`
	TraceURL    string   `json:"TraceURL"`
}

// Decode reads a property bag. Keys that fail to decode are reported but do not stop decoding.
func Decode(props relay.Properties) (Snapshot, error) {
	var (
		s    Snapshot
		errs []error
	)
	read := func(key string, v any) bool {
		raw, ok := props[key]
		if !ok || len(raw) == 0 {
			return false
		}
		if err := json.Unmarshal(raw, v); err != nil {
			errs = append(errs, fmt.Errorf("property %s: %w", key, err))
			return false
		}
		return true
	}

	s.HasGameTime = read(KeyGameTime, &s.GameTime)
	read(KeyGameState, &s.GameState)
	read(KeyRealPlayerCount, &s.RealPlayerCount)
	read(KeyNPCCount, &s.NPCCount)
	read(KeyTotalPlayers, &s.TotalPlayers)
	read(KeyGameEnded, &s.GameEnded)
	read(KeyCreatedAt, &s.CreatedAt)
	read(KeyTraceDigest, &s.TraceDigest)
	read(KeyTraceURL, &s.TraceURL)
	if read(KeyPlayerStats, &s.PlayerStats) {
		s.StatsOrder = objectKeyOrder(props[KeyPlayerStats])
	}
	if s.PlayerStats == nil {
		s.PlayerStats = map[string]PlayerStats{}
	}
	if s.GameState == "" {
		s.GameState = StateWaiting
	}

	if len(errs) > 0 {
		return s, fmt.Errorf("%w: %v", ErrMalformedProperty, errs)
	}
	return s, nil
}

// objectKeyOrder returns the top-level keys of a JSON object in document order.
func objectKeyOrder(raw json.RawMessage) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
	}
	return keys
}

// Batch accumulates property writes. The first encoding error is kept and reported by Properties.
type Batch struct {
	props relay.Properties
	err   error
}

// NewBatch starts an empty batch.
func NewBatch() *Batch {
	return &Batch{props: relay.Properties{}}
}

// Set encodes v under key.
func (b *Batch) Set(key string, v any) *Batch {
	if b.err != nil {
		return b
	}
	raw, err := json.Marshal(v)
	if err != nil {
		b.err = fmt.Errorf("encode %s: %w", key, err)
		return b
	}
	b.props[key] = raw
	return b
}

func (b *Batch) GameTime(seconds float64) *Batch { return b.Set(KeyGameTime, seconds) }
func (b *Batch) GameState(s GameState) *Batch    { return b.Set(KeyGameState, s) }
func (b *Batch) GameEnded(v bool) *Batch         { return b.Set(KeyGameEnded, v) }

// Occupancy writes the three headcount keys together.
func (b *Batch) Occupancy(humans, bots int) *Batch {
	return b.Set(KeyRealPlayerCount, humans).Set(KeyNPCCount, bots).Set(KeyTotalPlayers, humans+bots)
}

// PlayerStats writes the full ledger.
func (b *Batch) PlayerStats(stats map[string]PlayerStats) *Batch {
	return b.Set(KeyPlayerStats, stats)
}

// Empty reports whether nothing has been set.
func (b *Batch) Empty() bool { return len(b.props) == 0 }

// Properties returns the encoded batch.
func (b *Batch) Properties() (relay.Properties, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.props.Clone(), nil
}

// InitialProperties are written by the room creator.
func InitialProperties(duration time.Duration, now time.Time) (relay.Properties, error) {
	return NewBatch().
		GameTime(duration.Seconds()).
		Set(KeyCreatedAt, now.UTC().Format(CreatedAtLayout)).
		GameState(StateWaiting).
		Occupancy(0, 0).
		Properties()
}

// DefaultRoomOptions are the options every arena room is created with.
func DefaultRoomOptions(duration time.Duration, now time.Time) (relay.RoomOptions, error) {
	props, err := InitialProperties(duration, now)
	if err != nil {
		return relay.RoomOptions{}, err
	}
	return relay.RoomOptions{
		IsVisible:         true,
		IsOpen:            true,
		MaxPlayers:        relay.MaxPlayers,
		EmptyRoomTTL:      0,
		PlayerTTL:         0,
		InitialProperties: props,
		LobbyProperties:   append([]string(nil), LobbyKeys...),
	}, nil
}

// StatusText describes a lobby listing entry.
func StatusText(info relay.RoomInfo) string {
	if !info.IsOpen {
		return "Closed"
	}
	if info.MaxPlayers > 0 && info.PlayerCount >= info.MaxPlayers {
		return "Full"
	}
	snap, _ := Decode(info.Properties)
	switch snap.GameState {
	case StateInProgress:
		return "Game in Progress"
	case StateEnding:
		return "Game Ending"
	default:
		return "Waiting for Players"
	}
}

// WalletRoomName is the room a wallet plays in when the backend cannot assign one.
func WalletRoomName(wallet string) string {
	if len(wallet) <= 10 {
		return "Room_" + wallet
	}
	return "Room_" + wallet[:6] + "..." + wallet[len(wallet)-4:]
}
