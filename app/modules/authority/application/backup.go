package authorityservice

import (
	"maps"
	"time"

	statsservice "github.com/Black-And-White-Club/arena-sync/app/modules/stats/application"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

// Backup is the state a peer needs to take over as master.
type Backup struct {
	Stats        map[string]statsservice.Entry
	GameTime     float64
	HasGameTime  bool
	GameActive   bool
	BotPositions map[relay.ActorID]relay.Vector3
	TakenAt      time.Time
}

// Restorable reports whether the backup holds a running game worth re-broadcasting.
func (b Backup) Restorable() bool {
	return b.GameActive && b.HasGameTime && b.GameTime > 0
}

func (b Backup) clone() Backup {
	b.Stats = maps.Clone(b.Stats)
	b.BotPositions = maps.Clone(b.BotPositions)
	return b
}
