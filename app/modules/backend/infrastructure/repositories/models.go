package backenddb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Player is a wallet known to the backend.
type Player struct {
	bun.BaseModel `bun:"table:players,alias:p"`

	Wallet          string    `bun:"wallet,pk"`
	Username        string    `bun:"username,notnull,default:''"`
	IsStaked        bool      `bun:"is_staked,notnull,default:false"`
	CurrentRoom     string    `bun:"current_room,notnull,default:''"`
	DurationSeconds int       `bun:"duration_seconds,notnull,default:300"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// LeaderboardEntry is one player's result in one room.
type LeaderboardEntry struct {
	bun.BaseModel `bun:"table:leaderboard_entries,alias:le"`

	ID            uuid.UUID `bun:"id,pk,type:uuid"`
	WalletAddress string    `bun:"wallet_address,notnull"`
	Username      string    `bun:"username,notnull,default:''"`
	RoomID        string    `bun:"room_id,notnull"`
	Kills         int       `bun:"kills,notnull,default:0"`
	Score         int       `bun:"score,notnull,default:0"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

var _ bun.BeforeInsertHook = (*LeaderboardEntry)(nil)

func (e *LeaderboardEntry) BeforeInsert(_ context.Context, _ *bun.InsertQuery) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Trace statuses.
const (
	TraceStatusPending  = "pending"
	TraceStatusArchived = "archived"
)

// Trace is a submitted game record, keyed by the digest of its data.
type Trace struct {
	bun.BaseModel `bun:"table:traces,alias:t"`

	Digest     string          `bun:"digest,pk"`
	RoomID     string          `bun:"room_id,notnull"`
	Title      string          `bun:"title,notnull,default:''"`
	Data       json.RawMessage `bun:"data,type:jsonb,notnull"`
	Status     string          `bun:"status,notnull,default:'pending'"`
	CreatedAt  time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	ArchivedAt time.Time       `bun:"archived_at,nullzero"`
}
