package backenddb

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Repository defines backend persistence.
//
// Error semantics:
//   - ErrNotFound: record does not exist
//   - ErrNoRowsAffected: UPDATE matched no rows
//   - Other errors: infrastructure failures
type Repository interface {
	// GetPlayer returns ErrNotFound for unknown wallets.
	GetPlayer(ctx context.Context, db bun.IDB, wallet string) (*Player, error)

	// UpsertPlayer inserts the player or refreshes its username.
	UpsertPlayer(ctx context.Context, db bun.IDB, player *Player) error

	// SetStake creates the player if needed and sets its stake flag.
	SetStake(ctx context.Context, db bun.IDB, wallet string, staked bool) error

	InsertLeaderboardEntry(ctx context.Context, db bun.IDB, entry *LeaderboardEntry) error

	// ListLeaderboard returns a room's entries by score, then kills, then submission time.
	ListLeaderboard(ctx context.Context, db bun.IDB, roomID string) ([]LeaderboardEntry, error)

	// InsertTrace stores a trace unless its digest is already known. It reports whether a row was written.
	InsertTrace(ctx context.Context, db bun.IDB, trace *Trace) (bool, error)

	GetTrace(ctx context.Context, db bun.IDB, digest string) (*Trace, error)

	MarkTraceArchived(ctx context.Context, db bun.IDB, digest string, at time.Time) error
}
