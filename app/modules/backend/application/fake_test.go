package backendservice

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"

	backendjwt "github.com/Black-And-White-Club/arena-sync/app/modules/backend/infrastructure/jwt"
	backenddb "github.com/Black-And-White-Club/arena-sync/app/modules/backend/infrastructure/repositories"
)

// FakeDB runs transactions inline.
type FakeDB struct {
	bun.IDB
}

func (f *FakeDB) RunInTx(ctx context.Context, _ *sql.TxOptions, fn func(context.Context, bun.Tx) error) error {
	return fn(ctx, bun.Tx{})
}

// FakeRepository is a programmable backenddb.Repository.
type FakeRepository struct {
	trace []string

	GetPlayerFunc              func(ctx context.Context, db bun.IDB, wallet string) (*backenddb.Player, error)
	UpsertPlayerFunc           func(ctx context.Context, db bun.IDB, player *backenddb.Player) error
	SetStakeFunc               func(ctx context.Context, db bun.IDB, wallet string, staked bool) error
	InsertLeaderboardEntryFunc func(ctx context.Context, db bun.IDB, entry *backenddb.LeaderboardEntry) error
	ListLeaderboardFunc        func(ctx context.Context, db bun.IDB, roomID string) ([]backenddb.LeaderboardEntry, error)
	InsertTraceFunc            func(ctx context.Context, db bun.IDB, trace *backenddb.Trace) (bool, error)
	GetTraceFunc               func(ctx context.Context, db bun.IDB, digest string) (*backenddb.Trace, error)
	MarkTraceArchivedFunc      func(ctx context.Context, db bun.IDB, digest string, at time.Time) error
}

var _ backenddb.Repository = (*FakeRepository)(nil)

func (f *FakeRepository) Trace() []string { return f.trace }

func (f *FakeRepository) GetPlayer(ctx context.Context, db bun.IDB, wallet string) (*backenddb.Player, error) {
	f.trace = append(f.trace, "GetPlayer")
	if f.GetPlayerFunc != nil {
		return f.GetPlayerFunc(ctx, db, wallet)
	}
	return nil, backenddb.ErrNotFound
}

func (f *FakeRepository) UpsertPlayer(ctx context.Context, db bun.IDB, player *backenddb.Player) error {
	f.trace = append(f.trace, "UpsertPlayer")
	if f.UpsertPlayerFunc != nil {
		return f.UpsertPlayerFunc(ctx, db, player)
	}
	return nil
}

func (f *FakeRepository) SetStake(ctx context.Context, db bun.IDB, wallet string, staked bool) error {
	f.trace = append(f.trace, "SetStake")
	if f.SetStakeFunc != nil {
		return f.SetStakeFunc(ctx, db, wallet, staked)
	}
	return nil
}

func (f *FakeRepository) InsertLeaderboardEntry(ctx context.Context, db bun.IDB, entry *backenddb.LeaderboardEntry) error {
	f.trace = append(f.trace, "InsertLeaderboardEntry")
	if f.InsertLeaderboardEntryFunc != nil {
		return f.InsertLeaderboardEntryFunc(ctx, db, entry)
	}
	return nil
}

func (f *FakeRepository) ListLeaderboard(ctx context.Context, db bun.IDB, roomID string) ([]backenddb.LeaderboardEntry, error) {
	f.trace = append(f.trace, "ListLeaderboard")
	if f.ListLeaderboardFunc != nil {
		return f.ListLeaderboardFunc(ctx, db, roomID)
	}
	return nil, nil
}

func (f *FakeRepository) InsertTrace(ctx context.Context, db bun.IDB, trace *backenddb.Trace) (bool, error) {
	f.trace = append(f.trace, "InsertTrace")
	if f.InsertTraceFunc != nil {
		return f.InsertTraceFunc(ctx, db, trace)
	}
	return true, nil
}

func (f *FakeRepository) GetTrace(ctx context.Context, db bun.IDB, digest string) (*backenddb.Trace, error) {
	f.trace = append(f.trace, "GetTrace")
	if f.GetTraceFunc != nil {
		return f.GetTraceFunc(ctx, db, digest)
	}
	return nil, backenddb.ErrNotFound
}

func (f *FakeRepository) MarkTraceArchived(ctx context.Context, db bun.IDB, digest string, at time.Time) error {
	f.trace = append(f.trace, "MarkTraceArchived")
	if f.MarkTraceArchivedFunc != nil {
		return f.MarkTraceArchivedFunc(ctx, db, digest, at)
	}
	return nil
}

// FakeQueue records scheduled archives.
type FakeQueue struct {
	Digests []string
	Err     error
}

func (q *FakeQueue) EnqueueArchive(_ context.Context, digest string) error {
	if q.Err != nil {
		return q.Err
	}
	q.Digests = append(q.Digests, digest)
	return nil
}

// FakeTokens issues predictable tokens.
type FakeTokens struct{}

var _ backendjwt.Provider = FakeTokens{}

func (FakeTokens) GenerateToken(wallet string, _ time.Duration) (string, error) {
	return "token-" + wallet, nil
}

func (FakeTokens) ValidateToken(token string) (string, error) {
	if len(token) > 6 && token[:6] == "token-" {
		return token[6:], nil
	}
	return "", backendjwt.ErrInvalidToken
}
