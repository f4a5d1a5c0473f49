package backenddb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Repo implements Repository on Postgres.
type Repo struct{}

func NewRepository() Repository {
	return &Repo{}
}

func (r *Repo) GetPlayer(ctx context.Context, db bun.IDB, wallet string) (*Player, error) {
	player := new(Player)
	err := db.NewSelect().
		Model(player).
		Where("wallet = ?", wallet).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("backenddb.GetPlayer: %w", err)
	}
	return player, nil
}

func (r *Repo) UpsertPlayer(ctx context.Context, db bun.IDB, player *Player) error {
	_, err := db.NewInsert().
		Model(player).
		On("CONFLICT (wallet) DO UPDATE").
		Set("username = CASE WHEN EXCLUDED.username = '' THEN p.username ELSE EXCLUDED.username END").
		Set("updated_at = current_timestamp").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("backenddb.UpsertPlayer: %w", err)
	}
	return nil
}

func (r *Repo) SetStake(ctx context.Context, db bun.IDB, wallet string, staked bool) error {
	player := &Player{Wallet: wallet, IsStaked: staked}
	_, err := db.NewInsert().
		Model(player).
		On("CONFLICT (wallet) DO UPDATE").
		Set("is_staked = EXCLUDED.is_staked").
		Set("updated_at = current_timestamp").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("backenddb.SetStake: %w", err)
	}
	return nil
}

func (r *Repo) InsertLeaderboardEntry(ctx context.Context, db bun.IDB, entry *LeaderboardEntry) error {
	_, err := db.NewInsert().Model(entry).Returning("*").Exec(ctx)
	if err != nil {
		return fmt.Errorf("backenddb.InsertLeaderboardEntry: %w", err)
	}
	return nil
}

func (r *Repo) ListLeaderboard(ctx context.Context, db bun.IDB, roomID string) ([]LeaderboardEntry, error) {
	var entries []LeaderboardEntry
	err := db.NewSelect().
		Model(&entries).
		Where("room_id = ?", roomID).
		Order("score DESC", "kills DESC", "created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("backenddb.ListLeaderboard: %w", err)
	}
	return entries, nil
}

func (r *Repo) InsertTrace(ctx context.Context, db bun.IDB, trace *Trace) (bool, error) {
	res, err := db.NewInsert().
		Model(trace).
		On("CONFLICT (digest) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("backenddb.InsertTrace: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("backenddb.InsertTrace: %w", err)
	}
	return n > 0, nil
}

func (r *Repo) GetTrace(ctx context.Context, db bun.IDB, digest string) (*Trace, error) {
	trace := new(Trace)
	err := db.NewSelect().
		Model(trace).
		Where("digest = ?", digest).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("backenddb.GetTrace: %w", err)
	}
	return trace, nil
}

func (r *Repo) MarkTraceArchived(ctx context.Context, db bun.IDB, digest string, at time.Time) error {
	res, err := db.NewUpdate().
		Model((*Trace)(nil)).
		Set("status = ?", TraceStatusArchived).
		Set("archived_at = ?", at).
		Where("digest = ?", digest).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("backenddb.MarkTraceArchived: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("backenddb.MarkTraceArchived: %w", err)
	}
	if n == 0 {
		return ErrNoRowsAffected
	}
	return nil
}
