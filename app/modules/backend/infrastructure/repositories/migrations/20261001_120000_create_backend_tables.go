package backendmigrations

import (
	"context"
	"fmt"

	backenddb "github.com/Black-And-White-Club/arena-sync/app/modules/backend/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating players, leaderboard_entries and traces tables...")

		models := []any{
			(*backenddb.Player)(nil),
			(*backenddb.LeaderboardEntry)(nil),
			(*backenddb.Trace)(nil),
		}
		for _, model := range models {
			if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return err
			}
		}

		indexes := []string{
			"CREATE INDEX IF NOT EXISTS idx_leaderboard_entries_room_rank ON leaderboard_entries (room_id, score DESC, kills DESC, created_at ASC)",
			"CREATE INDEX IF NOT EXISTS idx_leaderboard_entries_wallet ON leaderboard_entries (wallet_address)",
			"CREATE INDEX IF NOT EXISTS idx_traces_room_id ON traces (room_id)",
		}
		for _, stmt := range indexes {
			if _, err := db.NewRaw(stmt).Exec(ctx); err != nil {
				return err
			}
		}

		fmt.Println("Backend tables created successfully!")
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping backend tables...")

		models := []any{
			(*backenddb.Trace)(nil),
			(*backenddb.LeaderboardEntry)(nil),
			(*backenddb.Player)(nil),
		}
		for _, model := range models {
			if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
