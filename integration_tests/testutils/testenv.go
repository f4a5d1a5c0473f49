package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/testcontainers/testcontainers-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/migrate"

	backendmigrations "github.com/Black-And-White-Club/arena-sync/app/modules/backend/infrastructure/repositories/migrations"
	"github.com/Black-And-White-Club/arena-sync/config"
	"github.com/Black-And-White-Club/arena-sync/integration_tests/containers"
	"github.com/Black-And-White-Club/arena-sync/internal/relay/natsrelay"
)

// TestEnvironment holds the containers and connections shared by an integration package.
type TestEnvironment struct {
	Ctx      context.Context
	Cancel   context.CancelFunc
	DB       *bun.DB
	NatsConn *nats.Conn
	// Rooms is the relay's room property bucket.
	Rooms  jetstream.KeyValue
	Config *config.Config

	containers []testcontainers.Container
}

// Options picks which containers to start.
type Options struct {
	Postgres bool
	NATS     bool
}

// NewTestEnvironment starts the requested containers, connects to them and migrates the database.
func NewTestEnvironment(opts Options) (*TestEnvironment, error) {
	ctx, cancel := context.WithCancel(context.Background())
	env := &TestEnvironment{Ctx: ctx, Cancel: cancel, Config: config.Default()}

	if opts.Postgres {
		pg, dsn, err := containers.SetupPostgresContainer(ctx)
		if err != nil {
			env.Cleanup()
			return nil, err
		}
		env.containers = append(env.containers, pg)
		env.Config.Postgres.DSN = dsn

		sqlDB, err := sql.Open("pgx", dsn)
		if err != nil {
			env.Cleanup()
			return nil, fmt.Errorf("failed to open sql DB connection: %w", err)
		}
		env.DB = bun.NewDB(sqlDB, pgdialect.New())

		if err := runMigrations(ctx, env.DB, dsn); err != nil {
			env.Cleanup()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	if opts.NATS {
		broker, err := containers.SetupRelayBroker(ctx, natsrelay.DefaultBucket)
		if err != nil {
			env.Cleanup()
			return nil, err
		}
		env.containers = append(env.containers, broker)
		env.Config.NATS.URL = broker.URL
		env.NatsConn = broker.Conn
		env.Rooms = broker.Rooms
	}
	return env, nil
}

func runMigrations(ctx context.Context, db *bun.DB, dsn string) error {
	migrator := migrate.NewMigrator(db, backendmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("backend migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()
	riverMigrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}
	if _, err := riverMigrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		return fmt.Errorf("failed to run River migrations: %w", err)
	}
	return nil
}

// ResetDatabase empties the backend tables between tests.
func (env *TestEnvironment) ResetDatabase(t *testing.T) {
	t.Helper()
	_, err := env.DB.ExecContext(env.Ctx, "TRUNCATE players, leaderboard_entries, traces")
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

// Cleanup closes connections and terminates containers.
func (env *TestEnvironment) Cleanup() {
	if env.NatsConn != nil {
		env.NatsConn.Close()
	}
	if env.DB != nil {
		_ = env.DB.Close()
	}
	for _, c := range env.containers {
		if err := c.Terminate(context.Background()); err != nil {
			log.Printf("Failed to terminate container: %v", err)
		}
	}
	env.Cancel()
}
