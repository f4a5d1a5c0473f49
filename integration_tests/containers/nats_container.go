package containers

import (
	"context"
	"fmt"
	"log"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Black-And-White-Club/arena-sync/internal/natsconn"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
)

// RelayBroker is a NATS server ready for the relay: JetStream persists to a store directory and
// the room property bucket exists.
type RelayBroker struct {
	*nats.NATSContainer
	URL   string
	Conn  *natsgo.Conn
	Rooms jetstream.KeyValue
}

// Close drains the connection and stops the container.
func (b *RelayBroker) Close(ctx context.Context) error {
	if b.Conn != nil {
		b.Conn.Close()
	}
	return b.Terminate(ctx)
}

// SetupRelayBroker starts NATS with JetStream, connects the way the relay does and creates bucket.
func SetupRelayBroker(ctx context.Context, bucket string) (*RelayBroker, error) {
	ctr, err := nats.Run(ctx,
		"nats:2.10-alpine",
		nats.WithArgument("store_dir", "/data/jetstream"),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForLog("Server is ready"),
				wait.ForListeningPort("4222/tcp"),
			).WithDeadline(45*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start NATS container: %w", err)
	}
	b := &RelayBroker{NATSContainer: ctr}

	b.URL, err = ctr.ConnectionString(ctx)
	if err != nil {
		b.abort(ctx)
		return nil, fmt.Errorf("failed to get NATS connection string: %w", err)
	}
	b.Conn, err = natsconn.Connect(natsconn.Config{
		URL:         b.URL,
		Name:        "arena-integration",
		ConnectWait: 10 * time.Second,
	}, observability.NopLogger())
	if err != nil {
		b.abort(ctx)
		return nil, err
	}
	b.Rooms, err = natsconn.KeyValue(ctx, b.Conn, bucket)
	if err != nil {
		b.abort(ctx)
		return nil, err
	}

	log.Printf("NATS relay broker ready at %s (bucket %s)", b.URL, bucket)
	return b, nil
}

func (b *RelayBroker) abort(ctx context.Context) {
	if err := b.Close(ctx); err != nil {
		log.Printf("Failed to terminate NATS container: %v", err)
	}
}
