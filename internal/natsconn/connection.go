// Package natsconn opens NATS connections for the relay server, its clients and the backend.
package natsconn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/nats-io/nkeys"

	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
)

// Config selects the server and credentials.
type Config struct {
	URL string
	// Name identifies the connection in server monitoring.
	Name string
	// NKeySeed authenticates with an nkey user seed (SU...) when set.
	NKeySeed      string
	ConnectWait   time.Duration
	MaxReconnects int
}

// Options converts c into nats.Connect options.
func (c Config) Options(logger *slog.Logger) ([]nats.Option, error) {
	opts := []nats.Option{
		nats.Name(c.Name),
		nats.MaxReconnects(c.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", attr.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", attr.String("url", nc.ConnectedUrl()))
		}),
	}
	if c.ConnectWait > 0 {
		opts = append(opts, nats.Timeout(c.ConnectWait))
	}
	if c.NKeySeed != "" {
		opt, err := nkeyOption(c.NKeySeed)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}
	return opts, nil
}

func nkeyOption(seed string) (nats.Option, error) {
	kp, err := nkeys.FromSeed([]byte(seed))
	if err != nil {
		return nil, fmt.Errorf("failed to parse nkey seed: %w", err)
	}
	pub, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive nkey public key: %w", err)
	}
	return nats.Nkey(pub, kp.Sign), nil
}

// Connect dials the server.
func Connect(cfg Config, logger *slog.Logger) (*nats.Conn, error) {
	opts, err := cfg.Options(logger)
	if err != nil {
		return nil, err
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	logger.Info("Connected to NATS", attr.String("url", nc.ConnectedUrl()), attr.String("name", cfg.Name))
	return nc, nil
}

// KeyValue opens or creates a JetStream key-value bucket.
func KeyValue(ctx context.Context, nc *nats.Conn, bucket string) (jetstream.KeyValue, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "arena room property bags",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open key-value bucket %s: %w", bucket, err)
	}
	return kv, nil
}
