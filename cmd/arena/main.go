package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v2"

	backendclient "github.com/Black-And-White-Club/arena-sync/app/modules/backend/client"
	"github.com/Black-And-White-Club/arena-sync/app/modules/peer"
	"github.com/Black-And-White-Club/arena-sync/config"
	"github.com/Black-And-White-Club/arena-sync/internal/clock"
	"github.com/Black-And-White-Club/arena-sync/internal/natsconn"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
	"github.com/Black-And-White-Club/arena-sync/internal/relay/memrelay"
	"github.com/Black-And-White-Club/arena-sync/internal/relay/natsrelay"
)

func main() {
	app := &cli.App{
		Name:  "arena",
		Usage: "multiplayer arena relay and headless peers",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.yaml", Usage: "Path to the configuration file"},
		},
		Commands: []*cli.Command{
			relayCommand(),
			peerCommand(),
			simulateCommand(),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup(c *cli.Context, service string) (*config.Config, *observability.Observability, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	obs, err := observability.New(c.Context, config.ToObsConfig(cfg, service))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up observability: %w", err)
	}
	go func() {
		if err := obs.ServeMetrics(c.Context, cfg.Observability.MetricsAddress); err != nil {
			obs.Logger.Error("Metrics server stopped", attr.Error(err))
		}
	}()
	return cfg, obs, nil
}

// shutdownTelemetry flushes buffered spans before the binary exits.
func shutdownTelemetry(obs *observability.Observability) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := obs.Shutdown(ctx); err != nil {
		obs.Logger.Error("Tracer shutdown failed", attr.Error(err))
	}
}

func relayCommand() *cli.Command {
	return &cli.Command{
		Name:  "relay",
		Usage: "run the relay server on NATS with room properties in JetStream KV",
		Action: func(c *cli.Context) error {
			cfg, obs, err := setup(c, "arena-relay")
			if err != nil {
				return err
			}
			defer shutdownTelemetry(obs)
			ctx := c.Context

			nc, err := natsconn.Connect(cfg.NATSConnConfig("arena-relay"), obs.Logger)
			if err != nil {
				return err
			}
			defer nc.Drain() //nolint:errcheck

			kv, err := natsconn.KeyValue(ctx, nc, cfg.NATS.KVBucket)
			if err != nil {
				return err
			}
			hub := memrelay.NewHub(natsrelay.NewKVPropertyBackend(kv), clock.Real{}, obs.Logger)
			server := natsrelay.NewServer(hub, nc, nc, cfg.NATS.Prefix, cfg.RelayTimings(), obs.Logger, obs.Tracer)

			var wg sync.WaitGroup
			if err := server.Run(ctx, &wg); err != nil {
				return err
			}
			<-ctx.Done()
			err = server.Close()
			wg.Wait()
			return err
		},
	}
}

func peerCommand() *cli.Command {
	return &cli.Command{
		Name:  "peer",
		Usage: "run one headless peer against a relay",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "display name"},
			&cli.StringFlag{Name: "wallet", Usage: "wallet address"},
			&cli.StringFlag{Name: "room", Usage: "room to join instead of the backend's assignment"},
		},
		Action: func(c *cli.Context) error {
			cfg, obs, err := setup(c, "arena-peer")
			if err != nil {
				return err
			}
			defer shutdownTelemetry(obs)
			if v := c.String("wallet"); v != "" {
				cfg.Peer.Wallet = v
			}
			if v := c.String("room"); v != "" {
				cfg.Peer.Room = v
			}
			pc := cfg.PeerModuleConfig(c.String("name"))

			nc, err := natsconn.Connect(cfg.NATSConnConfig("arena-peer-"+pc.DisplayName), obs.Logger)
			if err != nil {
				return err
			}
			defer nc.Drain() //nolint:errcheck

			backend := newBackend(c.Context, cfg, pc, obs)
			return runPeers(c.Context, obs, []peer.Config{pc}, natsDialer(cfg, nc, pc, obs), backend, 0)
		},
	}
}

func simulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "run several peers against an in-process relay",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "peers", Value: 3, Usage: "number of peers"},
			&cli.StringFlag{Name: "room", Value: "Room_Sim", Usage: "room every peer joins"},
			&cli.DurationFlag{Name: "for", Usage: "stop after this long; zero runs until interrupted"},
			&cli.Uint64Flag{Name: "seed", Value: 1, Usage: "seed for generated names and wallets"},
		},
		Action: func(c *cli.Context) error {
			cfg, obs, err := setup(c, "arena-simulate")
			if err != nil {
				return err
			}
			defer shutdownTelemetry(obs)
			faker := gofakeit.New(c.Uint64("seed"))
			hub := memrelay.NewHub(memrelay.NewMemoryBackend(), clock.Real{}, obs.Logger)

			configs := make([]peer.Config, 0, c.Int("peers"))
			for range c.Int("peers") {
				pc := cfg.PeerModuleConfig(faker.Username())
				pc.Wallet = fmt.Sprintf("0x%016x%016x", faker.Uint64(), faker.Uint64())
				pc.Room = c.String("room")
				configs = append(configs, pc)
			}

			dial := func(pc peer.Config) peer.Dialer {
				return func(pub message.Publisher, topic string) (relay.Client, error) {
					return memrelay.NewClient(hub, pc.DisplayName, pc.Wallet, pub, topic, obs.Logger), nil
				}
			}
			return runPeers(c.Context, obs, configs, dial, nil, c.Duration("for"))
		},
	}
}

func natsDialer(cfg *config.Config, nc *nats.Conn, pc peer.Config, obs *observability.Observability) func(peer.Config) peer.Dialer {
	return func(peer.Config) peer.Dialer {
		return func(pub message.Publisher, topic string) (relay.Client, error) {
			return natsrelay.NewClient(natsrelay.NATSTransport{Conn: nc}, natsrelay.ClientConfig{
				Prefix:  cfg.NATS.Prefix,
				Name:    pc.DisplayName,
				UserID:  pc.Wallet,
				Timings: cfg.RelayTimings(),
			}, pub, topic, obs.Logger)
		}
	}
}

// newBackend returns nil when no backend is configured.
func newBackend(ctx context.Context, cfg *config.Config, pc peer.Config, obs *observability.Observability) peer.Backend {
	if cfg.Backend.URL == "" {
		return nil
	}
	client := backendclient.New(cfg.BackendClientConfig(pc.DisplayName), obs.Logger)
	if cfg.JWT.Secret != "" {
		if err := client.Authenticate(ctx, pc.Wallet); err != nil {
			obs.Logger.WarnContext(ctx, "Backend session token unavailable", attr.Error(err))
		}
	}
	return client
}

// runPeers starts every peer and blocks until ctx ends or limit passes.
func runPeers(ctx context.Context, obs *observability.Observability, configs []peer.Config, dial func(peer.Config) peer.Dialer, backend peer.Backend, limit time.Duration) error {
	if limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	var wg sync.WaitGroup
	modules := make([]*peer.Module, 0, len(configs))
	for _, pc := range configs {
		m, err := peer.NewPeerModule(ctx, pc, obs, dial(pc), backend, clock.Real{})
		if err != nil {
			return err
		}
		modules = append(modules, m)
		wg.Add(1)
		go m.Run(ctx, &wg)
	}

	<-ctx.Done()
	var firstErr error
	for _, m := range modules {
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	wg.Wait()
	return firstErr
}
