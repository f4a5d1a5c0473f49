package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	backendservice "github.com/Black-And-White-Club/arena-sync/app/modules/backend/application"
	backendclient "github.com/Black-And-White-Club/arena-sync/app/modules/backend/client"
	backendhandlers "github.com/Black-And-White-Club/arena-sync/app/modules/backend/infrastructure/handlers"
	"github.com/Black-And-White-Club/arena-sync/app/modules/peer"
	"github.com/Black-And-White-Club/arena-sync/internal/natsconn"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/relay/natsrelay"
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	JWT           JWTConfig           `yaml:"jwt"`
	HTTP          HTTPConfig          `yaml:"http"`
	Observability ObservabilityConfig `yaml:"observability"`
	Game          GameConfig          `yaml:"game"`
	Peer          PeerConfig          `yaml:"peer"`
	Backend       BackendConfig       `yaml:"backend"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration for the relay and its peers.
type NATSConfig struct {
	URL      string `yaml:"url"`
	NKeySeed string `yaml:"nkey_seed"`
	// Prefix namespaces relay subjects.
	Prefix   string `yaml:"prefix"`
	KVBucket string `yaml:"kv_bucket"`

	RequestTimeout    time.Duration `yaml:"request_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	PeerTimeout       time.Duration `yaml:"peer_timeout"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
}

// JWTConfig holds backend session token settings. An empty secret disables tokens.
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// HTTPConfig holds the backend HTTP server settings.
type HTTPConfig struct {
	Address           string   `yaml:"address"`
	PublicURL         string   `yaml:"public_url"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	Environment    string `yaml:"environment"`
	Version        string `yaml:"version"`
	LogLevel       string `yaml:"log_level"`
	MetricsAddress string `yaml:"metrics_address"`
	// TempoEndpoint is the OTLP gRPC trace collector; empty disables trace export.
	TempoEndpoint   string  `yaml:"tempo_endpoint"`
	TempoInsecure   bool    `yaml:"tempo_insecure"`
	TempoSampleRate float64 `yaml:"tempo_sample_rate"`
}

// GameConfig holds the arena rules every peer must agree on.
type GameConfig struct {
	Duration       time.Duration `yaml:"duration"`
	TargetTotal    int           `yaml:"target_total"`
	SyncInterval   time.Duration `yaml:"sync_interval"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RetryInterval  time.Duration `yaml:"retry_interval"`
	BotSeed        uint64        `yaml:"bot_seed"`
	InitialHealth  int           `yaml:"initial_health"`
	SpawnInterval  time.Duration `yaml:"spawn_interval"`
	DisconnectWait time.Duration `yaml:"disconnect_grace"`
}

// PeerConfig identifies a headless peer.
type PeerConfig struct {
	Name     string `yaml:"name"`
	Wallet   string `yaml:"wallet"`
	Room     string `yaml:"room"`
	TraceDir string `yaml:"trace_dir"`
}

// BackendConfig points peers at the backend. An empty URL runs peers without one.
type BackendConfig struct {
	URL      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout"`
	MaxTries uint          `yaml:"max_tries"`
}

// Default returns a configuration for a single-host development setup.
func Default() *Config {
	timings := natsrelay.DefaultTimings()
	return &Config{
		NATS: NATSConfig{
			URL:               "nats://localhost:4222",
			Prefix:            natsrelay.DefaultPrefix,
			KVBucket:          natsrelay.DefaultBucket,
			RequestTimeout:    timings.RequestTimeout,
			HeartbeatInterval: timings.HeartbeatInterval,
			PeerTimeout:       timings.PeerTimeout,
			SweepInterval:     timings.SweepInterval,
		},
		JWT: JWTConfig{DefaultTTL: 24 * time.Hour},
		HTTP: HTTPConfig{
			Address:           ":8080",
			PublicURL:         "http://localhost:8080",
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Observability: ObservabilityConfig{Environment: "development", Version: "dev", LogLevel: "info"},
		Game: GameConfig{
			Duration:    300 * time.Second,
			TargetTotal: 6,
		},
		Peer: PeerConfig{Name: "Player", Wallet: peer.DefaultWallet},
		Backend: BackendConfig{
			Timeout:  5 * time.Second,
			MaxTries: 3,
		},
	}
}

// LoadConfig loads the configuration from a YAML file over the defaults, then applies
// environment overrides. A missing file leaves the defaults and environment in effect.
func LoadConfig(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	case os.IsNotExist(err) || filename == "":
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides cfg with any environment variables that are set.
func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"DATABASE_URL":    &cfg.Postgres.DSN,
		"NATS_URL":        &cfg.NATS.URL,
		"NATS_NKEY_SEED":  &cfg.NATS.NKeySeed,
		"NATS_PREFIX":     &cfg.NATS.Prefix,
		"NATS_KV_BUCKET":  &cfg.NATS.KVBucket,
		"JWT_SECRET":      &cfg.JWT.Secret,
		"HTTP_ADDRESS":    &cfg.HTTP.Address,
		"PUBLIC_URL":      &cfg.HTTP.PublicURL,
		"ENV":             &cfg.Observability.Environment,
		"VERSION":         &cfg.Observability.Version,
		"LOG_LEVEL":       &cfg.Observability.LogLevel,
		"METRICS_ADDRESS": &cfg.Observability.MetricsAddress,
		"TEMPO_ENDPOINT":  &cfg.Observability.TempoEndpoint,
		"PEER_NAME":       &cfg.Peer.Name,
		"WALLET_ADDRESS":  &cfg.Peer.Wallet,
		"ROOM_NAME":       &cfg.Peer.Room,
		"TRACE_DIR":       &cfg.Peer.TraceDir,
		"BACKEND_URL":     &cfg.Backend.URL,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("GAME_DURATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid GAME_DURATION value: %w", err)
		}
		cfg.Game.Duration = d
	}
	if v := os.Getenv("JWT_DEFAULT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid JWT_DEFAULT_TTL value: %w", err)
		}
		cfg.JWT.DefaultTTL = d
	}
	if v := os.Getenv("TEMPO_INSECURE"); v != "" {
		cfg.Observability.TempoInsecure = v == "true"
	}
	if v := os.Getenv("TEMPO_SAMPLE_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid TEMPO_SAMPLE_RATE value: %w", err)
		}
		cfg.Observability.TempoSampleRate = f
	}
	if v := os.Getenv("BOT_TARGET_TOTAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BOT_TARGET_TOTAL value: %w", err)
		}
		cfg.Game.TargetTotal = n
	}
	return nil
}

// ToObsConfig selects the telemetry settings for one binary.
func ToObsConfig(appCfg *Config, serviceName string) observability.Config {
	return observability.Config{
		ServiceName:    serviceName,
		Environment:    appCfg.Observability.Environment,
		Version:        appCfg.Observability.Version,
		LogLevel:       appCfg.Observability.LogLevel,
		MetricsAddress: appCfg.Observability.MetricsAddress,

		TraceEndpoint:   appCfg.Observability.TempoEndpoint,
		TraceInsecure:   appCfg.Observability.TempoInsecure,
		TraceSampleRate: appCfg.Observability.TempoSampleRate,
	}
}

// NATSConnConfig is the connection config for a binary called name.
func (c *Config) NATSConnConfig(name string) natsconn.Config {
	return natsconn.Config{
		URL:         c.NATS.URL,
		Name:        name,
		NKeySeed:    c.NATS.NKeySeed,
		ConnectWait: c.NATS.RequestTimeout,
	}
}

// RelayTimings returns the relay timings, defaulting anything unset.
func (c *Config) RelayTimings() natsrelay.Timings {
	t := natsrelay.DefaultTimings()
	if c.NATS.RequestTimeout > 0 {
		t.RequestTimeout = c.NATS.RequestTimeout
	}
	if c.NATS.HeartbeatInterval > 0 {
		t.HeartbeatInterval = c.NATS.HeartbeatInterval
	}
	if c.NATS.PeerTimeout > 0 {
		t.PeerTimeout = c.NATS.PeerTimeout
	}
	if c.NATS.SweepInterval > 0 {
		t.SweepInterval = c.NATS.SweepInterval
	}
	return t
}

// PeerModuleConfig builds the settings of a peer called name. An empty name uses the configured one.
func (c *Config) PeerModuleConfig(name string) peer.Config {
	if name == "" {
		name = c.Peer.Name
	}
	pc := peer.DefaultConfig(name)
	pc.Wallet = c.Peer.Wallet
	pc.Room = c.Peer.Room
	pc.Session.TraceDir = c.Peer.TraceDir

	g := c.Game
	if g.Duration > 0 {
		pc.Connection.GameDuration = g.Duration
		pc.Session.Duration = g.Duration
	}
	if g.TargetTotal > 0 {
		pc.Bots.TargetTotal = g.TargetTotal
	}
	if g.SyncInterval > 0 {
		pc.Authority.SyncInterval = g.SyncInterval
	}
	if g.MaxAttempts > 0 {
		pc.Connection.MaxAttempts = g.MaxAttempts
	}
	if g.RetryInterval > 0 {
		pc.Connection.RetryInterval = g.RetryInterval
	}
	if g.BotSeed != 0 {
		pc.Bots.Seed = g.BotSeed
	}
	if g.InitialHealth > 0 {
		pc.Bots.InitialHealth = g.InitialHealth
	}
	if g.SpawnInterval > 0 {
		pc.Bots.SpawnInterval = g.SpawnInterval
	}
	if g.DisconnectWait > 0 {
		pc.Session.DisconnectGrace = g.DisconnectWait
	}
	return pc
}

// BackendClientConfig configures a peer's backend client.
func (c *Config) BackendClientConfig(displayName string) backendclient.Config {
	return backendclient.Config{
		BaseURL:     c.Backend.URL,
		DisplayName: displayName,
		Timeout:     c.Backend.Timeout,
		MaxTries:    c.Backend.MaxTries,
	}
}

// BackendServiceConfig configures the backend service.
func (c *Config) BackendServiceConfig() backendservice.Config {
	sc := backendservice.DefaultConfig()
	if c.HTTP.PublicURL != "" {
		sc.PublicURL = c.HTTP.PublicURL
	}
	if c.Game.Duration > 0 {
		sc.DefaultDuration = c.Game.Duration
	}
	if c.JWT.DefaultTTL > 0 {
		sc.TokenTTL = c.JWT.DefaultTTL
	}
	return sc
}

// RouteConfig configures the backend HTTP middleware. Tokens is filled in by the caller.
func (c *Config) RouteConfig() backendhandlers.RouteConfig {
	return backendhandlers.RouteConfig{
		AllowedOrigins:    c.HTTP.AllowedOrigins,
		RequestsPerSecond: c.HTTP.RequestsPerSecond,
		Burst:             c.HTTP.Burst,
	}
}
