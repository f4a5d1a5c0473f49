package backendservice

import "time"

// Config holds backend service settings.
type Config struct {
	// PublicURL prefixes trace links handed back to peers.
	PublicURL string
	// DefaultDuration is reported for players without a stored game length.
	DefaultDuration time.Duration
	TokenTTL        time.Duration
}

func DefaultConfig() Config {
	return Config{
		PublicURL:       "http://localhost:8080",
		DefaultDuration: 300 * time.Second,
		TokenTTL:        24 * time.Hour,
	}
}
