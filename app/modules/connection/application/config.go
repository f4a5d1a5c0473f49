package connectionservice

import "time"

// Config holds the reconnect policy and the options used when creating rooms.
type Config struct {
	MaxAttempts   int
	RetryInterval time.Duration
	// GameDuration seeds GameTime when this peer creates a room.
	GameDuration time.Duration
}

// DefaultConfig returns the production policy: 5 attempts, 2s apart.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   5,
		RetryInterval: 2 * time.Second,
		GameDuration:  300 * time.Second,
	}
}
