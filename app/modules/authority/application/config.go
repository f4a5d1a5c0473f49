package authorityservice

import "time"

// Config holds the hand-off and reconciliation timings.
type Config struct {
	// SettleDelay is how long a new master waits before restoring, letting ownership transfers land.
	SettleDelay time.Duration
	// SyncInterval is the period of the master's full re-broadcast.
	SyncInterval time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		SettleDelay:  time.Second,
		SyncInterval: 5 * time.Second,
	}
}
