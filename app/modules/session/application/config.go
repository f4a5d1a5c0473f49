package sessionservice

import "time"

// Config holds the session timings.
type Config struct {
	Duration     time.Duration
	TickInterval time.Duration
	// FlushDelay is how long peers wait for the final stats flush before ranking.
	FlushDelay       time.Duration
	MasterFlushExtra time.Duration
	// DisconnectGrace is how long the leaderboard stays up before the peer leaves.
	DisconnectGrace     time.Duration
	NonMasterGraceExtra time.Duration
	// TraceDir, when set, receives a JSON copy of the game trace.
	TraceDir string
}

// DefaultConfig returns the standard arena timings.
func DefaultConfig() Config {
	return Config{
		Duration:            300 * time.Second,
		TickInterval:        time.Second,
		FlushDelay:          2 * time.Second,
		MasterFlushExtra:    time.Second,
		DisconnectGrace:     5 * time.Second,
		NonMasterGraceExtra: 2 * time.Second,
	}
}
