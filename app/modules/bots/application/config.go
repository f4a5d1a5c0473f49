package botservice

import "time"

// Config tunes the bot population.
type Config struct {
	Prefab string
	// TargetTotal is the headcount humans and bots fill together.
	TargetTotal       int
	SpawnInterval     time.Duration
	InitialSpawnDelay time.Duration
	SnapRadius        float64
	MinSeparation     float64
	MaxSpawnTries     int
	Scale             float64
	SpeedMin          float64
	SpeedMax          float64
	AvoidanceMin      int
	AvoidanceMax      int
	InitialHealth     int
	DeathDelay        time.Duration
	SinkTime          time.Duration
	MaintainInterval  time.Duration
	OverCapInterval   time.Duration
	// Seed fixes the random source; zero picks a random seed.
	Seed uint64
}

// DefaultConfig returns the standard arena bot settings.
func DefaultConfig() Config {
	return Config{
		Prefab:            "NPC",
		TargetTotal:       6,
		SpawnInterval:     500 * time.Millisecond,
		InitialSpawnDelay: time.Second,
		SnapRadius:        1.0,
		MinSeparation:     2.0,
		MaxSpawnTries:     10,
		Scale:             1.5,
		SpeedMin:          3,
		SpeedMax:          4,
		AvoidanceMin:      20,
		AvoidanceMax:      80,
		InitialHealth:     100,
		DeathDelay:        2 * time.Second,
		SinkTime:          2500 * time.Millisecond,
		MaintainInterval:  time.Second,
		OverCapInterval:   5 * time.Second,
	}
}
