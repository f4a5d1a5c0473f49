package botservice

import "errors"

var (
	// ErrPopulationFull indicates a spawn that would exceed the allowed bot count.
	ErrPopulationFull = errors.New("bot population is full")

	// ErrNoSpawnPoint indicates every candidate spawn point was rejected this cycle.
	ErrNoSpawnPoint = errors.New("no free spawn point")

	// ErrUnknownBot indicates an operation on a bot the controller does not track.
	ErrUnknownBot = errors.New("unknown bot")
)
