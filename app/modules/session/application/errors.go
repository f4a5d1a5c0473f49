package sessionservice

import "errors"

var (
	// ErrGameEnded indicates an operation on a session that already reached Ending.
	ErrGameEnded = errors.New("game has ended")

	// ErrInvalidDuration indicates a non-positive game duration.
	ErrInvalidDuration = errors.New("game duration must be positive")

	// ErrAlreadyStarted indicates Start on a session that is not waiting.
	ErrAlreadyStarted = errors.New("game already started")
)
