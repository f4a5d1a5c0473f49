package statsservice

import "errors"

var (
	// ErrEmptyName indicates a stats operation without a player name.
	ErrEmptyName = errors.New("player name is required")

	// ErrNegativeStats indicates a sync carrying negative totals.
	ErrNegativeStats = errors.New("score and kills must not be negative")
)
