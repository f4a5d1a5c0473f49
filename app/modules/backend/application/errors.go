package backendservice

import "errors"

// Domain errors handlers map to 4xx responses.
var (
	ErrInvalidWallet = errors.New("wallet address cannot be empty")
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidEntry  = errors.New("invalid leaderboard entry")
	ErrInvalidTrace  = errors.New("invalid trace")
	ErrTraceNotFound = errors.New("trace not found")
	ErrTokensOff     = errors.New("session tokens are disabled")
)
