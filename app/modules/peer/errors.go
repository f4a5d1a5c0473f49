package peer

import "errors"

var (
	// ErrAvatarInactive is returned for gameplay input while the avatar is frozen.
	ErrAvatarInactive = errors.New("avatar is not accepting input")
)
