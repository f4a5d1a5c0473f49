package roomservice

import "errors"

// Domain errors for room state.
var (
	// ErrNotMaster indicates a commit was attempted by a peer that is not the master client.
	ErrNotMaster = errors.New("only the master client may commit room properties")

	// ErrMalformedProperty indicates a property value could not be decoded.
	ErrMalformedProperty = errors.New("malformed room property")

	// ErrNotInRoom indicates the local peer has no room.
	ErrNotInRoom = errors.New("not in a room")
)
