package relay

import "errors"

// Errors surfaced by relay implementations.
var (
	ErrNotConnected     = errors.New("relay: not connected")
	ErrAlreadyConnected = errors.New("relay: already connected")
	ErrNotInRoom        = errors.New("relay: not in a room")
	ErrRoomNotFound     = errors.New("relay: room not found")
	ErrRoomFull         = errors.New("relay: room is full")
	ErrRoomClosed       = errors.New("relay: room is closed")
	ErrActorNotFound    = errors.New("relay: actor not found")
	ErrOwnershipDenied  = errors.New("relay: ownership request denied")
	ErrNoMaster         = errors.New("relay: room has no master client")
	ErrEmptyPayload     = errors.New("relay: empty payload")
	ErrTransport        = errors.New("relay: transport unavailable")
)
