package connectionservice

import "errors"

var (
	// ErrReconnectExhausted is reported when every reconnect attempt failed.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	// ErrEmptyRoomName is returned when joining a room without a name.
	ErrEmptyRoomName = errors.New("room name is empty")
)
