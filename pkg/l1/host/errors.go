package host

import "errors"

var (
	// ErrNotConnected indicates the device has not accepted a connection.
	ErrNotConnected = errors.New("device not connected")
	// ErrInvalidUID indicates a tag UID which can't be parsed.
	ErrInvalidUID = errors.New("invalid tag uid")
)
