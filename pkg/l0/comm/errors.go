package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLarge indicates the payload doesn't fit in one frame.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrClosed indicates the stream has been closed.
	ErrClosed = errors.New("stream closed")
)

// PayloadError reports an oversized payload for a packet type.
type PayloadError struct {
	Type PacketType
	Len  int
}

// Error implements error.
func (e *PayloadError) Error() string {
	return fmt.Sprintf("%s payload of %d bytes exceeds %d", e.Type, e.Len, MaxPayloadLen)
}

// Unwrap returns ErrPayloadTooLarge.
func (e *PayloadError) Unwrap() error {
	return ErrPayloadTooLarge
}
