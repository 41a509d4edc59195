package device

import (
	"errors"
	"fmt"

	"github.com/robotalks/nfcreg/pkg/l0/comm"
)

var (
	// ErrNotConnected indicates the host hasn't connected.
	ErrNotConnected = errors.New("not connected")
)

// DuplicateHandlerError is returned when a packet type is registered twice.
type DuplicateHandlerError struct {
	Type comm.PacketType
}

// Error implements error.
func (e *DuplicateHandlerError) Error() string {
	return fmt.Sprintf("handler for %s already registered", e.Type)
}
