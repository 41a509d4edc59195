package host

import (
	"fmt"
	"time"

	"github.com/robotalks/nfcreg/pkg/l0/device"
)

// EventKind classifies an Event.
type EventKind string

// Event kinds.
const (
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
	EventVerified     EventKind = "verified"
	EventDenied       EventKind = "denied"
	EventRegister     EventKind = "register"
	EventLog          EventKind = "log"
)

// Event reports something that happened on the device.
type Event struct {
	Kind    EventKind
	Session string
	Time    time.Time

	// UID is set for verified and denied.
	UID []byte
	// Register is set for register.
	Register device.RegisterState
	// Text is the log line for log, or the reason for disconnected.
	Text string
}

// String implements fmt.Stringer.
func (e Event) String() string {
	switch e.Kind {
	case EventVerified, EventDenied:
		return fmt.Sprintf("%s uid=%s", e.Kind, FormatUID(e.UID))
	case EventRegister:
		return fmt.Sprintf("%s state=%s", e.Kind, e.Register)
	case EventLog, EventDisconnected:
		if e.Text != "" {
			return fmt.Sprintf("%s: %s", e.Kind, e.Text)
		}
	}
	return string(e.Kind)
}

// EventSink receives Events. It is called without any Host lock held.
type EventSink interface {
	HandleEvent(Event)
}

// EventSinkFunc is func type of EventSink.
type EventSinkFunc func(Event)

// HandleEvent implements EventSink.
func (f EventSinkFunc) HandleEvent(e Event) {
	f(e)
}

// EventSinks fans an Event out to all sinks in order.
type EventSinks []EventSink

// HandleEvent implements EventSink.
func (s EventSinks) HandleEvent(e Event) {
	for _, sink := range s {
		sink.HandleEvent(e)
	}
}
