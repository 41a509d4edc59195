package device

// TagReader polls a contactless reader.
type TagReader interface {
	// TryReadUID returns the UID of a newly presented tag, exactly once
	// per presentation.
	TryReadUID() ([]byte, bool)
	// Release halts the tag after it has been handled.
	Release()
}

// Register is the physical lock/dispenser.
type Register interface {
	// PhysicallyOpen samples the sensor.
	PhysicallyOpen() bool
	// PulseOpen fires the open pulse and returns when it is over.
	PulseOpen()
}

// Buzzer plays audible feedback.
type Buzzer interface {
	Beep()
	StartupChord()
	ErrorChord()
}

// Hardware groups the collaborators of an Endpoint.
type Hardware struct {
	Tags     TagReader
	Register Register
	Buzzer   Buzzer
}
