package device

import (
	"time"

	"github.com/robotalks/nfcreg/pkg/l0/comm"
)

// RegisterState is the logical state of the register.
type RegisterState byte

// Register states, values are sent in REGISTER_STATE.
const (
	RegisterClosed RegisterState = iota
	RegisterOpenedExternally
	RegisterOpeningCommanded
	RegisterOpenedByCommand
)

// String implements fmt.Stringer.
func (s RegisterState) String() string {
	switch s {
	case RegisterClosed:
		return "closed"
	case RegisterOpenedExternally:
		return "opened-externally"
	case RegisterOpeningCommanded:
		return "opening-commanded"
	case RegisterOpenedByCommand:
		return "opened-by-command"
	}
	return "unknown"
}

// IsOpen tells whether the state means the register is open.
func (s RegisterState) IsOpen() bool {
	return s == RegisterOpenedExternally || s == RegisterOpenedByCommand
}

// DefaultConfirmTimeout bounds the wait for the sensor after a commanded open.
const DefaultConfirmTimeout = time.Second

// RegisterMachine tracks the register and reports changes the host
// didn't ask for.
type RegisterMachine struct {
	// ConfirmTimeout is how long after CommandOpen the sensor has to
	// report open before the command is considered failed.
	ConfirmTimeout time.Duration

	hw     Register
	sender comm.PacketSender
	log    Logger

	state        RegisterState
	prevState    RegisterState
	lastPhysical bool
	commandedAt  time.Time
}

// NewRegisterMachine creates a RegisterMachine and takes the first sample.
func NewRegisterMachine(hw Register, sender comm.PacketSender, log Logger) *RegisterMachine {
	m := &RegisterMachine{
		ConfirmTimeout: DefaultConfirmTimeout,
		hw:             hw,
		sender:         sender,
		log:            log,
	}
	if m.lastPhysical = hw.PhysicallyOpen(); m.lastPhysical {
		m.state = RegisterOpenedExternally
	}
	return m
}

// State returns the logical state.
func (m *RegisterMachine) State() RegisterState {
	return m.state
}

// PhysicallyOpen returns the last sensor sample.
func (m *RegisterMachine) PhysicallyOpen() bool {
	return m.lastPhysical
}

// CommandOpen fires the open pulse. The loop is blocked for the pulse
// duration. Confirmation comes later from Poll.
func (m *RegisterMachine) CommandOpen(now time.Time) {
	if m.state != RegisterOpeningCommanded {
		m.prevState = m.state
	}
	m.state = RegisterOpeningCommanded
	m.commandedAt = now
	m.hw.PulseOpen()
	m.log.Infof("register opened")
}

// Poll samples the sensor and updates the state.
func (m *RegisterMachine) Poll(now time.Time) {
	physical := m.hw.PhysicallyOpen()
	if physical != m.lastPhysical {
		m.lastPhysical = physical
		switch {
		case physical && m.state == RegisterOpeningCommanded:
			m.state = RegisterOpenedByCommand
		case physical:
			m.state = RegisterOpenedExternally
		default:
			m.state = RegisterClosed
		}
		// The host asked for a commanded open, no need to announce it.
		if m.state != RegisterOpenedByCommand {
			m.sender.Send(comm.RegisterState, []byte{byte(m.state)})
		}
		return
	}
	if m.state == RegisterOpeningCommanded && now.Sub(m.commandedAt) > m.ConfirmTimeout {
		if physical {
			// Already open before the command, nothing moved.
			m.state = m.prevState
			if !m.state.IsOpen() {
				m.state = RegisterOpenedExternally
			}
			return
		}
		m.log.Warningf("register open not confirmed within %s", m.ConfirmTimeout)
		m.state = RegisterClosed
	}
}
