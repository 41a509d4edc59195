package device

// ConnectionState tracks whether the host has connected. Only the
// Dispatcher (connect handler) and Liveness change Connected.
type ConnectionState struct {
	// Log receives connection transition lines. May be nil.
	Log Logger

	connected   bool
	initialized bool
	debug       bool
	observers   []func(connected bool)
}

// Connected reports whether the host is connected.
func (s *ConnectionState) Connected() bool { return s.connected }

// Initialized reports whether one-time hardware setup has completed.
func (s *ConnectionState) Initialized() bool { return s.initialized }

// Debug reports whether debug mode is enabled.
func (s *ConnectionState) Debug() bool { return s.debug }

// OnChange registers fn to be called on every connected transition.
func (s *ConnectionState) OnChange(fn func(connected bool)) {
	s.observers = append(s.observers, fn)
}

// SetConnected sets the connected flag. Setting the current value is a
// no-op; a real transition logs exactly one line and notifies observers.
// It returns whether a transition happened.
func (s *ConnectionState) SetConnected(connected bool) bool {
	if s.connected == connected {
		return false
	}
	s.connected = connected
	if s.Log != nil {
		if connected {
			s.Log.Infof("connection established")
		} else {
			s.Log.Infof("connection lost")
		}
	}
	for _, fn := range s.observers {
		fn(connected)
	}
	return true
}

// SetInitialized marks one-time hardware setup done. It can't be undone.
func (s *ConnectionState) SetInitialized() { s.initialized = true }

// SetDebug enables or disables debug mode.
func (s *ConnectionState) SetDebug(en bool) { s.debug = en }
