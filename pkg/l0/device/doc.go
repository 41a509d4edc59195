// Package device implements the register endpoint firmware core: the
// connection gate, packet dispatch, heartbeat liveness and the register
// state machine. Everything here runs on the single loop goroutine and
// is not safe for concurrent use.
package device
