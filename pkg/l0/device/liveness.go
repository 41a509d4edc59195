package device

import (
	"time"

	"github.com/robotalks/nfcreg/pkg/l0/comm"
)

// LivenessConfig defines heartbeat timing.
type LivenessConfig struct {
	ActiveHeartbeat   time.Duration `yaml:"active_heartbeat" toml:"active_heartbeat"`
	IdleHeartbeat     time.Duration `yaml:"idle_heartbeat" toml:"idle_heartbeat"`
	InactivityTimeout time.Duration `yaml:"inactivity_timeout" toml:"inactivity_timeout"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" toml:"connection_timeout"`
}

// DefaultLivenessConfig is the timing used by the firmware.
var DefaultLivenessConfig = LivenessConfig{
	ActiveHeartbeat:   5 * time.Second,
	IdleHeartbeat:     4 * time.Minute,
	InactivityTimeout: 10 * time.Minute,
	ConnectionTimeout: 10 * time.Second,
}

// Normalize fills zero fields with defaults.
func (c LivenessConfig) Normalize() LivenessConfig {
	if c.ActiveHeartbeat <= 0 {
		c.ActiveHeartbeat = DefaultLivenessConfig.ActiveHeartbeat
	}
	if c.IdleHeartbeat <= 0 {
		c.IdleHeartbeat = DefaultLivenessConfig.IdleHeartbeat
	}
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = DefaultLivenessConfig.InactivityTimeout
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = DefaultLivenessConfig.ConnectionTimeout
	}
	return c
}

// Liveness emits heartbeats and watches for their acks.
//
// Two timers run independently: the send cadence (fast while there was
// recent activity, slow when idle) and the ack watchdog. Missing an ack
// never holds back the cadence; only "no ack for ConnectionTimeout"
// drops the connection.
type Liveness struct {
	Config LivenessConfig

	conn   *ConnectionState
	sender comm.PacketSender

	lastSent     time.Time
	lastActivity time.Time
	lastAck      time.Time
	hasActivity  bool
	hasAck       bool
}

// NewLiveness creates a Liveness.
func NewLiveness(conf LivenessConfig, conn *ConnectionState, sender comm.PacketSender) *Liveness {
	return &Liveness{Config: conf.Normalize(), conn: conn, sender: sender}
}

// RecordActivity notes a meaningful external event, e.g. a tag read.
func (l *Liveness) RecordActivity(now time.Time) {
	l.lastActivity, l.hasActivity = now, true
}

// OnAckReceived notes a HEARTBEAT_ACK from the host.
func (l *Liveness) OnAckReceived(now time.Time) {
	l.lastAck, l.hasAck = now, true
}

// ResetWatchdog forgets previous acks, the watchdog is disarmed until the
// next ack arrives.
func (l *Liveness) ResetWatchdog() {
	l.lastAck, l.hasAck = time.Time{}, false
}

// Active tells whether there was activity within InactivityTimeout.
func (l *Liveness) Active(now time.Time) bool {
	return l.hasActivity && now.Sub(l.lastActivity) < l.Config.InactivityTimeout
}

// Interval returns the current heartbeat interval.
func (l *Liveness) Interval(now time.Time) time.Duration {
	if l.Active(now) {
		return l.Config.ActiveHeartbeat
	}
	return l.Config.IdleHeartbeat
}

// Tick runs the watchdog and sends a heartbeat when one is due.
func (l *Liveness) Tick(now time.Time) {
	if l.hasAck && now.Sub(l.lastAck) > l.Config.ConnectionTimeout {
		l.conn.SetConnected(false)
		// Acks can't be dispatched while disconnected, the stale stamp
		// would otherwise keep heartbeats off until the next connect.
		l.ResetWatchdog()
		return
	}
	if now.Sub(l.lastSent) > l.Interval(now) {
		l.SendHeartbeat(now)
	}
}

// SendHeartbeat sends a HEARTBEAT now and restarts the cadence. The
// payload tells the host whether this end considers itself connected.
func (l *Liveness) SendHeartbeat(now time.Time) {
	var connected byte
	if l.conn.Connected() {
		connected = 1
	}
	l.sender.Send(comm.Heartbeat, []byte{connected})
	l.lastSent = now
}
