// Package host implements the controlling side of the register link: it
// connects to the endpoint, answers tag verification requests and keeps
// track of what the device reports.
package host

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	fx "github.com/robotalks/nfcreg/pkg/framework"
	"github.com/robotalks/nfcreg/pkg/l0/comm"
	"github.com/robotalks/nfcreg/pkg/l0/device"
)

// Config configures a Host.
type Config struct {
	// ReconnectInterval is how often CONNECT_REQUEST is repeated while
	// the device hasn't answered.
	ReconnectInterval time.Duration `yaml:"reconnect_interval" toml:"reconnect_interval"`
	// DeviceTimeout drops the connection when nothing is heard from the
	// device for this long. It must exceed the idle heartbeat interval.
	DeviceTimeout time.Duration `yaml:"device_timeout" toml:"device_timeout"`
}

// DefaultConfig is used for zero fields.
var DefaultConfig = Config{
	ReconnectInterval: 2 * time.Second,
	DeviceTimeout:     5 * time.Minute,
}

// Normalize fills zero fields with defaults.
func (c Config) Normalize() Config {
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = DefaultConfig.ReconnectInterval
	}
	if c.DeviceTimeout <= 0 {
		c.DeviceTimeout = DefaultConfig.DeviceTimeout
	}
	return c
}

// Status is a snapshot of the device as seen by the host.
type Status struct {
	Connected bool
	Session   string
	Version   byte
	Debug     bool
	Register  device.RegisterState
	LastHeard time.Time
	Verified  int
	Denied    int
}

// String implements fmt.Stringer.
func (s Status) String() string {
	if !s.Connected {
		return "disconnected"
	}
	return fmt.Sprintf("connected session=%s version=%d debug=%v register=%s verified=%d denied=%d",
		s.Session, s.Version, s.Debug, s.Register, s.Verified, s.Denied)
}

// maxLogLine bounds a log line which never sees its newline.
const maxLogLine = 1024

// Host talks to one register endpoint over a packet link.
type Host struct {
	Config   Config
	Verifier Verifier
	Sink     EventSink
	Clock    fx.Clock

	sender comm.PacketSender
	stream *comm.Stream

	lock        sync.Mutex
	status      Status
	lastConnect time.Time
	logLine     []byte
}

// New creates a Host sending with sender. Received packets are passed to
// HandlePacket by the caller.
func New(conf Config, sender comm.PacketSender, verifier Verifier) *Host {
	return &Host{
		Config:   conf.Normalize(),
		Verifier: verifier,
		Clock:    fx.RealClock{},
		sender:   sender,
	}
}

// NewWithLink creates a Host which runs its own Stream over link.
func NewWithLink(conf Config, link io.ReadWriter, verifier Verifier) *Host {
	stream := comm.NewStream(link)
	h := New(conf, stream, verifier)
	h.stream = stream
	stream.Handler = h
	return h
}

// Run implements Runnable. It reads the link and ticks the reconnect and
// timeout logic until the link fails or ctx is done.
func (h *Host) Run(ctx context.Context) error {
	if h.stream == nil {
		return fmt.Errorf("host has no link")
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.stream.Run(ctx)
	}()
	interval := h.Config.ReconnectInterval / 4
	if interval <= 0 || interval > time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	h.Tick(h.now())
	for {
		select {
		case err := <-errCh:
			h.disconnect(h.now(), "link closed")
			return err
		case <-ticker.C:
			h.Tick(h.now())
		}
	}
}

func (h *Host) now() time.Time {
	if h.Clock == nil {
		return time.Now()
	}
	return h.Clock.Now()
}

// Tick reconnects while disconnected and drops a silent device.
func (h *Host) Tick(now time.Time) {
	h.lock.Lock()
	connected := h.status.Connected
	silent := connected && now.Sub(h.status.LastHeard) > h.Config.DeviceTimeout
	retry := !connected && (h.lastConnect.IsZero() || now.Sub(h.lastConnect) >= h.Config.ReconnectInterval)
	h.lock.Unlock()
	switch {
	case silent:
		h.disconnect(now, "device timeout")
		h.connect(now)
	case retry:
		h.connect(now)
	}
}

// Connect sends CONNECT_REQUEST now.
func (h *Host) Connect() error {
	return h.connect(h.now())
}

func (h *Host) connect(now time.Time) error {
	h.lock.Lock()
	h.lastConnect = now
	h.lock.Unlock()
	return h.sender.Send(comm.ConnectRequest, nil)
}

// SetDebug turns device log mirroring on or off.
func (h *Host) SetDebug(on bool) error {
	var flag byte
	if on {
		flag = 1
	}
	if err := h.sendConnected(comm.SetDebug, []byte{flag}); err != nil {
		return err
	}
	h.lock.Lock()
	h.status.Debug = on
	h.lock.Unlock()
	return nil
}

// OpenRegister opens the register without a tag.
func (h *Host) OpenRegister() error {
	return h.sendConnected(comm.OpenRegister, nil)
}

// FlushLog asks the device to send its buffered log.
func (h *Host) FlushLog() error {
	return h.sendConnected(comm.FlushLog, nil)
}

func (h *Host) sendConnected(t comm.PacketType, payload []byte) error {
	if !h.Status().Connected {
		return ErrNotConnected
	}
	return h.sender.Send(t, payload)
}

// Status returns a snapshot of the device state.
func (h *Host) Status() Status {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.status
}

// HandlePacket implements comm.PacketHandler.
func (h *Host) HandlePacket(_ context.Context, pkt *comm.Packet) {
	now := h.now()
	h.lock.Lock()
	h.status.LastHeard = now
	h.lock.Unlock()

	switch pkt.Type {
	case comm.ConnectResponse:
		h.handleConnectResponse(now, pkt.Payload)
	case comm.Heartbeat:
		h.handleHeartbeat(now, pkt.Payload)
	case comm.VerifyRequest:
		h.handleVerifyRequest(now, pkt.Payload)
	case comm.RegisterState:
		h.handleRegisterState(now, pkt.Payload)
	case comm.Log:
		h.handleLog(now, pkt.Payload)
	default:
		glog.V(2).Infof("ignore %s", pkt)
	}
}

func (h *Host) handleConnectResponse(now time.Time, payload []byte) {
	var version byte
	if len(payload) > 0 {
		version = payload[0]
	}
	if version != comm.ProtocolVersion {
		glog.Warningf("device protocol version %d, expect %d", version, comm.ProtocolVersion)
	}
	h.lock.Lock()
	if h.status.Connected {
		h.status.Version = version
		h.lock.Unlock()
		return
	}
	h.status = Status{
		Connected: true,
		Session:   uuid.New().String(),
		Version:   version,
		Register:  h.status.Register,
		LastHeard: now,
	}
	session := h.status.Session
	h.logLine = nil
	h.lock.Unlock()
	glog.Infof("device connected, session %s", session)
	h.emit(Event{Kind: EventConnected, Session: session, Time: now})
}

func (h *Host) handleHeartbeat(now time.Time, payload []byte) {
	h.sender.Send(comm.HeartbeatAck, nil)
	if len(payload) == 0 {
		return
	}
	h.lock.Lock()
	connected := h.status.Connected
	h.lock.Unlock()
	switch {
	case payload[0] == 0 && connected:
		h.disconnect(now, "device lost connection")
		h.connect(now)
	case payload[0] == 0:
		h.connect(now)
	case !connected:
		// The device still holds a connection from an earlier host run.
		h.connect(now)
	}
}

func (h *Host) handleVerifyRequest(now time.Time, uid []byte) {
	granted := h.Verifier != nil && h.Verifier.Verify(uid)
	var resp byte
	if granted {
		resp = 0x01
	}
	if err := h.sender.Send(comm.VerifyResponse, []byte{resp}); err != nil {
		glog.Errorf("verify response: %v", err)
	}
	kind := EventDenied
	h.lock.Lock()
	if granted {
		kind = EventVerified
		h.status.Verified++
	} else {
		h.status.Denied++
	}
	session := h.status.Session
	h.lock.Unlock()
	glog.Infof("tag %s %s", FormatUID(uid), kind)
	h.emit(Event{Kind: kind, Session: session, Time: now, UID: uid})
}

func (h *Host) handleRegisterState(now time.Time, payload []byte) {
	if len(payload) != 1 {
		glog.Warningf("invalid register state: % x", payload)
		return
	}
	state := device.RegisterState(payload[0])
	h.lock.Lock()
	h.status.Register = state
	session := h.status.Session
	h.lock.Unlock()
	h.emit(Event{Kind: EventRegister, Session: session, Time: now, Register: state})
}

func (h *Host) handleLog(now time.Time, chunk []byte) {
	var lines []string
	h.lock.Lock()
	for _, b := range chunk {
		if b == '\n' {
			lines = append(lines, string(h.logLine))
			h.logLine = h.logLine[:0]
			continue
		}
		h.logLine = append(h.logLine, b)
		if len(h.logLine) >= maxLogLine {
			lines = append(lines, string(h.logLine))
			h.logLine = h.logLine[:0]
		}
	}
	session := h.status.Session
	h.lock.Unlock()
	for _, line := range lines {
		glog.Infof("device: %s", line)
		h.emit(Event{Kind: EventLog, Session: session, Time: now, Text: line})
	}
}

func (h *Host) disconnect(now time.Time, reason string) {
	h.lock.Lock()
	if !h.status.Connected {
		h.lock.Unlock()
		return
	}
	session := h.status.Session
	h.status.Connected = false
	h.status.Session = ""
	h.status.Debug = false
	h.lock.Unlock()
	glog.Warningf("device disconnected: %s", reason)
	h.emit(Event{Kind: EventDisconnected, Session: session, Time: now, Text: reason})
}

func (h *Host) emit(e Event) {
	if h.Sink != nil {
		h.Sink.HandleEvent(e)
	}
}
