package device

import (
	"fmt"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/nfcreg/pkg/framework"
	"github.com/robotalks/nfcreg/pkg/l0/comm"
)

// Config configures an Endpoint.
type Config struct {
	Liveness       LivenessConfig `yaml:"liveness" toml:"liveness"`
	ConfirmTimeout time.Duration  `yaml:"confirm_timeout" toml:"confirm_timeout"`
}

// Endpoint is the register endpoint firmware. It owns all device state and
// is driven by a framework.Loop, one Control call per iteration.
type Endpoint struct {
	Conn       *ConnectionState
	Liveness   *Liveness
	Register   *RegisterMachine
	Dispatcher *Dispatcher
	Log        *HostLog

	hw       Hardware
	sender   comm.PacketSender
	receiver *comm.Receiver

	// A tag read while disconnected waits here for the host to reconnect.
	pendingUID   []byte
	pendingSince time.Time
}

// New creates an Endpoint sending packets with sender.
func New(conf Config, hw Hardware, sender comm.PacketSender) *Endpoint {
	e := &Endpoint{
		Conn:   &ConnectionState{},
		hw:     hw,
		sender: sender,
	}
	e.Log = NewHostLog(e.Conn, sender)
	e.Conn.Log = e.Log
	e.Liveness = NewLiveness(conf.Liveness, e.Conn, sender)
	e.Register = NewRegisterMachine(hw.Register, sender, e.Log)
	if conf.ConfirmTimeout > 0 {
		e.Register.ConfirmTimeout = conf.ConfirmTimeout
	}
	e.Dispatcher = NewDispatcher(e.Conn, e.handleConnectRequest).
		// A restarted host connects again while this end is still connected.
		MustHandle(comm.ConnectRequest, e.handleConnectRequest).
		MustHandle(comm.VerifyResponse, e.handleVerifyResponse).
		MustHandle(comm.SetDebug, e.handleSetDebug).
		MustHandle(comm.OpenRegister, e.handleOpenRegister).
		MustHandle(comm.HeartbeatAck, e.handleHeartbeatAck).
		MustHandle(comm.FlushLog, e.handleFlushLog)
	return e
}

// Attach sets the receiver whose packets are dispatched each iteration.
func (e *Endpoint) Attach(r *comm.Receiver) *Endpoint {
	e.receiver = r
	return e
}

// AddToLoop implements LoopAdder.
func (e *Endpoint) AddToLoop(loop *fx.Loop) {
	if r := e.receiver; r != nil {
		r.Notify = loop.TriggerNext
		loop.AddRunnable(fx.NamedRun("receiver", r))
	}
	loop.AddController(fx.StageControl, e)
}

// Control implements Controller.
func (e *Endpoint) Control(ctx fx.ControlContext) error {
	e.Step(ctx.Time())
	return nil
}

// Step runs one iteration: receive and dispatch, liveness, register, tags.
func (e *Endpoint) Step(now time.Time) {
	if !e.Conn.Initialized() {
		e.Setup(now)
	}
	if r := e.receiver; r != nil {
		for _, pkt := range r.Poll() {
			e.HandlePacket(now, pkt)
		}
	}
	e.expirePendingTag(now)
	e.Liveness.Tick(now)
	e.Register.Poll(now)
	e.PollTag(now)
}

// Setup performs one-time hardware setup. Later calls are no-ops.
func (e *Endpoint) Setup(now time.Time) {
	if e.Conn.Initialized() {
		return
	}
	e.Liveness.SendHeartbeat(now)
	e.Log.Infof("starting register endpoint")
	e.hw.Buzzer.StartupChord()
	e.Conn.SetInitialized()
}

// HandlePacket dispatches a received packet.
func (e *Endpoint) HandlePacket(now time.Time, pkt *comm.Packet) {
	glog.V(3).Infof("RCV %s", pkt)
	e.Dispatcher.Dispatch(now, pkt)
}

// PollTag reads a presented tag and asks the host to verify it. While
// disconnected the UID is held and a heartbeat tells the host to
// reconnect, the request goes out once it does.
func (e *Endpoint) PollTag(now time.Time) {
	uid, ok := e.hw.Tags.TryReadUID()
	if !ok {
		return
	}
	defer func() {
		e.hw.Tags.Release()
		e.Log.Infof("tag released")
	}()
	e.Liveness.RecordActivity(now)
	e.Log.Infof("read tag uid 0x%X", uid)
	if !e.Conn.Connected() {
		e.Log.Warningf("tag held: %v", ErrNotConnected)
		e.pendingUID = append([]byte{}, uid...)
		e.pendingSince = now
		e.Liveness.SendHeartbeat(now)
		return
	}
	e.requestVerify(uid)
}

// PendingTag returns the UID waiting for a connection, if any.
func (e *Endpoint) PendingTag() ([]byte, bool) {
	return e.pendingUID, e.pendingUID != nil
}

func (e *Endpoint) requestVerify(uid []byte) {
	if err := e.sender.Send(comm.VerifyRequest, uid); err != nil {
		e.Log.Warningf("verify request: %v", err)
		e.hw.Buzzer.ErrorChord()
	}
}

// expirePendingTag rejects a held tag when the host did not reconnect
// within ConnectionTimeout.
func (e *Endpoint) expirePendingTag(now time.Time) {
	if e.pendingUID == nil || now.Sub(e.pendingSince) <= e.Liveness.Config.ConnectionTimeout {
		return
	}
	e.pendingUID = nil
	e.Log.Warningf("tag dropped: host did not reconnect within %s", e.Liveness.Config.ConnectionTimeout)
	e.hw.Buzzer.ErrorChord()
}

func (e *Endpoint) handleConnectRequest(now time.Time, _ []byte) {
	if !e.Conn.Initialized() {
		e.Setup(now)
	}
	e.Liveness.ResetWatchdog()
	e.Conn.SetConnected(true)
	e.sender.Send(comm.ConnectResponse, []byte{comm.ProtocolVersion})
	if uid := e.pendingUID; uid != nil {
		e.pendingUID = nil
		e.requestVerify(uid)
	}
}

func (e *Endpoint) handleVerifyResponse(now time.Time, payload []byte) {
	if len(payload) != 1 {
		e.Log.Warningf("invalid verify response: % x", payload)
		return
	}
	if payload[0] != 0x01 {
		e.Log.Infof("tag verification failed")
		e.hw.Buzzer.ErrorChord()
		return
	}
	e.Log.Infof("tag verification successful")
	e.hw.Buzzer.Beep()
	e.Register.CommandOpen(now)
}

func (e *Endpoint) handleSetDebug(_ time.Time, payload []byte) {
	if len(payload) != 1 {
		return
	}
	e.Conn.SetDebug(payload[0] != 0)
	// Only reaches the host when debug was just enabled.
	e.Log.Infof("debug mode %s", onOff(e.Conn.Debug()))
}

func (e *Endpoint) handleOpenRegister(now time.Time, _ []byte) {
	e.Register.CommandOpen(now)
}

func (e *Endpoint) handleHeartbeatAck(now time.Time, _ []byte) {
	e.Liveness.OnAckReceived(now)
}

func (e *Endpoint) handleFlushLog(_ time.Time, payload []byte) {
	if len(payload) != 0 {
		return
	}
	e.Log.Flush()
	e.Log.Infof("log flushed")
}

func onOff(en bool) string {
	if en {
		return "on"
	}
	return "off"
}

// String implements fmt.Stringer. Link counters are included when a
// receiver is attached, read them only from the loop goroutine or after
// the loop stopped.
func (e *Endpoint) String() string {
	str := fmt.Sprintf("connected=%v debug=%v register=%s",
		e.Conn.Connected(), e.Conn.Debug(), e.Register.State())
	if r := e.receiver; r != nil {
		str += " link=" + r.Stats().String()
	}
	return str
}
