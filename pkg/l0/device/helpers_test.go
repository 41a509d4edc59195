package device

import (
	"fmt"
	"testing"
	"time"

	"github.com/robotalks/nfcreg/pkg/l0/comm"
	"github.com/robotalks/nfcreg/pkg/l0/hw/sim"
)

type sentRecorder struct {
	pkts []*comm.Packet
}

func (r *sentRecorder) Send(t comm.PacketType, payload []byte) error {
	pkt := &comm.Packet{Type: t, Payload: append([]byte(nil), payload...)}
	if _, err := pkt.Bytes(); err != nil {
		return err
	}
	r.pkts = append(r.pkts, pkt)
	return nil
}

func (r *sentRecorder) ofType(t comm.PacketType) (pkts []*comm.Packet) {
	for _, pkt := range r.pkts {
		if pkt.Type == t {
			pkts = append(pkts, pkt)
		}
	}
	return
}

func (r *sentRecorder) reset() {
	r.pkts = nil
}

type lineRecorder struct {
	infos    []string
	warnings []string
}

func (l *lineRecorder) Infof(format string, args ...interface{}) {
	l.infos = append(l.infos, fmt.Sprintf(format, args...))
}

func (l *lineRecorder) Warningf(format string, args ...interface{}) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type endpointEnv struct {
	t        *testing.T
	now      time.Time
	sent     *sentRecorder
	tags     *sim.Tags
	register *sim.Register
	buzzer   *sim.Buzzer
	ep       *Endpoint
}

func newEndpointEnv(t *testing.T) *endpointEnv {
	env := &endpointEnv{
		t:      t,
		now:    epoch,
		sent:   &sentRecorder{},
		tags:   &sim.Tags{},
		buzzer: &sim.Buzzer{},
	}
	env.register = sim.NewRegister().WithClock(func() time.Time { return env.now })
	env.register.Pulse = 0
	env.ep = New(Config{}, Hardware{
		Tags:     env.tags,
		Register: env.register,
		Buzzer:   env.buzzer,
	}, env.sent)
	return env
}

func (e *endpointEnv) advance(d time.Duration) *endpointEnv {
	e.now = e.now.Add(d)
	return e
}

func (e *endpointEnv) step() *endpointEnv {
	e.ep.Step(e.now)
	return e
}

func (e *endpointEnv) deliver(t comm.PacketType, payload ...byte) *endpointEnv {
	e.ep.HandlePacket(e.now, &comm.Packet{Type: t, Payload: payload})
	return e
}

func (e *endpointEnv) connect() *endpointEnv {
	e.step().deliver(comm.ConnectRequest)
	e.sent.reset()
	return e
}
