package device

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/nfcreg/pkg/framework"
	"github.com/robotalks/nfcreg/pkg/l0/comm"
	"github.com/robotalks/nfcreg/pkg/l0/hw/sim"
)

func TestEndpointSetup(t *testing.T) {
	env := newEndpointEnv(t)
	env.step()
	require.True(t, env.ep.Conn.Initialized())
	require.False(t, env.ep.Conn.Connected())
	require.Equal(t, []string{sim.ToneStartup}, env.buzzer.Played())
	hb := env.sent.ofType(comm.Heartbeat)
	require.Len(t, hb, 1)
	require.Equal(t, []byte{0}, hb[0].Payload)

	env.step()
	require.Equal(t, []string{sim.ToneStartup}, env.buzzer.Played())
}

func TestEndpointConnect(t *testing.T) {
	env := newEndpointEnv(t)
	env.step()
	env.deliver(comm.OpenRegister)
	require.Zero(t, env.register.Pulses())

	env.deliver(comm.ConnectRequest)
	require.True(t, env.ep.Conn.Connected())
	resp := env.sent.ofType(comm.ConnectResponse)
	require.Len(t, resp, 1)
	require.Equal(t, []byte{comm.ProtocolVersion}, resp[0].Payload)

	env.deliver(comm.OpenRegister)
	require.Equal(t, 1, env.register.Pulses())

	// A second connect is answered again without re-running setup.
	env.deliver(comm.ConnectRequest)
	require.Len(t, env.sent.ofType(comm.ConnectResponse), 2)
	require.Equal(t, 1, env.buzzer.Count(sim.ToneStartup))
}

func TestEndpointVerifyGranted(t *testing.T) {
	env := newEndpointEnv(t).connect()
	env.tags.Present([]byte{0xde, 0xad, 0xbe, 0xef})
	env.step()
	req := env.sent.ofType(comm.VerifyRequest)
	require.Len(t, req, 1)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, req[0].Payload)
	require.Equal(t, 1, env.tags.Released())
	require.True(t, env.ep.Liveness.Active(env.now))

	env.deliver(comm.VerifyResponse, 0x01)
	require.Equal(t, 1, env.register.Pulses())
	require.Equal(t, 1, env.buzzer.Count(sim.ToneBeep))
	require.Equal(t, RegisterOpeningCommanded, env.ep.Register.State())

	env.advance(50 * time.Millisecond).step()
	require.Equal(t, RegisterOpenedByCommand, env.ep.Register.State())
	require.Empty(t, env.sent.ofType(comm.RegisterState))
}

func TestEndpointVerifyDenied(t *testing.T) {
	env := newEndpointEnv(t).connect()
	env.deliver(comm.VerifyResponse, 0x00)
	require.Zero(t, env.register.Pulses())
	require.Equal(t, 1, env.buzzer.Count(sim.ToneError))
	require.Zero(t, env.buzzer.Count(sim.ToneBeep))
}

func TestEndpointVerifyInvalidPayload(t *testing.T) {
	env := newEndpointEnv(t).connect()
	env.deliver(comm.VerifyResponse)
	env.deliver(comm.VerifyResponse, 0x01, 0x01)
	require.Zero(t, env.register.Pulses())
	require.Zero(t, env.buzzer.Count(sim.ToneError))
}

func TestEndpointTagHeldUntilReconnect(t *testing.T) {
	env := newEndpointEnv(t).step()
	env.sent.reset()
	env.tags.Present([]byte{1, 2, 3, 4})
	env.step()
	require.Empty(t, env.sent.ofType(comm.VerifyRequest))
	require.Zero(t, env.buzzer.Count(sim.ToneError))
	require.Equal(t, 1, env.tags.Released())
	hb := env.sent.ofType(comm.Heartbeat)
	require.Len(t, hb, 1)
	require.Equal(t, []byte{0}, hb[0].Payload)
	uid, ok := env.ep.PendingTag()
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3, 4}, uid)

	env.advance(time.Second).deliver(comm.ConnectRequest)
	req := env.sent.ofType(comm.VerifyRequest)
	require.Len(t, req, 1)
	require.Equal(t, []byte{1, 2, 3, 4}, req[0].Payload)
	_, ok = env.ep.PendingTag()
	require.False(t, ok)

	env.advance(time.Minute).step()
	require.Zero(t, env.buzzer.Count(sim.ToneError))
	require.Len(t, env.sent.ofType(comm.VerifyRequest), 1)
}

func TestEndpointHeldTagExpires(t *testing.T) {
	env := newEndpointEnv(t).step()
	env.tags.Present([]byte{1, 2, 3, 4})
	env.step()
	env.advance(DefaultLivenessConfig.ConnectionTimeout).step()
	require.Zero(t, env.buzzer.Count(sim.ToneError))

	env.advance(time.Millisecond).step()
	require.Equal(t, 1, env.buzzer.Count(sim.ToneError))
	_, ok := env.ep.PendingTag()
	require.False(t, ok)

	env.deliver(comm.ConnectRequest)
	require.Empty(t, env.sent.ofType(comm.VerifyRequest))
}

// The host below answers every heartbeat and reconnects whenever the
// device reports itself disconnected. In idle mode acks come minutes
// apart, so the watchdog drops the link between them. A tag presented
// in such a gap must still be verified.
func TestEndpointIdleTagWithResponsiveHost(t *testing.T) {
	env := newEndpointEnv(t).connect()
	tagAt := epoch.Add(5 * time.Minute)
	var answered int
	for ; env.now.Sub(epoch) < 20*time.Minute; env.advance(time.Second) {
		if env.now.Equal(tagAt) {
			require.False(t, env.ep.Conn.Connected())
			env.tags.Present([]byte{0xca, 0xfe})
		}
		env.step()
		for _, pkt := range env.sent.ofType(comm.Heartbeat) {
			env.deliver(comm.HeartbeatAck)
			if pkt.Payload[0] == 0 {
				env.deliver(comm.ConnectRequest)
			}
		}
		if req := env.sent.ofType(comm.VerifyRequest); len(req) > 0 {
			require.Equal(t, []byte{0xca, 0xfe}, req[0].Payload)
			env.deliver(comm.VerifyResponse, 0x01)
			answered++
		}
		env.sent.reset()
	}
	require.Equal(t, 1, answered)
	require.Zero(t, env.buzzer.Count(sim.ToneError))
	require.Equal(t, 1, env.register.Pulses())
}

func TestEndpointExternalOpenBroadcast(t *testing.T) {
	env := newEndpointEnv(t).connect()
	env.register.Set(true)
	env.advance(time.Millisecond).step()
	states := env.sent.ofType(comm.RegisterState)
	require.Len(t, states, 1)
	require.Equal(t, []byte{byte(RegisterOpenedExternally)}, states[0].Payload)
}

func TestEndpointDebugLog(t *testing.T) {
	env := newEndpointEnv(t).connect()
	env.tags.Present([]byte{0xab})
	env.step()
	require.Empty(t, env.sent.ofType(comm.Log))

	env.deliver(comm.SetDebug, 1)
	require.True(t, env.ep.Conn.Debug())
	logs := env.sent.ofType(comm.Log)
	require.Len(t, logs, 1)
	require.Equal(t, "debug mode on\n", string(logs[0].Payload))

	env.sent.reset()
	env.tags.Present([]byte{0xab, 0x01})
	env.step()
	var text bytes.Buffer
	for _, pkt := range env.sent.ofType(comm.Log) {
		text.Write(pkt.Payload)
	}
	require.Equal(t, "read tag uid 0xAB01\ntag released\n", text.String())

	env.sent.reset()
	env.deliver(comm.SetDebug, 0)
	require.False(t, env.ep.Conn.Debug())
	require.Empty(t, env.sent.ofType(comm.Log))
}

func TestEndpointHeartbeatAckKeepsConnection(t *testing.T) {
	env := newEndpointEnv(t).connect()
	env.ep.Liveness.RecordActivity(env.now)
	for i := 0; i < 60; i++ {
		env.advance(time.Second).step()
		if hb := env.sent.ofType(comm.Heartbeat); len(hb) > 0 {
			env.deliver(comm.HeartbeatAck)
			env.sent.reset()
		}
	}
	require.True(t, env.ep.Conn.Connected())

	env.advance(DefaultLivenessConfig.ConnectionTimeout + time.Second).step()
	require.False(t, env.ep.Conn.Connected())
}

func TestEndpointRunsInLoop(t *testing.T) {
	env := newEndpointEnv(t)
	recv := comm.NewReceiver(bytes.NewReader(nil))
	env.ep.Attach(recv)
	clock := fx.NewManualClock(epoch)
	loop := &fx.Loop{Clock: clock}
	loop.Add(env.ep)

	frame, err := (&comm.Packet{Type: comm.ConnectRequest}).Bytes()
	require.NoError(t, err)
	recv.Push(frame)
	loop.Step(context.Background())
	require.True(t, env.ep.Conn.Connected())
	require.Equal(t, "connected=true debug=false register=closed "+
		"link=packets=1 bad-length=0 bad-checksum=0 sync-mismatch=0", env.ep.String())
}
