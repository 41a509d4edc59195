package comm

import (
	"io"
	"sync"

	"github.com/golang/glog"
)

// PacketSender sends a packet of type with payload.
type PacketSender interface {
	Send(t PacketType, payload []byte) error
}

// SendFunc is func type of PacketSender.
type SendFunc func(PacketType, []byte) error

// Send implements PacketSender.
func (f SendFunc) Send(t PacketType, payload []byte) error {
	return f(t, payload)
}

// Sender writes frames to the transport. Each frame is written with
// one Write call under a lock so frames never interleave.
type Sender struct {
	Writer io.Writer

	lock sync.Mutex
}

// NewSender creates a Sender.
func NewSender(w io.Writer) *Sender {
	return &Sender{Writer: w}
}

// Send implements PacketSender.
func (s *Sender) Send(t PacketType, payload []byte) error {
	pkt := Packet{Type: t, Payload: payload}
	frame, err := pkt.Bytes()
	if err != nil {
		glog.Errorf("send %s: %v", t, err)
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, err = s.Writer.Write(frame); err != nil {
		glog.Warningf("send %s: %v", t, err)
		return err
	}
	glog.V(3).Infof("SND %s", &pkt)
	return nil
}
