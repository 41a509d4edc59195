package device

import (
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/nfcreg/pkg/l0/comm"
)

// Handler processes the payload of a dispatched packet.
type Handler func(now time.Time, payload []byte)

type route struct {
	typ     comm.PacketType
	handler Handler
}

// Dispatcher routes packets to handlers. Until the host is connected only
// CONNECT_REQUEST gets through, to the connect handler which lives outside
// the routing table; nothing else runs before a connection is accepted.
type Dispatcher struct {
	conn    *ConnectionState
	connect Handler
	routes  []route
}

// NewDispatcher creates a Dispatcher gated by conn.
func NewDispatcher(conn *ConnectionState, connect Handler) *Dispatcher {
	return &Dispatcher{conn: conn, connect: connect}
}

// Handle appends a route. Routes are matched in registration order.
func (d *Dispatcher) Handle(t comm.PacketType, h Handler) error {
	for _, r := range d.routes {
		if r.typ == t {
			return &DuplicateHandlerError{Type: t}
		}
	}
	d.routes = append(d.routes, route{typ: t, handler: h})
	return nil
}

// MustHandle is Handle which panics on a duplicate registration.
func (d *Dispatcher) MustHandle(t comm.PacketType, h Handler) *Dispatcher {
	if err := d.Handle(t, h); err != nil {
		panic(err)
	}
	return d
}

// Dispatch runs the handler for pkt and reports whether one ran.
func (d *Dispatcher) Dispatch(now time.Time, pkt *comm.Packet) bool {
	if !d.conn.Connected() {
		if pkt.Type == comm.ConnectRequest && d.connect != nil {
			d.connect(now, pkt.Payload)
			return true
		}
		glog.V(2).Infof("drop %s: not connected", pkt.Type)
		return false
	}
	for _, r := range d.routes {
		if r.typ == pkt.Type {
			r.handler(now, pkt.Payload)
			return true
		}
	}
	glog.V(2).Infof("drop %s: no handler", pkt.Type)
	return false
}
