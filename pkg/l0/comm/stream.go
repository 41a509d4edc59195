package comm

import (
	"context"
	"io"

	"github.com/golang/glog"
)

// PacketHandler is called when a packet is received.
type PacketHandler interface {
	HandlePacket(context.Context, *Packet)
}

// HandlePacketFunc is func type of PacketHandler.
type HandlePacketFunc func(context.Context, *Packet)

// HandlePacket implements PacketHandler.
func (f HandlePacketFunc) HandlePacket(ctx context.Context, pkt *Packet) {
	f(ctx, pkt)
}

const readBufSize = 256

// readLoop reads chunks from r until error or cancel. Each chunk is a
// fresh slice owned by the receiver.
func readLoop(ctx context.Context, r io.Reader, chunkCh chan<- []byte, errCh chan<- error) {
	buf := make([]byte, readBufSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case chunkCh <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}

// Stream receives packets from a link and delivers them to Handler on
// the goroutine calling Run. Sending goes through the embedded Sender.
type Stream struct {
	*Sender
	Reader  io.Reader
	Handler PacketHandler

	parser Parser
}

// NewStream creates a Stream over rw.
func NewStream(rw io.ReadWriter) *Stream {
	return &Stream{Sender: NewSender(rw), Reader: rw}
}

// Run implements Runnable.
func (s *Stream) Run(ctx context.Context) error {
	chunkCh, errCh := make(chan []byte, 1), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go readLoop(subCtx, s.Reader, chunkCh, errCh)
	for {
		select {
		case chunk := <-chunkCh:
			for _, b := range chunk {
				if pkt := s.parser.Feed(b); pkt != nil {
					glog.V(3).Infof("RCV %s", pkt)
					if h := s.Handler; h != nil {
						h.HandlePacket(ctx, pkt)
					}
				}
			}
		case err := <-errCh:
			if err == io.EOF {
				return ErrClosed
			}
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Receiver queues bytes read from a link so a cooperative loop can parse
// them on its own goroutine. Run only reads, Poll only parses.
type Receiver struct {
	Reader io.Reader
	// Notify is called after bytes are queued, e.g. Loop.TriggerNext.
	Notify func()

	chunkCh chan []byte
	parser  Parser
}

// NewReceiver creates a Receiver reading from r.
func NewReceiver(r io.Reader) *Receiver {
	return &Receiver{Reader: r, chunkCh: make(chan []byte, 64)}
}

// Run implements Runnable.
func (r *Receiver) Run(ctx context.Context) error {
	readCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go readLoop(subCtx, r.Reader, readCh, errCh)
	for {
		select {
		case chunk := <-readCh:
			select {
			case r.chunkCh <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
			if r.Notify != nil {
				r.Notify()
			}
		case err := <-errCh:
			if err == io.EOF {
				return ErrClosed
			}
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Push queues bytes as if they were read from the link.
func (r *Receiver) Push(data []byte) {
	r.chunkCh <- append([]byte(nil), data...)
}

// Poll parses every queued byte without blocking and returns completed
// packets in arrival order.
func (r *Receiver) Poll() (pkts []*Packet) {
	for {
		select {
		case chunk := <-r.chunkCh:
			pkts = append(pkts, r.parser.FeedBytes(chunk)...)
		default:
			return
		}
	}
}

// Stats returns the parser counters.
func (r *Receiver) Stats() ParseStats {
	return r.parser.Stats()
}
