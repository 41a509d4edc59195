package comm

import "fmt"

// ParseState is the position of the parser inside a frame.
type ParseState int

// Parser states.
const (
	AwaitingSyncHigh ParseState = iota
	AwaitingSyncLow
	ReadingLength
	ReadingBody
)

// String implements fmt.Stringer.
func (s ParseState) String() string {
	switch s {
	case AwaitingSyncHigh:
		return "AwaitingSyncHigh"
	case AwaitingSyncLow:
		return "AwaitingSyncLow"
	case ReadingLength:
		return "ReadingLength"
	case ReadingBody:
		return "ReadingBody"
	}
	return "Unknown"
}

// ParseStats counts frames seen by a Parser.
type ParseStats struct {
	Packets      uint64
	BadLength    uint64
	BadChecksum  uint64
	SyncMismatch uint64
}

// String implements fmt.Stringer.
func (s ParseStats) String() string {
	return fmt.Sprintf("packets=%d bad-length=%d bad-checksum=%d sync-mismatch=%d",
		s.Packets, s.BadLength, s.BadChecksum, s.SyncMismatch)
}

// Parser parses bytes received. It is not safe for concurrent use,
// a link has exactly one parser fed from one goroutine.
type Parser struct {
	state  ParseState
	length byte
	body   [MaxPayloadSize]byte
	recv   int
	stats  ParseStats
}

// State gets the current parse state.
func (p *Parser) State() ParseState {
	return p.state
}

// Stats returns frame counters.
func (p *Parser) Stats() ParseStats {
	return p.stats
}

// Reset drops any partially received frame.
func (p *Parser) Reset() {
	p.state, p.length, p.recv = AwaitingSyncHigh, 0, 0
}

// Feed consumes one byte and returns a packet when a valid frame completes.
func (p *Parser) Feed(b byte) *Packet {
	switch p.state {
	case AwaitingSyncHigh:
		if b == SyncHigh {
			p.state = AwaitingSyncLow
		}
	case AwaitingSyncLow:
		switch b {
		case SyncLow:
			p.state = ReadingLength
		case SyncHigh:
			// 'R' 'R' 'O': the second byte may start the real frame.
		default:
			p.stats.SyncMismatch++
			p.state = AwaitingSyncHigh
		}
	case ReadingLength:
		if b < 1 || int(b) >= MaxPayloadSize {
			p.stats.BadLength++
			p.Reset()
			return nil
		}
		p.length, p.recv = b, 0
		p.state = ReadingBody
	case ReadingBody:
		// body holds LEN bytes plus the checksum, LEN <= MaxPayloadSize-1.
		p.body[p.recv] = b
		p.recv++
		if p.recv > int(p.length) {
			return p.frameReady()
		}
	}
	return nil
}

// FeedBytes feeds all bytes and returns packets completed.
func (p *Parser) FeedBytes(data []byte) (pkts []*Packet) {
	for _, b := range data {
		if pkt := p.Feed(b); pkt != nil {
			pkts = append(pkts, pkt)
		}
	}
	return
}

func (p *Parser) frameReady() (pkt *Packet) {
	body := p.body[:p.length]
	if Checksum([]byte{p.length}, body) == p.body[p.length] {
		pkt = &Packet{Type: PacketType(body[0])}
		if len(body) > 1 {
			pkt.Payload = append([]byte(nil), body[1:]...)
		}
		p.stats.Packets++
	} else {
		p.stats.BadChecksum++
	}
	p.Reset()
	return
}
