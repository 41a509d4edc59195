package comm

import (
	"fmt"
	"io"
)

// Frame constants.
const (
	SyncHigh byte = 0x52 // 'R'
	SyncLow  byte = 0x4F // 'O'

	// MaxPayloadSize bounds LEN: a frame is valid only if LEN < MaxPayloadSize.
	MaxPayloadSize = 64
	// MaxPayloadLen is the largest payload a frame can carry (LEN - type byte).
	MaxPayloadLen = MaxPayloadSize - 2

	// ProtocolVersion is reported in CONNECT_RESPONSE.
	ProtocolVersion byte = 1

	frameOverhead = 5 // sync(2) + len + type + checksum
)

// PacketType identifies the meaning of a packet.
type PacketType byte

// Packet types.
const (
	ConnectRequest  PacketType = 0x01
	ConnectResponse PacketType = 0x02
	VerifyRequest   PacketType = 0x03
	VerifyResponse  PacketType = 0x04
	SetDebug        PacketType = 0x05
	OpenRegister    PacketType = 0x06
	RegisterState   PacketType = 0x07
	Heartbeat       PacketType = 0x08
	HeartbeatAck    PacketType = 0x09
	Log             PacketType = 0x0A
	FlushLog        PacketType = 0x0B
)

var packetTypeNames = map[PacketType]string{
	ConnectRequest:  "CONNECT_REQUEST",
	ConnectResponse: "CONNECT_RESPONSE",
	VerifyRequest:   "VERIFY_REQUEST",
	VerifyResponse:  "VERIFY_RESPONSE",
	SetDebug:        "SET_DEBUG",
	OpenRegister:    "OPEN_REGISTER",
	RegisterState:   "REGISTER_STATE",
	Heartbeat:       "HEARTBEAT",
	HeartbeatAck:    "HEARTBEAT_ACK",
	Log:             "LOG",
	FlushLog:        "FLUSH_LOG",
}

// String implements fmt.Stringer.
func (t PacketType) String() string {
	if name, ok := packetTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TYPE(0x%02x)", byte(t))
}

// IsKnown tells whether t is one of the defined packet types.
func (t PacketType) IsKnown() bool {
	_, ok := packetTypeNames[t]
	return ok
}

// Packet contains the information of a parsed packet.
type Packet struct {
	Type    PacketType
	Payload []byte
}

// Checksum sums the bytes truncated to 8 bits.
func Checksum(data ...[]byte) byte {
	var sum byte
	for _, d := range data {
		for _, b := range d {
			sum += b
		}
	}
	return sum
}

// Bytes returns encoded bytes for sending.
func (p *Packet) Bytes() ([]byte, error) {
	if len(p.Payload) > MaxPayloadLen {
		return nil, &PayloadError{Type: p.Type, Len: len(p.Payload)}
	}
	b := make([]byte, 0, len(p.Payload)+frameOverhead)
	b = append(b, SyncHigh, SyncLow, byte(len(p.Payload)+1), byte(p.Type))
	b = append(b, p.Payload...)
	return append(b, Checksum(b[2:])), nil
}

// WriteTo writes the encoded frame with a single Write call.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	b, err := p.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// String implements fmt.Stringer.
func (p *Packet) String() string {
	return fmt.Sprintf("%s[% x]", p.Type, p.Payload)
}
