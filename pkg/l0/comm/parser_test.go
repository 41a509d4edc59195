package comm

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func mustFrame(t *testing.T, typ PacketType, payload ...byte) []byte {
	pkt := Packet{Type: typ, Payload: payload}
	b, err := pkt.Bytes()
	require.NoError(t, err)
	return b
}

func TestParserRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	var parser Parser
	for n := 0; n <= MaxPayloadLen; n++ {
		payload := make([]byte, n)
		rnd.Read(payload)
		typ := PacketType(rnd.Intn(256))
		pkts := parser.FeedBytes(mustFrame(t, typ, payload...))
		require.Len(t, pkts, 1, "payload length %d", n)
		require.Equal(t, typ, pkts[0].Type)
		if n == 0 {
			require.Empty(t, pkts[0].Payload)
		} else {
			require.Equal(t, payload, pkts[0].Payload)
		}
		require.Equal(t, AwaitingSyncHigh, parser.State())
	}
	require.EqualValues(t, MaxPayloadLen+1, parser.Stats().Packets)
}

func TestParserStates(t *testing.T) {
	var parser Parser
	frame := mustFrame(t, SetDebug, 1)
	expect := []ParseState{AwaitingSyncLow, ReadingLength, ReadingBody, ReadingBody, ReadingBody}
	for i, b := range frame[:len(frame)-1] {
		require.Nil(t, parser.Feed(b))
		require.Equal(t, expect[i], parser.State(), "byte %d", i)
	}
	pkt := parser.Feed(frame[len(frame)-1])
	require.NotNil(t, pkt)
	require.Equal(t, AwaitingSyncHigh, parser.State())
}

func TestParserResilience(t *testing.T) {
	valid := mustFrame(t, VerifyResponse, 0x01)
	corrupted := append([]byte(nil), valid...)
	corrupted[4] ^= 0x10

	testCases := []struct {
		name   string
		in     [][]byte
		expect []*Packet
	}{
		{
			name:   "garbage before frame",
			in:     [][]byte{{0x00, 0xff, 0x13, 0x4f, 0x37}, valid},
			expect: []*Packet{{Type: VerifyResponse, Payload: []byte{1}}},
		},
		{
			name:   "garbage ending with sync high",
			in:     [][]byte{{0x10, 0x52}, valid},
			expect: []*Packet{{Type: VerifyResponse, Payload: []byte{1}}},
		},
		{
			name: "corrupted payload",
			in:   [][]byte{corrupted},
		},
		{
			name:   "corrupted then valid",
			in:     [][]byte{corrupted, valid},
			expect: []*Packet{{Type: VerifyResponse, Payload: []byte{1}}},
		},
		{
			name:   "zero length",
			in:     [][]byte{{0x52, 0x4f, 0x00}, valid},
			expect: []*Packet{{Type: VerifyResponse, Payload: []byte{1}}},
		},
		{
			name:   "length too large",
			in:     [][]byte{{0x52, 0x4f, MaxPayloadSize}, valid},
			expect: []*Packet{{Type: VerifyResponse, Payload: []byte{1}}},
		},
		{
			name:   "broken sync",
			in:     [][]byte{{0x52, 0x00, 0x4f, 0x01, 0x01, 0x02}, valid},
			expect: []*Packet{{Type: VerifyResponse, Payload: []byte{1}}},
		},
		{
			name: "back to back",
			in:   [][]byte{mustFrame(t, HeartbeatAck), mustFrame(t, OpenRegister), mustFrame(t, SetDebug, 0)},
			expect: []*Packet{
				{Type: HeartbeatAck},
				{Type: OpenRegister},
				{Type: SetDebug, Payload: []byte{0}},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var parser Parser
			var got []*Packet
			for _, chunk := range tc.in {
				got = append(got, parser.FeedBytes(chunk)...)
			}
			if diff := cmp.Diff(tc.expect, got); diff != "" {
				t.Errorf("packets mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParserStats(t *testing.T) {
	var parser Parser
	valid := mustFrame(t, Heartbeat, 1)
	corrupted := append([]byte(nil), valid...)
	corrupted[len(corrupted)-1]++
	parser.FeedBytes([]byte{0x52, 0x4f, 0x00})
	parser.FeedBytes([]byte{0x52, 0x11})
	parser.FeedBytes(corrupted)
	parser.FeedBytes(valid)
	require.Equal(t, ParseStats{Packets: 1, BadLength: 1, BadChecksum: 1, SyncMismatch: 1}, parser.Stats())
	require.Equal(t, "packets=1 bad-length=1 bad-checksum=1 sync-mismatch=1", parser.Stats().String())
}

func TestParserReset(t *testing.T) {
	var parser Parser
	frame := mustFrame(t, Log, 'h', 'i')
	parser.FeedBytes(frame[:4])
	require.Equal(t, ReadingBody, parser.State())
	parser.Reset()
	require.Equal(t, AwaitingSyncHigh, parser.State())
	require.Len(t, parser.FeedBytes(frame), 1)
}
