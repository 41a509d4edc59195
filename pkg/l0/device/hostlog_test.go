package device

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/nfcreg/pkg/l0/comm"
)

func newDebugHostLog() (*HostLog, *sentRecorder) {
	conn := &ConnectionState{}
	conn.SetDebug(true)
	sent := &sentRecorder{}
	return NewHostLog(conn, sent), sent
}

func joinLogs(sent *sentRecorder) string {
	var buf bytes.Buffer
	for _, pkt := range sent.ofType(comm.Log) {
		buf.Write(pkt.Payload)
	}
	return buf.String()
}

func TestHostLogDropsWithoutDebug(t *testing.T) {
	sent := &sentRecorder{}
	l := NewHostLog(&ConnectionState{}, sent)
	n, err := l.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Empty(t, sent.pkts)
	require.Zero(t, l.Buffered())
}

func TestHostLogFlushesOnNewline(t *testing.T) {
	l, sent := newDebugHostLog()
	l.Write([]byte("partial"))
	require.Empty(t, sent.pkts)
	require.Equal(t, 7, l.Buffered())
	l.Write([]byte(" line\nnext"))
	require.Equal(t, "partial line\n", joinLogs(sent))
	require.Equal(t, 4, l.Buffered())
	l.Flush()
	require.Equal(t, "partial line\nnext", joinLogs(sent))
}

func TestHostLogChunksLongLines(t *testing.T) {
	l, sent := newDebugHostLog()
	line := strings.Repeat("x", 300) + "\n"
	l.Write([]byte(line))
	require.Equal(t, line, joinLogs(sent))
	for _, pkt := range sent.pkts {
		require.True(t, len(pkt.Payload) <= comm.MaxPayloadLen)
	}
	require.Zero(t, l.Buffered())
}

func TestHostLogInfof(t *testing.T) {
	l, sent := newDebugHostLog()
	l.Infof("value %d", 42)
	l.Warningf("careful")
	require.Equal(t, "value 42\nwarning: careful\n", joinLogs(sent))
}
