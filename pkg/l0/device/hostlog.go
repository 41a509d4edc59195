package device

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/nfcreg/pkg/l0/comm"
)

// Logger receives device log lines.
type Logger interface {
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
}

// HostLogBufferSize is the size of the line buffer mirrored to the host.
const HostLogBufferSize = 128

// HostLog logs locally with glog and mirrors lines to the host as LOG
// packets while debug mode is enabled. Lines are buffered and flushed on
// newline or when the buffer fills up. Sending is best effort.
type HostLog struct {
	conn   *ConnectionState
	sender comm.PacketSender
	buf    [HostLogBufferSize]byte
	n      int
}

// NewHostLog creates a HostLog.
func NewHostLog(conn *ConnectionState, sender comm.PacketSender) *HostLog {
	return &HostLog{conn: conn, sender: sender}
}

// Write implements io.Writer. Bytes are dropped unless debug is enabled.
func (l *HostLog) Write(p []byte) (int, error) {
	if !l.conn.Debug() {
		return len(p), nil
	}
	for _, b := range p {
		if l.n >= len(l.buf)-1 {
			l.Flush()
		}
		l.buf[l.n] = b
		l.n++
		if b == '\n' {
			l.Flush()
		}
	}
	return len(p), nil
}

// Buffered returns the number of bytes not yet sent.
func (l *HostLog) Buffered() int {
	return l.n
}

// Flush sends buffered bytes in chunks fitting in a LOG packet.
func (l *HostLog) Flush() {
	for sent := 0; sent < l.n; {
		end := sent + comm.MaxPayloadLen
		if end > l.n {
			end = l.n
		}
		if err := l.sender.Send(comm.Log, l.buf[sent:end]); err != nil {
			glog.Warningf("host log dropped: %v", err)
			break
		}
		sent = end
	}
	l.n = 0
}

// Infof implements Logger.
func (l *HostLog) Infof(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	glog.InfoDepth(1, msg)
	fmt.Fprintln(l, msg)
}

// Warningf implements Logger.
func (l *HostLog) Warningf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	glog.WarningDepth(1, msg)
	fmt.Fprintln(l, "warning: "+msg)
}
