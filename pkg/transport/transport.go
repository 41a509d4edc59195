// Package transport opens the byte link between the host and the register
// endpoint. A link is named by a URL:
//
//	serial:///dev/ttyUSB0?baud=115200
//	tcp://127.0.0.1:7070
//	ws://127.0.0.1:7071/link
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/golang/glog"
	"go.bug.st/serial"
	"golang.org/x/net/websocket"
)

var (
	// ErrUnsupportedScheme indicates the URL scheme names no known transport.
	ErrUnsupportedScheme = errors.New("unsupported transport scheme")
	// ErrLinkBusy is reported to a second peer while a link is being served.
	ErrLinkBusy = errors.New("link busy")
)

// DefaultOrigin is the websocket origin used when dialing.
const DefaultOrigin = "http://localhost/"

// Open dials the link named by rawurl.
func Open(rawurl string) (io.ReadWriteCloser, error) {
	u, err := ParseLink(rawurl, false)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "serial":
		return openSerial(u)
	case "tcp":
		return net.Dial("tcp", u.Host)
	}
	conn, err := websocket.Dial(u.String(), "", DefaultOrigin)
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	return conn, nil
}

// ParseLink parses a link URL and checks its scheme can be dialed, or
// listened on when listen is set.
func ParseLink(rawurl string, listen bool) (*url.URL, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, fmt.Errorf("parse link %q: %w", rawurl, err)
	}
	switch {
	case u.Scheme == "tcp" || u.Scheme == "ws":
	case !listen && (u.Scheme == "serial" || u.Scheme == "wss"):
	case listen:
		return nil, fmt.Errorf("%w for listening: %q", ErrUnsupportedScheme, u.Scheme)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Scheme != "serial" && u.Host == "" {
		return nil, fmt.Errorf("link %q: missing host", rawurl)
	}
	return u, nil
}

// SerialDevice extracts the device path from a serial URL. Both
// serial:///dev/ttyUSB0 and serial://COM3 are accepted.
func SerialDevice(u *url.URL) string {
	if u.Path != "" {
		if u.Host != "" {
			return u.Host + u.Path
		}
		return u.Path
	}
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Host
}

func openSerial(u *url.URL) (io.ReadWriteCloser, error) {
	dev := SerialDevice(u)
	if dev == "" {
		return nil, fmt.Errorf("serial link %q: missing device", u)
	}
	opts, err := PortOptionsFromQuery(u.Query())
	if err != nil {
		return nil, err
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(dev, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dev, err)
	}
	glog.Infof("serial %s opened at %d %d%s%d", dev, opts.BaudRate, opts.DataBits, opts.Parity, opts.StopBits)
	return port, nil
}

// ServeFunc serves one accepted link until it fails or ctx is done.
type ServeFunc func(ctx context.Context, link io.ReadWriteCloser) error

// Listener accepts links for a listening URL and serves one at a time.
type Listener struct {
	URL   *url.URL
	Serve ServeFunc

	lock sync.Mutex
	busy bool
}

// NewListener parses rawurl for Listen.
func NewListener(rawurl string, serve ServeFunc) (*Listener, error) {
	u, err := ParseLink(rawurl, true)
	if err != nil {
		return nil, err
	}
	return &Listener{URL: u, Serve: serve}, nil
}

// Run implements Runnable.
func (l *Listener) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.URL.Host)
	if err != nil {
		return err
	}
	glog.Infof("listening on %s", l.URL)
	if l.URL.Scheme == "ws" {
		return l.runWebsocket(ctx, ln)
	}
	return l.runTCP(ctx, ln)
}

func (l *Listener) runTCP(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		go l.serve(ctx, conn)
	}
}

func (l *Listener) runWebsocket(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	path := l.URL.Path
	if path == "" {
		path = "/"
	}
	mux.Handle(path, websocket.Handler(func(conn *websocket.Conn) {
		conn.PayloadType = websocket.BinaryFrame
		l.serve(ctx, conn)
	}))
	server := &http.Server{Handler: mux}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	err := server.Serve(ln)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (l *Listener) acquire() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.busy {
		return false
	}
	l.busy = true
	return true
}

func (l *Listener) release() {
	l.lock.Lock()
	l.busy = false
	l.lock.Unlock()
}

func (l *Listener) serve(ctx context.Context, link io.ReadWriteCloser) {
	defer link.Close()
	if !l.acquire() {
		glog.Warningf("reject peer: %v", ErrLinkBusy)
		return
	}
	defer l.release()
	glog.Infof("peer attached on %s", l.URL)
	if err := l.Serve(ctx, link); err != nil && !errors.Is(err, context.Canceled) {
		glog.Warningf("link %s: %v", l.URL, err)
	}
	glog.Infof("peer detached from %s", l.URL)
}
