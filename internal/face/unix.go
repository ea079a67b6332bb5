package face

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/icn-metis/metisd/internal/core"
)

// UnixTransport is a Unix-domain stream face - always local, used for
// trusted same-host producer/consumer processes (spec.md §4.7, grounded
// on fw/face/unix-stream-transport.go).
type UnixTransport struct {
	conn net.Conn
	path string
}

// DialUnix connects to a Unix-domain socket at path.
func DialUnix(path string) (*UnixTransport, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("unix dial: %w", err)
	}
	return &UnixTransport{conn: conn, path: path}, nil
}

func (t *UnixTransport) String() string  { return fmt.Sprintf("unix-transport (%s)", t.path) }
func (t *UnixTransport) Close() error    { return t.conn.Close() }
func (t *UnixTransport) Local() Address  { return Address{Family: FamilyUnix, Host: t.path} }
func (t *UnixTransport) Remote() Address { return Address{Family: FamilyUnix, Host: t.path} }
func (t *UnixTransport) IsLocal() bool   { return true }

func (t *UnixTransport) Write(frame []byte) error {
	_, err := t.conn.Write(frame)
	return err
}

func (t *UnixTransport) runReceive(connID uint64, onFrame OnFrame) {
	buf := make([]byte, 65535)
	for {
		n, err := t.conn.Read(buf)
		if err != nil {
			return
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		onFrame(connID, frame)
	}
}

// UnixListener accepts incoming Unix-domain stream connections.
type UnixListener struct {
	path     string
	ln       net.Listener
	stopped  chan struct{}
	onAccept func(t *UnixTransport)
}

// MakeUnixListener constructs (but does not start) a listener for path.
// Run removes any stale socket file left behind by a previous run and
// then binds.
func MakeUnixListener(path string, onAccept func(t *UnixTransport)) *UnixListener {
	return &UnixListener{path: path, stopped: make(chan struct{}), onAccept: onAccept}
}

func (l *UnixListener) String() string { return fmt.Sprintf("unix-listener (%s)", l.path) }

func (l *UnixListener) Run() {
	defer close(l.stopped)

	_ = os.Remove(l.path) // stale socket from a previous run
	ln, err := net.Listen("unix", l.path)
	if err != nil {
		core.Log.Fatal(l, "unable to start unix listener", "err", err)
		return
	}
	l.ln = ln

	for !core.ShouldQuit() {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			core.Log.Warn(l, "unable to accept connection", "err", err)
			continue
		}
		l.onAccept(&UnixTransport{conn: conn, path: l.path})
	}
}

func (l *UnixListener) Close() {
	if l.ln != nil {
		l.ln.Close()
		<-l.stopped
		_ = os.Remove(l.path)
	}
}
