package face

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/icn-metis/metisd/internal/core"
)

// TCPTransport is a reliable stream transport. Frames are delimited with a
// 2-byte big-endian length prefix (the CCNx v1 packetLength already in the
// fixed header would work too, but prefixing keeps the transport agnostic
// to the codec above it, matching the teacher's layering in
// fw/face/tcp-listener.go / unicast-udp-transport.go).
type TCPTransport struct {
	conn   net.Conn
	local  Address
	remote Address
	local_ bool
}

// DialTCP establishes a new outbound TCP face.
func DialTCP(remote Address) (*TCPTransport, error) {
	addr := fmt.Sprintf("%s:%d", remote.Host, remote.Port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp dial: %w", err)
	}
	return newTCPTransport(conn, remote), nil
}

func newTCPTransport(conn net.Conn, remote Address) *TCPTransport {
	local := conn.LocalAddr().(*net.TCPAddr)
	ip := local.IP
	return &TCPTransport{
		conn:   conn,
		local:  Address{Family: FamilyInet, Host: ip.String(), Port: uint16(local.Port)},
		remote: remote,
		local_: ip.IsLoopback(),
	}
}

func (t *TCPTransport) String() string    { return fmt.Sprintf("tcp-transport (remote=%s)", t.remote) }
func (t *TCPTransport) Close() error      { return t.conn.Close() }
func (t *TCPTransport) Local() Address    { return t.local }
func (t *TCPTransport) Remote() Address   { return t.remote }
func (t *TCPTransport) IsLocal() bool     { return t.local_ }

// Write sends one length-prefixed frame.
func (t *TCPTransport) Write(frame []byte) error {
	hdr := make([]byte, 2)
	binary.BigEndian.PutUint16(hdr, uint16(len(frame)))
	if _, err := t.conn.Write(hdr); err != nil {
		return err
	}
	_, err := t.conn.Write(frame)
	return err
}

// runReceive reads length-prefixed frames until EOF/error, handing each to
// onFrame. Runs on its own goroutine per spec.md §5's helper-thread model.
func (t *TCPTransport) runReceive(connID uint64, onFrame OnFrame) {
	hdr := make([]byte, 2)
	for {
		if _, err := io.ReadFull(t.conn, hdr); err != nil {
			return
		}
		n := binary.BigEndian.Uint16(hdr)
		frame := make([]byte, n)
		if _, err := io.ReadFull(t.conn, frame); err != nil {
			return
		}
		onFrame(connID, frame)
	}
}

// TCPListener accepts incoming TCP unicast connections (spec.md §4.7).
type TCPListener struct {
	local    Address
	ln       net.Listener
	stopped  chan struct{}
	onAccept func(t *TCPTransport)
}

// MakeTCPListener constructs (but does not start) a TCPListener.
func MakeTCPListener(local Address, onAccept func(t *TCPTransport)) *TCPListener {
	return &TCPListener{local: local, stopped: make(chan struct{}), onAccept: onAccept}
}

func (l *TCPListener) String() string { return fmt.Sprintf("tcp-listener (%s)", l.local) }

// Run accepts connections until Close or a fatal listener error.
func (l *TCPListener) Run() {
	defer close(l.stopped)

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp",
		fmt.Sprintf("%s:%d", l.local.Host, l.local.Port))
	if err != nil {
		core.Log.Fatal(l, "unable to start TCP listener", "err", err)
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
		remote := conn.RemoteAddr().(*net.TCPAddr)
		t := newTCPTransport(conn, Address{Family: FamilyInet, Host: remote.IP.String(), Port: uint16(remote.Port)})
		core.Log.Info(l, "accepted TCP face", "remote", t.remote)
		l.onAccept(t)
	}
}

// Close stops the accept loop.
func (l *TCPListener) Close() {
	if l.ln != nil {
		l.ln.Close()
		<-l.stopped
	}
}
