package face

import (
	"fmt"
	"net"

	"github.com/icn-metis/metisd/internal/core"
)

// UDPTransport is a unicast UDP face: one Connection per (local,remote)
// tuple, created on first packet (spec.md §4.7), grounded on
// fw/face/unicast-udp-transport.go.
type UDPTransport struct {
	conn   *net.UDPConn
	local  Address
	remote Address
	local_ bool
}

// DialUDP connects a new unicast UDP face to remote.
func DialUDP(remote Address) (*UDPTransport, error) {
	raddr := &net.UDPAddr{IP: net.ParseIP(remote.Host), Port: int(remote.Port)}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("udp dial: %w", err)
	}
	local := conn.LocalAddr().(*net.UDPAddr)
	return &UDPTransport{
		conn:   conn,
		local:  Address{Family: FamilyInet, Host: local.IP.String(), Port: uint16(local.Port)},
		remote: remote,
		local_: raddr.IP.IsLoopback(),
	}, nil
}

func (t *UDPTransport) String() string  { return fmt.Sprintf("udp-transport (remote=%s)", t.remote) }
func (t *UDPTransport) Write(f []byte) error { return writeOrErr(t.conn.Write(f)) }
func (t *UDPTransport) Close() error     { return t.conn.Close() }
func (t *UDPTransport) Local() Address   { return t.local }
func (t *UDPTransport) Remote() Address  { return t.remote }
func (t *UDPTransport) IsLocal() bool    { return t.local_ }

func writeOrErr(_ int, err error) error { return err }

func (t *UDPTransport) runReceive(connID uint64, onFrame OnFrame) {
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

// UDPListener accepts unicast UDP packets on a shared socket, binding a new
// Connection the first time a given remote address is observed.
type UDPListener struct {
	local   Address
	conn    *net.UDPConn
	stopped chan struct{}
}

// demuxedUDPTransport is a logical per-peer face multiplexed over one
// shared listening socket (used for unicast UDP faces created on first
// packet rather than via an explicit Dial).
type demuxedUDPTransport struct {
	shared *net.UDPConn
	local  Address
	remote Address
	raddr  *net.UDPAddr
	local_ bool
}

func (t *demuxedUDPTransport) String() string {
	return fmt.Sprintf("udp-transport (remote=%s)", t.remote)
}
func (t *demuxedUDPTransport) Write(f []byte) error {
	_, err := t.shared.WriteToUDP(f, t.raddr)
	return err
}
func (t *demuxedUDPTransport) Close() error    { return nil } // shared socket outlives any one peer
func (t *demuxedUDPTransport) Local() Address  { return t.local }
func (t *demuxedUDPTransport) Remote() Address { return t.remote }
func (t *demuxedUDPTransport) IsLocal() bool   { return t.local_ }

// NewDemuxedUDPTransport wraps the listener's shared socket as the
// Transport for one newly observed peer address.
func NewDemuxedUDPTransport(shared *net.UDPConn, local, remote Address, raddr *net.UDPAddr) Transport {
	return &demuxedUDPTransport{
		shared: shared,
		local:  local,
		remote: remote,
		raddr:  raddr,
		local_: raddr.IP.IsLoopback(),
	}
}

// MakeUDPListener constructs (but does not start) a UDP listener.
func MakeUDPListener(local Address) *UDPListener {
	return &UDPListener{local: local, stopped: make(chan struct{})}
}

func (l *UDPListener) String() string { return fmt.Sprintf("udp-listener (%s)", l.local) }

// Conn exposes the listener's shared socket once Run has bound it, so a
// demux callback can wrap newly observed peers with
// NewDemuxedUDPTransport. Nil before Run starts.
func (l *UDPListener) Conn() *net.UDPConn { return l.conn }

// Run reads datagrams until Close, dispatching each to the owning
// Connection id that demux resolves for the sender's address.
func (l *UDPListener) Run(demux func(remote Address) uint64, frame func(connID uint64, b []byte)) {
	defer close(l.stopped)

	laddr := &net.UDPAddr{IP: net.ParseIP(l.local.Host), Port: int(l.local.Port)}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		core.Log.Fatal(l, "unable to start UDP listener", "err", err)
		return
	}
	l.conn = conn

	buf := make([]byte, 65535)
	for !core.ShouldQuit() {
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		remote := Address{Family: FamilyInet, Host: raddr.IP.String(), Port: uint16(raddr.Port)}
		connID := demux(remote)
		frameBuf := make([]byte, n)
		copy(frameBuf, buf[:n])
		frame(connID, frameBuf)
	}
}

func (l *UDPListener) Close() {
	if l.conn != nil {
		l.conn.Close()
		<-l.stopped
	}
}

// MulticastUDPTransport sends to and receives from an IP multicast group,
// used to reach all forwarders on a local broadcast domain without
// per-peer unicast faces (spec.md §4.7, grounded on
// fw/face/multicast-udp-transport.go).
type MulticastUDPTransport struct {
	conn  *net.UDPConn
	group Address
}

// MakeMulticastUDPTransport joins the multicast group described by group
// (Host = group address, Port = group port) on the named interface.
func MakeMulticastUDPTransport(group Address, ifaceName string) (*MulticastUDPTransport, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("multicast iface: %w", err)
	}
	gaddr := &net.UDPAddr{IP: net.ParseIP(group.Host), Port: int(group.Port)}
	conn, err := net.ListenMulticastUDP("udp", iface, gaddr)
	if err != nil {
		return nil, fmt.Errorf("multicast join: %w", err)
	}
	return &MulticastUDPTransport{conn: conn, group: group}, nil
}

func (t *MulticastUDPTransport) String() string {
	return fmt.Sprintf("multicast-udp-transport (group=%s)", t.group)
}
func (t *MulticastUDPTransport) Write(f []byte) error {
	gaddr := &net.UDPAddr{IP: net.ParseIP(t.group.Host), Port: int(t.group.Port)}
	_, err := t.conn.WriteToUDP(f, gaddr)
	return err
}
func (t *MulticastUDPTransport) Close() error    { return t.conn.Close() }
func (t *MulticastUDPTransport) Local() Address  { return t.group }
func (t *MulticastUDPTransport) Remote() Address { return t.group }
func (t *MulticastUDPTransport) IsLocal() bool    { return false }

func (t *MulticastUDPTransport) runReceive(connID uint64, onFrame OnFrame) {
	buf := make([]byte, 65535)
	for {
		n, _, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		onFrame(connID, frame)
	}
}
