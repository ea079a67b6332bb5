package control

import (
	"fmt"
	"net"
	"strconv"

	"github.com/icn-metis/metisd/internal/face"
)

// addListener implements "add listener {tcp|udp|ether|local|ws|quic}
// <symbolic> <addr> <port|ifname>" (spec.md §6, SPEC_FULL.md §4.7's
// ws/quic additions), grounded on metisControl_Add.c's listener sub-verb.
func (m *Manager) addListener(cmd Command) Result {
	kind := ListenerKind(cmd.Args[0])
	sym, addr, portOrIface := cmd.Args[1], cmd.Args[2], cmd.Args[3]

	if _, exists := m.listeners[sym]; exists {
		return execErr(fmt.Sprintf("listener %q already exists", sym))
	}

	if kind == ListenEther {
		return m.addEtherListener(sym, portOrIface)
	}

	var ln face.Listener
	switch kind {
	case ListenTCP:
		port, err := strconv.ParseUint(portOrIface, 10, 16)
		if err != nil {
			return parseErr(fmt.Sprintf("invalid port %q: %v", portOrIface, err))
		}
		local := face.Address{Family: face.FamilyInet, Host: addr, Port: uint16(port)}
		tcpLn := face.MakeTCPListener(local, func(t *face.TCPTransport) {
			m.addTransport(fmt.Sprintf("%s#%d", sym, t.Remote().Port), t)
		})
		ln = tcpLn
	case ListenUDP:
		port, err := strconv.ParseUint(portOrIface, 10, 16)
		if err != nil {
			return parseErr(fmt.Sprintf("invalid port %q: %v", portOrIface, err))
		}
		local := face.Address{Family: face.FamilyInet, Host: addr, Port: uint16(port)}
		udpLn := face.MakeUDPListener(local)
		ln = &demuxListener{
			name:  udpLn.String(),
			runFn: func() { udpLn.Run(m.udpDemux(udpLn, sym, local), m.OnFrame) },
			close: udpLn.Close,
		}
	case ListenLocal:
		unixLn := face.MakeUnixListener(addr, func(t *face.UnixTransport) {
			m.addTransport(fmt.Sprintf("%s#%d", sym, len(m.symToConn)), t)
		})
		ln = unixLn
	case ListenWS:
		port, err := strconv.ParseUint(portOrIface, 10, 16)
		if err != nil {
			return parseErr(fmt.Sprintf("invalid port %q: %v", portOrIface, err))
		}
		cfg := face.WebSocketListenerConfig{Bind: addr, Port: uint16(port)}
		wsLn := face.MakeWebSocketListener(cfg, func(t *face.WebSocketTransport) {
			m.addTransport(fmt.Sprintf("%s#%d", sym, t.Remote().Port), t)
		})
		ln = wsLn
	case ListenQUIC:
		port, err := strconv.ParseUint(portOrIface, 10, 16)
		if err != nil {
			return parseErr(fmt.Sprintf("invalid port %q: %v", portOrIface, err))
		}
		cfg := face.QUICListenerConfig{Bind: addr, Port: uint16(port), TLSCert: m.QuicTLSCert, TLSKey: m.QuicTLSKey}
		quicLn, err := face.MakeQUICListener(cfg, func(t *face.QUICTransport) {
			m.addTransport(fmt.Sprintf("%s#%d", sym, len(m.symToConn)), t)
		})
		if err != nil {
			return execErr(fmt.Sprintf("quic listener: %v", err))
		}
		ln = quicLn
	default:
		return parseErr(fmt.Sprintf("unknown listener kind %q", kind))
	}

	m.listeners[sym] = ln
	go ln.Run()
	return ok(fmt.Sprintf("listener %s bound as %s", sym, ln))
}

// demuxListener adapts a shared-socket listener whose Run takes
// (demux, frame) callbacks - UDPListener and, on Linux, EtherListener -
// into the zero-argument face.Listener interface the control plane's
// listener map holds, so "list interfaces"/shutdown treat every listener
// kind uniformly.
type demuxListener struct {
	name  string
	runFn func()
	close func()
}

func (d *demuxListener) String() string { return d.name }
func (d *demuxListener) Run()           { d.runFn() }
func (d *demuxListener) Close()         { d.close() }

// udpDemux resolves a UDP listener's shared socket into a closure suitable
// for UDPListener.Run: on first sight of a remote address it wraps the
// shared conn as a per-peer Transport and registers it as a Connection
// under an auto-generated symbolic name.
func (m *Manager) udpDemux(ln *face.UDPListener, listenerSym string, local face.Address) func(face.Address) uint64 {
	return func(remote face.Address) uint64 {
		if c := m.Connections.GetByPair(local, remote); c != nil {
			return c.ID()
		}
		raddr := &net.UDPAddr{IP: net.ParseIP(remote.Host), Port: int(remote.Port)}
		t := face.NewDemuxedUDPTransport(ln.Conn(), local, remote, raddr)
		c := m.addTransport(fmt.Sprintf("%s#%d", listenerSym, remote.Port), t)
		return c.ID()
	}
}
