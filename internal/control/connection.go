package control

import (
	"fmt"
	"sort"
	"strings"

	"github.com/icn-metis/metisd/internal/face"
)

// addConnection implements "add connection {tcp|udp|ether} <symbolic>
// <remote> <local>" (spec.md §6), grounded on metisControl_Add.c's
// connection sub-verb.
func (m *Manager) addConnection(cmd Command) Result {
	kind := ConnectionKind(cmd.Args[0])
	sym, remoteStr, localStr := cmd.Args[1], cmd.Args[2], cmd.Args[3]

	if _, exists := m.symToConn[sym]; exists {
		return execErr(fmt.Sprintf("connection %q already exists", sym))
	}

	var t face.Transport
	switch kind {
	case ConnTCP:
		remote, err := parseHostPort(remoteStr)
		if err != nil {
			return parseErr(err.Error())
		}
		tcp, err := face.DialTCP(remote)
		if err != nil {
			return execErr(fmt.Sprintf("dial tcp %s: %v", remoteStr, err))
		}
		t = tcp
	case ConnUDP:
		remote, err := parseHostPort(remoteStr)
		if err != nil {
			return parseErr(err.Error())
		}
		udp, err := face.DialUDP(remote)
		if err != nil {
			return execErr(fmt.Sprintf("dial udp %s: %v", remoteStr, err))
		}
		t = udp
	case ConnEther:
		mac, err := parseMAC(remoteStr)
		if err != nil {
			return parseErr(err.Error())
		}
		ether, err := dialEther(localStr, mac)
		if err != nil {
			return execErr(fmt.Sprintf("ether connection on %s to %s: %v", localStr, remoteStr, err))
		}
		t = ether
	default:
		return parseErr(fmt.Sprintf("unknown connection kind %q", kind))
	}

	c := m.addTransportLocked(sym, t)
	return ok(fmt.Sprintf("connection %s added as id %d (%s)", sym, c.ID(), c))
}

// addTransportLocked registers a freshly dialed or accepted transport as a
// Connection under sym, wiring its receive loop into OnFrame. Callers
// already hold m.mu (Exec's dispatch lock for dialed connections; listener
// accept callbacks take it explicitly via addTransport).
func (m *Manager) addTransportLocked(sym string, t face.Transport) *face.Connection {
	id := m.Connections.NextID()
	c := face.NewConnection(id, t, 256, face.DropNewest, m.Bus)
	added := m.Connections.Add(c)
	if added.ID() != id {
		// de-duplicated against an existing (local,remote) pair
		t.Close()
		c = added
	} else {
		face.StartReceiving(t, id, m.OnFrame)
	}
	m.registerConnection(sym, c)
	return c
}

// addTransport is addTransportLocked for callers outside Exec's dispatch
// lock - namely a listener's onAccept callback, invoked from that
// listener's own accept-loop goroutine.
func (m *Manager) addTransport(sym string, t face.Transport) *face.Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addTransportLocked(sym, t)
}

// removeConnection implements "remove connection <symbolic>".
func (m *Manager) removeConnection(cmd Command) Result {
	sym := cmd.Args[0]
	id, ok2 := m.lookupSymbol(sym)
	if !ok2 {
		return execErr(fmt.Sprintf("no such connection %q", sym))
	}

	m.Connections.Remove(id)
	m.Fib.PurgeConnection(id)
	m.Pit.PurgeConnection(id)
	for _, s := range m.Strategies {
		s.PurgeConnection(id)
	}
	delete(m.symToConn, sym)
	delete(m.connToSym, id)

	return ok(fmt.Sprintf("connection %s removed", sym))
}

// listConnections implements "list connections".
func (m *Manager) listConnections() Result {
	conns := m.Connections.All()
	sort.Slice(conns, func(i, j int) bool { return conns[i].ID() < conns[j].ID() })

	var sb strings.Builder
	for _, c := range conns {
		sym := m.connToSym[c.ID()]
		fmt.Fprintf(&sb, "%d %s state=%s local=%s remote=%s outbox=%d\n",
			c.ID(), sym, c.State(), c.Local(), c.Remote(), c.OutboxLen())
	}
	return ok(sb.String())
}

// listInterfaces implements "list interfaces", reporting the bound
// listeners rather than individual connections.
func (m *Manager) listInterfaces() Result {
	names := make([]string, 0, len(m.listeners))
	for sym := range m.listeners {
		names = append(names, sym)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, sym := range names {
		fmt.Fprintf(&sb, "%s %s\n", sym, m.listeners[sym])
	}
	return ok(sb.String())
}
