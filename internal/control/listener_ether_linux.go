//go:build linux

package control

import (
	"fmt"

	"github.com/icn-metis/metisd/internal/face"
)

// addEtherListener implements "add listener ether <symbolic> <addr>
// <ifname>" on Linux, where raw-Ethernet faces are available via
// AF_PACKET (internal/face/ether.go).
func (m *Manager) addEtherListener(sym, ifaceName string) Result {
	etherLn := face.MakeEtherListener(ifaceName)
	ln := &demuxListener{
		name:  etherLn.String(),
		runFn: func() { etherLn.Run(m.etherDemux(sym, ifaceName), m.OnFrame) },
		close: etherLn.Close,
	}
	m.listeners[sym] = ln
	go ln.Run()
	return ok(fmt.Sprintf("listener %s bound as %s", sym, ln))
}

// etherDemux resolves newly observed source MACs into per-peer
// Connections, dialing a dedicated unicast raw socket back to that MAC
// (spec.md §4.7: "link faces... demultiplexed by source MAC"). The
// listener's accept loop runs on a single goroutine, so the plain map
// needs no locking of its own.
func (m *Manager) etherDemux(listenerSym, ifaceName string) func(face.Address) uint64 {
	seen := make(map[[6]byte]uint64)
	return func(remote face.Address) uint64 {
		if id, ok := seen[remote.MAC]; ok {
			return id
		}
		t, err := face.MakeEtherTransport(ifaceName, remote.MAC)
		if err != nil {
			return 0
		}
		c := m.addTransport(fmt.Sprintf("%s#%x", listenerSym, remote.MAC), t)
		seen[remote.MAC] = c.ID()
		return c.ID()
	}
}
