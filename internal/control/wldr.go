package control

import (
	"fmt"

	"github.com/icn-metis/metisd/internal/wldr"
)

// setWldr implements "set wldr {on|off} <symbolic>" (spec.md §6), attaching
// or detaching the per-hop loss-detection sidecar (internal/wldr) on the
// named connection. Connection.drain tags outgoing Interests/ContentObjects
// with the Sender, and internal/pipeline.Forwarder's ingress path observes
// labels and notifications with the Receiver - both read the pair straight
// off the *face.Connection (face.Connection.WLDR), so enabling/disabling
// here takes effect on the very next send/receive.
func (m *Manager) setWldr(cmd Command) Result {
	state, sym := cmd.Args[0], cmd.Args[1]

	id, ok2 := m.lookupSymbol(sym)
	if !ok2 {
		return execErr(fmt.Sprintf("no such connection %q", sym))
	}
	c := m.Connections.Get(id)
	if c == nil {
		return execErr(fmt.Sprintf("no such connection %q", sym))
	}

	if state == "off" {
		c.SetWLDR(nil, nil)
		return ok(fmt.Sprintf("wldr disabled on %s", sym))
	}

	c.SetWLDR(wldr.NewSender(), wldr.NewReceiver())
	return ok(fmt.Sprintf("wldr enabled on %s", sym))
}
