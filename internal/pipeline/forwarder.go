// Package pipeline implements the forwarding pipeline binding the FIB,
// PIT, Content Store, Strategy set, and Connection Table (spec.md §4.5).
// Every method here runs on the dispatcher loop thread (spec.md §5); it is
// the only code path allowed to mutate those tables.
package pipeline

import (
	"time"

	"github.com/icn-metis/metisd/internal/core"
	"github.com/icn-metis/metisd/internal/face"
	"github.com/icn-metis/metisd/internal/metrics"
	"github.com/icn-metis/metisd/internal/name"
	"github.com/icn-metis/metisd/internal/pkt"
	"github.com/icn-metis/metisd/internal/strategy"
	"github.com/icn-metis/metisd/internal/table"
	"github.com/icn-metis/metisd/internal/wire"
	"github.com/icn-metis/metisd/internal/wldr"
)

// Forwarder wires the per-loop tables together and implements the ingress
// steps for each packet kind (spec.md §4.5).
type Forwarder struct {
	Arena       *name.Arena
	Fib         *table.Fib
	Pit         *table.Pit
	CS          *table.ContentStore
	Connections *face.Table
	Strategies  map[table.StrategyName]strategy.Strategy
	Metrics     *metrics.Counters

	// DefaultLifetime is used when an Interest carries no (or a
	// zero-length) InterestLifetime field.
	DefaultLifetime time.Duration
}

func (f *Forwarder) String() string { return "forwarder" }

func (f *Forwarder) strategyFor(name table.StrategyName) strategy.Strategy {
	if s, ok := f.Strategies[name]; ok {
		return s
	}
	return f.Strategies[table.StrategyAll]
}

// HandleIngress is the dispatcher's single entry point for a frame read
// off any connection: wire-parse, classify, and dispatch to the
// appropriate per-kind handler (spec.md §4.5 steps "1. Wire-parse...").
func (f *Forwarder) HandleIngress(ingress uint64, frame []byte) {
	sk, err := wire.Parse(frame)
	if err != nil {
		f.Metrics.Incr(metrics.InvalidPacket)
		core.Log.Debug(f, "dropping unparseable packet", "ingress", ingress, "err", err)
		return
	}

	// WLDR (spec.md §4.8) piggybacks on the same optional-header region
	// every packet carries: a standalone Control frame with no CPI payload
	// is a gap notification bound for our Sender, while a WLDR header on
	// an ordinary Interest/ContentObject is a label bound for our Receiver.
	// Neither case touches FIB/PIT/CS.
	if sk.Header.PacketType == wire.TypeControl && sk.WldrHeader.Length == wldr.NotificationSize {
		f.handleWldrNotification(ingress, sk.WldrHeader.Bytes(frame))
		return
	}
	if sk.WldrHeader.Length == wldr.LabelSize {
		f.observeWldr(ingress, sk.WldrHeader.Bytes(frame))
	}

	now := time.Now()
	switch sk.Header.PacketType {
	case wire.TypeInterest:
		f.handleInterest(pkt.New(pkt.KindInterest, frame, sk, ingress, now))
	case wire.TypeContentObject:
		f.handleContentObject(pkt.New(pkt.KindContentObject, frame, sk, ingress, now))
	case wire.TypeInterestReturn:
		f.handleInterestReturn(pkt.New(pkt.KindInterestReturn, frame, sk, ingress, now))
	default:
		// Control packets other than WLDR notifications have no handler on
		// the data path; each one here is counted as an invalid-packet drop.
		f.Metrics.Incr(metrics.InvalidPacket)
	}
}

// observeWldr feeds an incoming packet's WLDR label to ingress's Receiver,
// and on gap detection sends a Notification back out the same connection
// (spec.md §4.8).
func (f *Forwarder) observeWldr(ingress uint64, labelBytes []byte) {
	c := f.Connections.Get(ingress)
	if c == nil {
		return
	}
	_, recv := c.WLDR()
	if recv == nil {
		return
	}
	label, ok := wldr.DecodeLabel(labelBytes)
	if !ok {
		return
	}
	n, gap := recv.Observe(label)
	if !gap {
		return
	}
	frame := wldr.BuildNotificationFrame(n)
	sk, err := wire.Parse(frame)
	if err != nil {
		return
	}
	c.Send(pkt.New(pkt.KindControl, frame, sk, ingress, time.Now()))
}

// retransmitKind maps a retransmitted frame's wire packet type back to the
// pkt.Kind Connection.drain needs to decide whether to re-tag it (it won't:
// the frame already carries its original WLDR header).
func retransmitKind(pt wire.PacketType) pkt.Kind {
	if pt == wire.TypeInterest {
		return pkt.KindInterest
	}
	return pkt.KindContentObject
}

// handleWldrNotification feeds a gap notification to ingress's Sender,
// replaying every frame it returns back out the same connection
// (spec.md §4.8's bounded per-hop retransmission).
func (f *Forwarder) handleWldrNotification(ingress uint64, notifyBytes []byte) {
	c := f.Connections.Get(ingress)
	if c == nil {
		return
	}
	sender, _ := c.WLDR()
	if sender == nil {
		return
	}
	n, ok := wldr.DecodeNotification(notifyBytes)
	if !ok {
		return
	}
	sender.HandleNotification(n, func(frame []byte) {
		sk, err := wire.Parse(frame)
		if err != nil {
			return
		}
		c.Send(pkt.New(retransmitKind(sk.Header.PacketType), frame, sk, ingress, time.Now()))
	})
}

// admissionBlocksHopLimit reports whether ingress's admission policy
// subjects this packet to hop-limit enforcement (spec.md §4.5 step 2: "if
// the ingress connection has hop-limit semantics (non-local)").
func (f *Forwarder) admissionBlocksHopLimit(ingress uint64, hopLimit uint8) bool {
	c := f.Connections.Get(ingress)
	if c == nil {
		return false
	}
	return c.GetAdmissionPolicy() == face.AdmitNonLocal && hopLimit == 0
}

func (f *Forwarder) isNonLocal(connID uint64) bool {
	c := f.Connections.Get(connID)
	return c != nil && c.GetAdmissionPolicy() == face.AdmitNonLocal
}

// handleInterest implements spec.md §4.5's Interest ingress steps 2-4 (step
// 1, wire-parse, already happened in HandleIngress).
func (f *Forwarder) handleInterest(m *pkt.Message) {
	defer m.Release()

	// Step 2: admission.
	if f.admissionBlocksHopLimit(m.IngressConn, m.HopLimit()) {
		f.Metrics.Incr(metrics.HopLimitExceeded)
		return
	}

	n, ok := m.Name()
	if !ok {
		f.Metrics.Incr(metrics.InvalidPacket)
		return
	}
	nameID := f.Arena.Intern(n)
	keyID := m.KeyID()
	hash := m.ContentObjectHash()

	// Step 3: Content Store.
	if f.CS.Serve() {
		if hit, ok := f.CS.Fetch(nameID, keyID, hash); ok {
			f.sendTo(m.IngressConn, hit)
			// A CS hit also satisfies any outstanding PIT entry for the
			// same matching rule, clearing it and fanning out (spec.md
			// §4.4 step 3 expansion).
			for conn := range f.Pit.Satisfy(nameID, keyID, hash) {
				if conn != m.IngressConn {
					f.sendTo(conn, hit)
				}
			}
			return
		}
	}

	// Step 4: PIT.
	lifetime := f.interestLifetime(m)
	res, entry := f.Pit.Receive(nameID, keyID, hash, m.IngressConn, lifetime)
	if res == table.Aggregated {
		return
	}

	if f.isNonLocal(m.IngressConn) {
		hl := m.HopLimit()
		if hl > 0 {
			hl--
		}
		m.SetHopLimit(hl)
		if hl == 0 {
			f.Metrics.Incr(metrics.HopLimitExceeded)
			// A NewEntry's only reverse-path record is this Interest's, so
			// dropping the whole entry and dropping just ingress's record
			// coincide. A Retransmit, though, can share entry with distinct
			// ingress connections aggregated earlier (res == Aggregated
			// already returned above, but those older inRecords are still
			// sitting on this same entry) - removing the entry outright
			// would silently orphan their PIT state over one downstream's
			// expired hop limit.
			if res == table.NewEntry {
				f.Pit.Remove(entry)
			} else {
				f.Pit.RemoveInRecord(entry, m.IngressConn)
			}
			return
		}
	}

	fibEntry, ok := f.Fib.Lookup(n)
	if !ok {
		f.Metrics.Incr(metrics.NoRoute)
		f.Pit.Remove(entry)
		return
	}

	egress := f.strategyFor(fibEntry.Strategy()).LookupNexthops(fibEntry, m.IngressConn)
	if len(egress) == 0 {
		f.Metrics.Incr(metrics.NoRoute)
		f.Pit.Remove(entry)
		return
	}
	entry.SetEgress(egress)
	for _, conn := range egress {
		f.sendTo(conn, m)
	}
}

// interestLifetime reads the InterestLifetime field (an 8-byte big-endian
// millisecond count, per CCNx v1 convention) or falls back to
// DefaultLifetime when absent/zero.
func (f *Forwarder) interestLifetime(m *pkt.Message) time.Duration {
	raw := m.Skeleton.InterestLifetime.Bytes(m.Buf)
	if len(raw) == 0 {
		return f.DefaultLifetime
	}
	var ms uint64
	for _, b := range raw {
		ms = ms<<8 | uint64(b)
	}
	if ms == 0 {
		return f.DefaultLifetime
	}
	return time.Duration(ms) * time.Millisecond
}

// handleContentObject implements spec.md §4.5's Content Object ingress
// steps, applying the §8 S4 correction: the Content Store is populated
// only as a side effect of satisfying a PIT entry, never on an
// unsolicited object, even when cache-store is on.
func (f *Forwarder) handleContentObject(m *pkt.Message) {
	defer m.Release()

	n, ok := m.Name()
	if !ok {
		f.Metrics.Incr(metrics.InvalidPacket)
		return
	}
	nameID := f.Arena.Intern(n)
	keyID := m.KeyID()
	hash := m.ContentObjectHash()

	downstream := f.Pit.Satisfy(nameID, keyID, hash)
	if len(downstream) == 0 {
		f.Metrics.Incr(metrics.Unsolicited)
		return
	}

	if f.CS.Store() && !f.expired(m) {
		// The Content Store holds its own reference independent of this
		// handler's; m.Release() above unwinds only the ingress reference.
		f.CS.Save(nameID, keyID, hash, m.Retain(), f.expiryTime(m))
	}

	for conn := range downstream {
		if conn == m.IngressConn {
			continue // split-horizon, Invariant 6
		}
		f.sendTo(conn, m)
	}
}

func (f *Forwarder) expired(m *pkt.Message) bool {
	t := f.expiryTime(m)
	return !t.IsZero() && !t.After(time.Now())
}

// expiryTime reads the ExpiryTime field (an 8-byte big-endian Unix epoch
// millisecond timestamp) or returns the zero Time if absent (never
// expires).
func (f *Forwarder) expiryTime(m *pkt.Message) time.Time {
	raw := m.Skeleton.ExpiryTime.Bytes(m.Buf)
	if len(raw) == 0 {
		return time.Time{}
	}
	var ms uint64
	for _, b := range raw {
		ms = ms<<8 | uint64(b)
	}
	return time.UnixMilli(int64(ms))
}

// handleInterestReturn treats the packet as a forwarding hint only: PIT
// entries are never removed here (the expiry timer is the only eviction
// path), per spec.md §4.5 and Open Question (c).
func (f *Forwarder) handleInterestReturn(m *pkt.Message) {
	defer m.Release()
	core.Log.Debug(f, "received InterestReturn, forwarding hint only", "ingress", m.IngressConn)
}

// sendTo looks up conn and enqueues a retained reference to m on it,
// counting a drop if the connection no longer exists (spec.md §7
// ConnectionGone).
func (f *Forwarder) sendTo(conn uint64, m *pkt.Message) {
	c := f.Connections.Get(conn)
	if c == nil {
		f.Metrics.Incr(metrics.ConnectionGone)
		return
	}
	c.Send(m.Retain())
}
