package face

import (
	"sync"
	"sync/atomic"

	"github.com/icn-metis/metisd/internal/core"
	"github.com/icn-metis/metisd/internal/messenger"
	"github.com/icn-metis/metisd/internal/pkt"
	"github.com/icn-metis/metisd/internal/wire"
	"github.com/icn-metis/metisd/internal/wldr"
)

// State is a Connection's liveness state (spec.md §3).
type State int

const (
	StateDown State = iota
	StateUp
)

func (s State) String() string {
	if s == StateUp {
		return "up"
	}
	return "down"
}

// DropPolicy governs what happens when a Connection's outbox is full
// (spec.md §4.7). DropNewest is the default.
type DropPolicy int

const (
	DropNewest DropPolicy = iota
	DropOldest
)

// AdmissionPolicy reports whether a Connection is subject to hop-limit
// decrement/enforcement (non-local faces only, spec.md §4.5 step 2).
type AdmissionPolicy int

const (
	AdmitNonLocal AdmissionPolicy = iota
	AdmitLocal
)

// Transport is the minimal capability set a concrete transport (TCP, UDP,
// Unix, Ethernet, WebSocket, QUIC...) must implement. Connection wraps a
// Transport with the shared outbox/state/missive machinery so transports
// stay small (spec.md §4.7, §9: "a small set of methods {receive, send,
// close}").
type Transport interface {
	String() string
	// Write sends one complete frame. Returning an error marks the
	// transport down; the caller (Connection) handles outbox/backpressure.
	Write(frame []byte) error
	Close() error
	Local() Address
	Remote() Address
	IsLocal() bool
}

// Connection is a per-peer I/O endpoint: identity, addressing, state, and a
// bounded outbox applying the configured drop policy on backpressure
// (spec.md §3, §4.7).
type Connection struct {
	id        uint64
	transport Transport

	mu    sync.Mutex
	state State

	outbox     chan *pkt.Message
	dropPolicy DropPolicy
	capacity   int

	admission AdmissionPolicy
	messenger *messenger.Bus

	wldrMu   sync.Mutex
	wldrSend *wldr.Sender
	wldrRecv *wldr.Receiver

	closed atomic.Bool
}

// NewConnection wraps a Transport, giving it the stable id and admission
// policy assigned by the ConnectionTable, and starts its outbox drain loop.
func NewConnection(id uint64, t Transport, capacity int, policy DropPolicy, bus *messenger.Bus) *Connection {
	admission := AdmitNonLocal
	if t.IsLocal() {
		admission = AdmitLocal
	}
	c := &Connection{
		id:         id,
		transport:  t,
		state:      StateDown,
		outbox:     make(chan *pkt.Message, capacity),
		dropPolicy: policy,
		capacity:   capacity,
		admission:  admission,
		messenger:  bus,
	}
	bus.Publish(messenger.Missive{Conn: id, Type: messenger.Create})
	go c.drain()
	return c
}

func (c *Connection) String() string {
	return c.transport.String()
}

// ID returns the connection's stable 32-bit (widened to 64-bit in Go)
// identifier.
func (c *Connection) ID() uint64 { return c.id }

// IsLocal reports whether this connection originates from a local process.
func (c *Connection) IsLocal() bool { return c.transport.IsLocal() }

// GetAdmissionPolicy reports whether hop-limit semantics apply.
func (c *Connection) GetAdmissionPolicy() AdmissionPolicy { return c.admission }

// State returns the current liveness state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState transitions state and publishes a Missive on change.
func (c *Connection) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if !changed {
		return
	}
	typ := messenger.Down
	if s == StateUp {
		typ = messenger.Up
	}
	c.messenger.Publish(messenger.Missive{Conn: c.id, Type: typ})
}

// MarkUp transitions the connection to Up (first data or explicit notify).
func (c *Connection) MarkUp() { c.setState(StateUp) }

// MarkDown transitions the connection to Down (I/O error or keepalive
// failure); does not remove it from any table.
func (c *Connection) MarkDown() { c.setState(StateDown) }

// Send enqueues msg for asynchronous delivery (non-blocking). On a full
// outbox, applies the configured DropPolicy (spec.md §4.7, §7 QueueFull).
func (c *Connection) Send(msg *pkt.Message) {
	if c.closed.Load() {
		msg.Release()
		return
	}
	select {
	case c.outbox <- msg:
		return
	default:
	}

	switch c.dropPolicy {
	case DropNewest:
		msg.Release()
		core.Log.Debug(c, "outbox full, dropping newest (QueueFull)")
	case DropOldest:
		select {
		case old := <-c.outbox:
			old.Release()
		default:
		}
		select {
		case c.outbox <- msg:
		default:
			msg.Release()
		}
	}
}

func (c *Connection) drain() {
	for m := range c.outbox {
		buf := m.Buf
		if s, _ := c.WLDR(); s != nil {
			buf = tagWldr(s, m)
		}
		err := c.transport.Write(buf)
		m.Release()
		if err != nil {
			core.Log.Warn(c, "send failed, face DOWN", "err", err)
			c.MarkDown()
		} else {
			c.MarkUp()
		}
	}
}

// Close tears the connection down: stops accepting sends, closes the
// transport, and publishes Closed then Destroyed missives (spec.md §3
// Lifecycle).
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.outbox)
	err := c.transport.Close()
	c.messenger.Publish(messenger.Missive{Conn: c.id, Type: messenger.Closed})
	c.messenger.Publish(messenger.Missive{Conn: c.id, Type: messenger.Destroyed})
	return err
}

// SetWLDR attaches (sender, receiver non-nil) or detaches (both nil) the
// per-hop loss-detection sidecar on this connection ("set wldr {on|off}",
// spec.md §4.8/§6). Once attached, drain tags every outgoing Interest and
// ContentObject; the pipeline's ingress path observes incoming labels and
// notifications against the same pair (internal/pipeline.Forwarder).
func (c *Connection) SetWLDR(s *wldr.Sender, r *wldr.Receiver) {
	c.wldrMu.Lock()
	c.wldrSend, c.wldrRecv = s, r
	c.wldrMu.Unlock()
}

// WLDR returns the connection's current sidecar pair, or (nil, nil) if
// WLDR is not enabled.
func (c *Connection) WLDR() (*wldr.Sender, *wldr.Receiver) {
	c.wldrMu.Lock()
	defer c.wldrMu.Unlock()
	return c.wldrSend, c.wldrRecv
}

// tagWldr embeds the next WLDR label into m's wire frame and retains it in
// s for possible retransmission, rebuilding the frame around the label via
// the wire codec's Extract/Build round trip. Control packets and frames
// that already carry a WLDR header (WLDR retransmissions replayed through
// Send) pass through untouched.
func tagWldr(s *wldr.Sender, m *pkt.Message) []byte {
	if m.Kind != pkt.KindInterest && m.Kind != pkt.KindContentObject {
		return m.Buf
	}
	if m.Skeleton.WldrHeader.Present() {
		return m.Buf
	}
	label := s.PeekNext()
	dict := m.Skeleton.Extract(m.Buf)
	dict.WldrHeader = wldr.EncodeLabel(label)
	tagged := wire.Build(dict)
	s.Tag(tagged)
	return tagged
}

// Local/Remote expose the transport's addressing pair.
func (c *Connection) Local() Address  { return c.transport.Local() }
func (c *Connection) Remote() Address { return c.transport.Remote() }

// OutboxLen reports the current queue depth, for `list connections`.
func (c *Connection) OutboxLen() int { return len(c.outbox) }
