// Package pkt implements Message, the reference-counted packet that flows
// through the forwarding pipeline (spec.md §3). The refcount is the only
// field ever mutated off the dispatcher loop thread (spec.md §5); helper
// goroutines may only Release a reference, never read/write table state.
package pkt

import (
	"sync/atomic"
	"time"

	"github.com/icn-metis/metisd/internal/name"
	"github.com/icn-metis/metisd/internal/wire"
)

// Kind distinguishes the four message variants named in spec.md §3.
type Kind int

const (
	KindInterest Kind = iota
	KindContentObject
	KindControl
	KindInterestReturn
)

// Message is a reference-counted packet: its raw buffer (owning), its
// parsed skeleton (including any WLDR header), and arrival metadata.
type Message struct {
	Kind     Kind
	Buf      []byte
	Skeleton wire.Skeleton

	IngressConn uint64
	ArrivalTick time.Time

	// Name is lazily resolved from the skeleton the first time it's needed
	// and then cached; the pipeline interns it via name.Arena for FIB/PIT
	// lookups.
	nameOnce resolvedName

	refs atomic.Int32
}

type resolvedName struct {
	set bool
	n   name.Name
}

// New wraps buf (already validated by wire.Parse) into a fresh Message
// with one reference held by the caller.
func New(kind Kind, buf []byte, sk wire.Skeleton, ingress uint64, arrival time.Time) *Message {
	m := &Message{
		Kind:        kind,
		Buf:         buf,
		Skeleton:    sk,
		IngressConn: ingress,
		ArrivalTick: arrival,
	}
	m.refs.Store(1)
	return m
}

// Retain adds a reference, e.g. when queuing the same Message to multiple
// egress connections (fan-out on PIT satisfaction, spec.md §4.3).
func (m *Message) Retain() *Message {
	m.refs.Add(1)
	return m
}

// Release drops a reference. May be called from any goroutine (spec.md
// §5); the Message and its buffer become eligible for GC once the count
// reaches zero and no table holds it any longer.
func (m *Message) Release() {
	m.refs.Add(-1)
}

// RefCount reports the current reference count, for tests and diagnostics.
func (m *Message) RefCount() int32 {
	return m.refs.Load()
}

// NameBytes returns the raw TLV bytes of the Name field, or nil if absent.
func (m *Message) NameBytes() []byte {
	return m.Skeleton.Name.Bytes(m.Buf)
}

// Name parses (once, then caches) the Message's Name field into a
// structured name.Name for FIB/PIT lookups.
func (m *Message) Name() (name.Name, bool) {
	if m.nameOnce.set {
		return m.nameOnce.n, true
	}
	raw := m.NameBytes()
	if raw == nil {
		return name.Name{}, false
	}
	n := decodeName(raw)
	m.nameOnce = resolvedName{set: true, n: n}
	return n, true
}

// decodeName turns the raw Name TLV value (a sequence of length-prefixed
// segments, '/'-free) into a structured Name. The wire codec stores the
// Name field as a flat byte string of concatenated [len(1 byte)][bytes]
// segments - simple and fast to scan, matching the skeleton's zero-alloc
// philosophy (spec.md §4.1).
func decodeName(raw []byte) name.Name {
	var segs []name.Segment
	for i := 0; i < len(raw); {
		l := int(raw[i])
		i++
		if i+l > len(raw) {
			break
		}
		segs = append(segs, name.Segment{Type: name.TypeGeneric, Value: raw[i : i+l]})
		i += l
	}
	return name.New(segs...)
}

// EncodeName is the inverse of decodeName, used when building the Name TLV
// value for outgoing packets (e.g. constructed InterestReturn/Nack frames).
func EncodeName(n name.Name) []byte {
	var out []byte
	for i := 0; i < n.Len(); i++ {
		s := n.At(i)
		out = append(out, byte(len(s.Value)))
		out = append(out, s.Value...)
	}
	return out
}

// KeyID returns the KeyIdRestriction bytes, or nil if absent.
func (m *Message) KeyID() []byte { return m.Skeleton.KeyIdRestriction.Bytes(m.Buf) }

// ContentObjectHash returns the HashRestriction bytes, or nil if absent.
func (m *Message) ContentObjectHash() []byte { return m.Skeleton.HashRestriction.Bytes(m.Buf) }

// HopLimit returns the current hop limit (Interest only; 0 for other kinds).
func (m *Message) HopLimit() uint8 { return m.Skeleton.Header.HopLimit }

// SetHopLimit overwrites the hop limit byte in place (decrement on forward).
func (m *Message) SetHopLimit(v uint8) {
	if len(m.Buf) > 4 {
		m.Buf[4] = v
		m.Skeleton.Header.HopLimit = v
	}
}
