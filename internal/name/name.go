// Package name implements CCNx names: ordered sequences of typed,
// opaque byte-string segments, interned so that equal names compare
// equal by id as well as by value (spec.md §3, §9).
package name

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Segment is one typed, opaque component of a Name.
type Segment struct {
	Type  uint16
	Value []byte
}

// Equal reports whether two segments have the same type and bytes.
func (s Segment) Equal(o Segment) bool {
	return s.Type == o.Type && string(s.Value) == string(o.Value)
}

// Name is an ordered sequence of segments, plus a precomputed hash over the
// full sequence and over every prefix length, so FIB longest-prefix-match
// never has to rehash (spec.md §3: "a per-prefix-length hash").
type Name struct {
	segments   []Segment
	hash       uint64
	prefixHash []uint64 // prefixHash[k] = hash of segments[:k], k=0..len(segments)
}

// New builds a Name from a sequence of segments, computing its hashes.
func New(segments ...Segment) Name {
	n := Name{segments: append([]Segment(nil), segments...)}
	n.prefixHash = make([]uint64, len(n.segments)+1)
	h := xxhash.New()
	n.prefixHash[0] = h.Sum64()
	for i, s := range n.segments {
		_, _ = h.Write([]byte{byte(s.Type >> 8), byte(s.Type)})
		_, _ = h.Write(s.Value)
		n.prefixHash[i+1] = h.Sum64()
	}
	n.hash = n.prefixHash[len(n.segments)]
	return n
}

// Len returns the number of segments.
func (n Name) Len() int { return len(n.segments) }

// At returns the segment at index i.
func (n Name) At(i int) Segment { return n.segments[i] }

// Hash returns the precomputed hash of the full name.
func (n Name) Hash() uint64 { return n.hash }

// PrefixHash returns the precomputed hash of the first k segments.
func (n Name) PrefixHash(k int) uint64 { return n.prefixHash[k] }

// Prefix returns the first k segments as a new Name (cheap: reuses the
// precomputed prefix hash instead of rehashing).
func (n Name) Prefix(k int) Name {
	if k > len(n.segments) {
		k = len(n.segments)
	}
	return Name{
		segments:   n.segments[:k],
		hash:       n.prefixHash[k],
		prefixHash: n.prefixHash[:k+1],
	}
}

// Equal reports whether two names have identical segment sequences.
func (n Name) Equal(o Name) bool {
	if n.hash != o.hash || len(n.segments) != len(o.segments) {
		return false
	}
	for i := range n.segments {
		if !n.segments[i].Equal(o.segments[i]) {
			return false
		}
	}
	return true
}

// IsPrefixOf reports whether n's segments are a prefix of o's segments.
func (n Name) IsPrefixOf(o Name) bool {
	if len(n.segments) > len(o.segments) {
		return false
	}
	if n.hash != o.prefixHash[len(n.segments)] {
		return false
	}
	for i := range n.segments {
		if !n.segments[i].Equal(o.segments[i]) {
			return false
		}
	}
	return true
}

// String renders the name in a simple "/seg/seg" URI-like form for logging.
func (n Name) String() string {
	var sb strings.Builder
	for _, s := range n.segments {
		sb.WriteByte('/')
		sb.Write(s.Value)
	}
	if sb.Len() == 0 {
		return "/"
	}
	return sb.String()
}

// FromString parses a "/a/b/c" literal into a Name of generic-type segments.
// Intended for tests, config, and control-message parsing - the wire codec
// builds Names directly from parsed TLV segments, not from strings.
func FromString(s string) Name {
	s = strings.TrimPrefix(s, "/")
	if s == "" {
		return New()
	}
	parts := strings.Split(s, "/")
	segs := make([]Segment, len(parts))
	for i, p := range parts {
		segs[i] = Segment{Type: TypeGeneric, Value: []byte(p)}
	}
	return New(segs...)
}

// Segment types recognized by the CCNx v1 name TLV (subset relevant to the
// forwarder: generic components are the common case; the others appear as
// restrictors carried alongside the Name, not inside it, per spec.md §3).
const (
	TypeGeneric uint16 = 0x0001
)
