// Package metrics implements the drop-and-count error policy of spec.md
// §7: recoverable errors never propagate out of the pipeline, they bump a
// counter and may emit a debug log line. The counters are shown on the
// web status page; the `list` control verb does not report them.
package metrics

import "sync/atomic"

// Kind is one of the eight error kinds spec.md §7 distinguishes at the API
// surface (not by numeric code alone).
type Kind int

const (
	InvalidPacket Kind = iota
	NoRoute
	HopLimitExceeded
	Unsolicited
	QueueFull
	ConnectionGone
	ControlError
	Fatal
	numKinds
)

func (k Kind) String() string {
	switch k {
	case InvalidPacket:
		return "InvalidPacket"
	case NoRoute:
		return "NoRoute"
	case HopLimitExceeded:
		return "HopLimitExceeded"
	case Unsolicited:
		return "Unsolicited"
	case QueueFull:
		return "QueueFull"
	case ConnectionGone:
		return "ConnectionGone"
	case ControlError:
		return "ControlError"
	case Fatal:
		return "Fatal"
	default:
		return "unknown"
	}
}

// Counters is a fixed bank of atomic per-kind drop counters, one instance
// shared process-wide (constructed by cmd/metisd and passed down - no
// ambient/global state, spec.md §9).
type Counters struct {
	counts [numKinds]atomic.Uint64
}

// NewCounters constructs a zeroed counter bank.
func NewCounters() *Counters {
	return &Counters{}
}

// Incr bumps the counter for kind by one.
func (c *Counters) Incr(kind Kind) {
	c.counts[kind].Add(1)
}

// Get returns the current count for kind.
func (c *Counters) Get(kind Kind) uint64 {
	return c.counts[kind].Load()
}

// Snapshot returns every kind's current count, for the web status page.
func (c *Counters) Snapshot() map[Kind]uint64 {
	out := make(map[Kind]uint64, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		out[k] = c.counts[k].Load()
	}
	return out
}
