// Package table implements the forwarder's three loop-owned data
// structures: the FIB, the PIT, and the Content Store (spec.md §4.2-4.4).
// All mutation happens on the dispatcher loop thread; lookups may also be
// called from that thread, or under RLock from helper goroutines doing
// diagnostics (spec.md §4.2: "atomic with respect to concurrent lookups").
package table

import (
	"sync"

	"github.com/icn-metis/metisd/internal/name"
)

// FibNextHopEntry is one egress candidate for a FIB entry: a connection id
// and a routing cost, used by the LoadBalancer strategy as a tie-break
// weight (spec.md §4.6, grounded on fw/table/fib-strategy_test.go's
// `FibNextHopEntry{Nexthop, Cost}`).
type FibNextHopEntry struct {
	Nexthop uint64
	Cost    uint64
}

// StrategyName identifies which Strategy governs a FIB entry's nexthop
// selection (spec.md §4.6).
type StrategyName string

const (
	StrategyAll          StrategyName = "all"
	StrategyRandom       StrategyName = "random"
	StrategyLoadBalancer StrategyName = "loadbalancer"
)

// FibEntry is one prefix's nexthop set and assigned strategy, grounded on
// baseFibStrategyEntry in fw/table/fib-strategy_test.go.
type FibEntry struct {
	prefix   name.ID
	nexthops []*FibNextHopEntry
	strategy StrategyName
}

// Prefix returns the interned name id this entry matches on.
func (e *FibEntry) Prefix() name.ID { return e.prefix }

// NextHops returns the entry's current nexthop set.
func (e *FibEntry) NextHops() []*FibNextHopEntry { return e.nexthops }

// Strategy returns the entry's assigned forwarding strategy.
func (e *FibEntry) Strategy() StrategyName { return e.strategy }

// Fib is the Forwarding Information Base: Name prefix -> {nexthops,
// strategy}, looked up by longest-prefix match (spec.md §4.2).
type Fib struct {
	mu      sync.RWMutex
	arena   *name.Arena
	entries map[name.ID]*FibEntry
}

// NewFib constructs an empty FIB backed by arena for name interning.
func NewFib(arena *name.Arena) *Fib {
	return &Fib{arena: arena, entries: make(map[name.ID]*FibEntry)}
}

// Lookup returns the entry whose prefix is the longest prefix of n, probing
// successively shorter prefixes starting at the full name (spec.md §4.2:
// "hash the Name once, then probe by successively shorter prefixes").
func (f *Fib) Lookup(n name.Name) (*FibEntry, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for k := n.Len(); k >= 0; k-- {
		id := f.arena.Intern(n.Prefix(k))
		if e, ok := f.entries[id]; ok {
			return e, true
		}
	}
	return nil, false
}

// Add creates or extends the entry for prefix, adding nexthop (replacing
// its cost if the connection id is already present). strategy is only
// applied when the entry is newly created; use SetStrategy to change it.
func (f *Fib) Add(prefix name.Name, nexthop uint64, cost uint64, strategy StrategyName) {
	id := f.arena.Intern(prefix)

	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[id]
	if !ok {
		e = &FibEntry{prefix: id, strategy: strategy}
		f.entries[id] = e
	}
	for _, nh := range e.nexthops {
		if nh.Nexthop == nexthop {
			nh.Cost = cost
			return
		}
	}
	e.nexthops = append(e.nexthops, &FibNextHopEntry{Nexthop: nexthop, Cost: cost})
}

// Remove shrinks the entry for prefix by dropping nexthop; the entry is
// deleted entirely once its nexthop set is empty (spec.md §4.2).
func (f *Fib) Remove(prefix name.Name, nexthop uint64) {
	id := f.arena.Intern(prefix)

	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[id]
	if !ok {
		return
	}
	e.nexthops = removeNexthop(e.nexthops, nexthop)
	if len(e.nexthops) == 0 {
		delete(f.entries, id)
	}
}

// SetStrategy assigns the forwarding strategy for an existing prefix entry.
// No-op if the prefix has no entry.
func (f *Fib) SetStrategy(prefix name.Name, strategy StrategyName) {
	id := f.arena.Intern(prefix)

	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.entries[id]; ok {
		e.strategy = strategy
	}
}

// PurgeConnection removes id from every FIB entry's nexthop set, deleting
// any entry left empty (spec.md §4.2, exercised by scenario S6). Returns
// the set of prefixes whose strategy state should also be purged by the
// caller (internal/strategy, spec.md §4.6 expansion).
func (f *Fib) PurgeConnection(id uint64) []name.ID {
	f.mu.Lock()
	defer f.mu.Unlock()

	var touched []name.ID
	for prefix, e := range f.entries {
		before := len(e.nexthops)
		e.nexthops = removeNexthop(e.nexthops, id)
		if len(e.nexthops) != before {
			touched = append(touched, prefix)
		}
		if len(e.nexthops) == 0 {
			delete(f.entries, prefix)
		}
	}
	return touched
}

// All returns a snapshot of every FIB entry, for `list routes`.
func (f *Fib) All() []*FibEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*FibEntry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e)
	}
	return out
}

func removeNexthop(nexthops []*FibNextHopEntry, id uint64) []*FibNextHopEntry {
	out := nexthops[:0]
	for _, nh := range nexthops {
		if nh.Nexthop != id {
			out = append(out, nh)
		}
	}
	return out
}
