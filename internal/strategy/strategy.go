// Package strategy implements the forwarder's per-FIB-entry nexthop
// selection policies (spec.md §4.6), grounded on
// metis_Strategy.h/strategy_All.h's "forward to all nexthops" shape and
// generalized into the three strategies spec.md requires.
package strategy

import (
	"math/rand"

	"github.com/icn-metis/metisd/internal/table"
)

// Strategy chooses the egress connection set for an Interest matching a
// FIB entry, and is notified when a connection is destroyed so any
// per-nexthop state it holds stays consistent (spec.md §4.6, §9: "a small
// set of methods {lookupNexthops, onContentObject, onTimeout,
// purgeConnection}" - onContentObject/onTimeout are no-ops for the three
// strategies spec.md requires, so they're omitted from the interface
// rather than stubbed).
type Strategy interface {
	// LookupNexthops returns the set of connection ids to forward on,
	// excluding ingress, given the entry's current nexthop set.
	LookupNexthops(entry *table.FibEntry, ingress uint64) []uint64
	// PurgeConnection drops any per-connection state held for id.
	PurgeConnection(id uint64)
}

func excludeIngress(nexthops []*table.FibNextHopEntry, ingress uint64) []*table.FibNextHopEntry {
	out := make([]*table.FibNextHopEntry, 0, len(nexthops))
	for _, nh := range nexthops {
		if nh.Nexthop != ingress {
			out = append(out, nh)
		}
	}
	return out
}

// All forwards to every nexthop except the ingress connection (the
// legacy/default strategy - metisStrategyAll_Create in the original
// source "THIS STRATEGY IS DEPRECATED" but still the simplest baseline).
type All struct{}

func (All) LookupNexthops(entry *table.FibEntry, ingress uint64) []uint64 {
	candidates := excludeIngress(entry.NextHops(), ingress)
	out := make([]uint64, len(candidates))
	for i, nh := range candidates {
		out[i] = nh.Nexthop
	}
	return out
}

func (All) PurgeConnection(uint64) {}

// Random uniformly picks one nexthop not equal to ingress.
type Random struct{}

func (Random) LookupNexthops(entry *table.FibEntry, ingress uint64) []uint64 {
	candidates := excludeIngress(entry.NextHops(), ingress)
	if len(candidates) == 0 {
		return nil
	}
	return []uint64{candidates[rand.Intn(len(candidates))].Nexthop}
}

func (Random) PurgeConnection(uint64) {}

// LoadBalancer tracks pending Interest counts per nexthop (keyed by FIB
// entry prefix + connection id, since nexthop state is per-FIB-entry per
// spec.md §4.6) and forwards to whichever has the fewest outstanding,
// breaking ties by round-robin and by the nexthop's routing Cost.
type LoadBalancer struct {
	pending map[loadBalancerKey]int
	rr      map[loadBalancerEntryKey]int // last round-robin index chosen per FIB entry
}

type loadBalancerKey struct {
	prefix  uint64
	nexthop uint64
}

type loadBalancerEntryKey struct {
	prefix uint64
}

// NewLoadBalancer constructs an empty LoadBalancer strategy.
func NewLoadBalancer() *LoadBalancer {
	return &LoadBalancer{
		pending: make(map[loadBalancerKey]int),
		rr:      make(map[loadBalancerEntryKey]int),
	}
}

func (lb *LoadBalancer) LookupNexthops(entry *table.FibEntry, ingress uint64) []uint64 {
	candidates := excludeIngress(entry.NextHops(), ingress)
	if len(candidates) == 0 {
		return nil
	}

	prefix := uint64(entry.Prefix())
	best := candidates[0]
	bestPending := lb.pendingCount(prefix, best.Nexthop)
	bestIdx := 0

	for i := 1; i < len(candidates); i++ {
		c := candidates[i]
		p := lb.pendingCount(prefix, c.Nexthop)
		switch {
		case p < bestPending:
			best, bestPending, bestIdx = c, p, i
		case p == bestPending && c.Cost < best.Cost:
			best, bestPending, bestIdx = c, p, i
		}
	}

	// Tie-break by round-robin when multiple candidates share the lowest
	// pending count and cost: advance past the entry chosen last time.
	ekey := loadBalancerEntryKey{prefix: prefix}
	if last, ok := lb.rr[ekey]; ok {
		for i := 1; i <= len(candidates); i++ {
			idx := (last + i) % len(candidates)
			c := candidates[idx]
			p := lb.pendingCount(prefix, c.Nexthop)
			if p == bestPending && c.Cost == best.Cost {
				best, bestIdx = c, idx
				break
			}
		}
	}
	lb.rr[ekey] = bestIdx

	key := loadBalancerKey{prefix: prefix, nexthop: best.Nexthop}
	lb.pending[key]++
	return []uint64{best.Nexthop}
}

func (lb *LoadBalancer) pendingCount(prefix, nexthop uint64) int {
	return lb.pending[loadBalancerKey{prefix: prefix, nexthop: nexthop}]
}

// Complete decrements the pending count for (prefix,nexthop). The
// forwarding pipeline does not call it when an Interest is satisfied or
// expires, so in this module the counts only grow: each one is the number
// of Interests LookupNexthops has sent to that nexthop.
func (lb *LoadBalancer) Complete(prefix uint64, nexthop uint64) {
	key := loadBalancerKey{prefix: prefix, nexthop: nexthop}
	if lb.pending[key] > 0 {
		lb.pending[key]--
	}
}

func (lb *LoadBalancer) PurgeConnection(id uint64) {
	for key := range lb.pending {
		if key.nexthop == id {
			delete(lb.pending, key)
		}
	}
}
