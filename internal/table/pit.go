package table

import (
	"time"

	"github.com/icn-metis/metisd/internal/core"
	"github.com/icn-metis/metisd/internal/name"
)

// ReceiveResult classifies the outcome of submitting an Interest to the PIT
// (spec.md §4.3).
type ReceiveResult int

const (
	// NewEntry: first Interest matching this rule - caller forwards via Strategy.
	NewEntry ReceiveResult = iota
	// Aggregated: existing entry, ingress added to reverse path - caller does not forward.
	Aggregated
	// Retransmit: existing entry, ingress was already in the reverse path.
	Retransmit
)

// matchKind is how strictly a PIT key was derived from an Interest's
// restrictor set (spec.md §4.3's table).
type matchKind int

const (
	matchName matchKind = iota
	matchNameKeyID
	matchNameHash
)

// pitKey is the matching-rule key: the strictest of {Name}, {Name,KeyId},
// {Name,ContentObjectHash} that the Interest populated.
type pitKey struct {
	name  name.ID
	kind  matchKind
	extra string // keyid or hash bytes, empty for matchName
}

func keyFor(n name.ID, keyID, hash []byte) pitKey {
	switch {
	case len(hash) > 0:
		return pitKey{name: n, kind: matchNameHash, extra: string(hash)}
	case len(keyID) > 0:
		return pitKey{name: n, kind: matchNameKeyID, extra: string(keyID)}
	default:
		return pitKey{name: n, kind: matchName}
	}
}

// PitInRecord is one downstream (reverse-path) record: which connection an
// Interest arrived on, grounded on fw/table/pit-cs_test.go's PitInRecord.
type PitInRecord struct {
	Face uint64
}

// PitOutRecord is one egress record: which connection the Interest was
// forwarded on.
type PitOutRecord struct {
	Face uint64
}

// PitEntry is one outstanding Interest's bookkeeping: its matching-rule
// key, reverse path (who to satisfy), egress set (who it was sent to), and
// an absolute expiry time (spec.md §4.3, Invariant 1).
type PitEntry struct {
	key        pitKey
	nameID     name.ID
	inRecords  map[uint64]*PitInRecord
	outRecords map[uint64]*PitOutRecord
	expiry     time.Time
	timer      *core.TimerEntry
}

// InRecords returns the reverse-path set.
func (e *PitEntry) InRecords() map[uint64]*PitInRecord { return e.inRecords }

// OutRecords returns the egress set recorded for this entry.
func (e *PitEntry) OutRecords() map[uint64]*PitOutRecord { return e.outRecords }

// Expiry returns the entry's absolute expiry time.
func (e *PitEntry) Expiry() time.Time { return e.expiry }

// NameID returns the interned name this entry matches on.
func (e *PitEntry) NameID() name.ID { return e.nameID }

// SetEgress records the connection ids an Interest was forwarded to.
func (e *PitEntry) SetEgress(ids []uint64) {
	e.outRecords = make(map[uint64]*PitOutRecord, len(ids))
	for _, id := range ids {
		e.outRecords[id] = &PitOutRecord{Face: id}
	}
}

// Pit is the Pending Interest Table (spec.md §4.3). Expiry is driven by a
// single core.TimerQueue the dispatcher drains once per tick, rather than
// one timer per entry - grounded on fw's adaptation of
// std/types/priority_queue for ordered deadline tracking.
type Pit struct {
	arena   *name.Arena
	timers  *core.TimerQueue
	entries map[pitKey]*PitEntry
	maxLife time.Duration
}

// NewPit constructs an empty PIT bounding entry lifetime to maxLifetime.
func NewPit(arena *name.Arena, timers *core.TimerQueue, maxLifetime time.Duration) *Pit {
	return &Pit{arena: arena, timers: timers, entries: make(map[pitKey]*PitEntry), maxLife: maxLifetime}
}

// Receive submits an Interest for nameID with the given restrictors,
// arriving on ingress, requesting lifetime (clamped to maxLife). Returns
// the classification and the entry (spec.md §4.3 Aggregation).
func (p *Pit) Receive(nameID name.ID, keyID, hash []byte, ingress uint64, lifetime time.Duration) (ReceiveResult, *PitEntry) {
	key := keyFor(nameID, keyID, hash)

	if e, ok := p.entries[key]; ok {
		if _, already := e.inRecords[ingress]; already {
			return Retransmit, e
		}
		e.inRecords[ingress] = &PitInRecord{Face: ingress}
		return Aggregated, e
	}

	if lifetime <= 0 || lifetime > p.maxLife {
		lifetime = p.maxLife
	}
	e := &PitEntry{
		key:       key,
		nameID:    nameID,
		inRecords: map[uint64]*PitInRecord{ingress: {Face: ingress}},
		expiry:    time.Now().Add(lifetime),
	}
	e.timer = p.timers.Schedule(e.expiry, func() { p.expire(key) })
	p.entries[key] = e
	return NewEntry, e
}

// Remove deletes an entry outright (e.g. the seed entry created only to
// decrement hop-limit, spec.md §4.5 step 4). Cancels its expiry timer.
func (p *Pit) Remove(e *PitEntry) {
	if cur, ok := p.entries[e.key]; ok && cur == e {
		delete(p.entries, e.key)
	}
	if e.timer != nil {
		p.timers.Cancel(e.timer)
	}
}

// RemoveInRecord drops ingress's reverse-path record from e without
// disturbing any other downstream's record. Use this instead of Remove when
// the entry may be aggregated from other, distinct ingress connections (a
// Retransmit result from Receive) - those downstreams are still owed
// whatever Content Object eventually satisfies the entry, even though
// ingress's own retransmitted Interest is being dropped. If ingress was the
// only reverse-path record, the entry is removed outright, same as Remove.
func (p *Pit) RemoveInRecord(e *PitEntry, ingress uint64) {
	delete(e.inRecords, ingress)
	if len(e.inRecords) == 0 {
		p.Remove(e)
	}
}

func (p *Pit) expire(key pitKey) {
	delete(p.entries, key)
}

// Satisfy locates every entry satisfied by a Content Object named nameID
// with the given keyID/hash - by (name,hash), then (name,keyid), then
// (name) - unions their reverse-path sets, removes those entries, and
// returns the union (spec.md §4.3 Satisfaction).
func (p *Pit) Satisfy(nameID name.ID, keyID, hash []byte) map[uint64]struct{} {
	downstream := make(map[uint64]struct{})

	tryRemove := func(k pitKey) {
		e, ok := p.entries[k]
		if !ok {
			return
		}
		for face := range e.inRecords {
			downstream[face] = struct{}{}
		}
		delete(p.entries, k)
		if e.timer != nil {
			p.timers.Cancel(e.timer)
		}
	}

	if len(hash) > 0 {
		tryRemove(pitKey{name: nameID, kind: matchNameHash, extra: string(hash)})
	}
	if len(keyID) > 0 {
		tryRemove(pitKey{name: nameID, kind: matchNameKeyID, extra: string(keyID)})
	}
	tryRemove(pitKey{name: nameID, kind: matchName})

	return downstream
}

// Len reports the number of live entries, for invariant checks / `list`.
func (p *Pit) Len() int { return len(p.entries) }

// PurgeConnection removes id from every entry's in/out records. Entries
// left with an empty reverse path are removed entirely (Invariant 1:
// "e.reversePath != empty").
func (p *Pit) PurgeConnection(id uint64) {
	for key, e := range p.entries {
		delete(e.inRecords, id)
		delete(e.outRecords, id)
		if len(e.inRecords) == 0 {
			delete(p.entries, key)
			if e.timer != nil {
				p.timers.Cancel(e.timer)
			}
		}
	}
}
