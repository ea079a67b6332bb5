package table

import (
	"container/list"
	"time"

	"github.com/icn-metis/metisd/internal/name"
	"github.com/icn-metis/metisd/internal/pkt"
)

// csKey mirrors pitKey's matching-rule shape so CS lookups probe the same
// strictest->loosest order as PIT satisfaction (spec.md §4.4).
type csKey = pitKey

// csEntry is one stored object's LRU node payload, grounded on
// fw/table/pit-cs_test.go's baseCsEntry{index, staleTime, wire}.
type csEntry struct {
	key       csKey
	msg       *pkt.Message
	staleTime time.Time // zero means "no expiry"
	elem      *list.Element
}

// StaleTime returns the wall-clock time after which this entry is no
// longer servable.
func (e *csEntry) StaleTime() time.Time { return e.staleTime }

// Message returns the stored Content Object.
func (e *csEntry) Message() *pkt.Message { return e.msg }

// ContentStore is a fixed-capacity LRU cache of Content Objects with one
// index map. Each object is stored under a single matching-rule key, the
// strictest of (name,hash), (name,keyid), (name) that its restrictors
// populate; it is not also indexed under the looser keys (spec.md §4.4).
type ContentStore struct {
	capacity int
	ll       *list.List // front = most recently used
	index    map[csKey]*list.Element

	serve bool
	store bool
}

// NewContentStore constructs an empty store with the given object capacity.
// cache-serve and cache-store both default to true (spec.md §4.4).
func NewContentStore(capacity int) *ContentStore {
	return &ContentStore{
		capacity: capacity,
		ll:       list.New(),
		index:    make(map[csKey]*list.Element),
		serve:    true,
		store:    true,
	}
}

// SetServe toggles whether Fetch is consulted on Interest ingress.
func (cs *ContentStore) SetServe(on bool) { cs.serve = on }

// SetStore toggles whether Save is called on Content Object ingress.
func (cs *ContentStore) SetStore(on bool) { cs.store = on }

// Serve reports the current cache-serve setting.
func (cs *ContentStore) Serve() bool { return cs.serve }

// Store reports the current cache-store setting.
func (cs *ContentStore) Store() bool { return cs.store }

// Save inserts or replaces an object for the given identity, keyed only
// under the strictest key its restrictors populate; an object saved with a
// hash or keyid is therefore not found by a bare-name Fetch. An expired
// object (staleTime in the past) is never saved. On overflow, the
// least-recently-used entry is evicted (spec.md §4.4 Save).
func (cs *ContentStore) Save(nameID name.ID, keyID, hash []byte, msg *pkt.Message, staleTime time.Time) {
	if !staleTime.IsZero() && !staleTime.After(time.Now()) {
		return
	}

	key := keyFor(nameID, keyID, hash)
	if elem, ok := cs.index[key]; ok {
		e := elem.Value.(*csEntry)
		e.msg.Release()
		e.msg = msg
		e.staleTime = staleTime
		cs.ll.MoveToFront(elem)
		return
	}

	e := &csEntry{key: key, msg: msg, staleTime: staleTime}
	e.elem = cs.ll.PushFront(e)
	cs.index[key] = e.elem

	if cs.ll.Len() > cs.capacity {
		cs.evictOldest()
	}
}

func (cs *ContentStore) evictOldest() {
	tail := cs.ll.Back()
	if tail == nil {
		return
	}
	e := tail.Value.(*csEntry)
	cs.ll.Remove(tail)
	delete(cs.index, e.key)
	e.msg.Release()
}

// Fetch probes strictest->loosest ((name,hash), (name,keyid), (name)) for
// an unexpired match, moving the hit to the front of the LRU list (spec.md
// §4.4 Fetch). Returns (nil, false) on miss.
func (cs *ContentStore) Fetch(nameID name.ID, keyID, hash []byte) (*pkt.Message, bool) {
	now := time.Now()

	tryGet := func(k csKey) (*pkt.Message, bool) {
		elem, ok := cs.index[k]
		if !ok {
			return nil, false
		}
		e := elem.Value.(*csEntry)
		if !e.staleTime.IsZero() && e.staleTime.Before(now) {
			return nil, false
		}
		cs.ll.MoveToFront(elem)
		return e.msg, true
	}

	if len(hash) > 0 {
		if m, ok := tryGet(csKey{name: nameID, kind: matchNameHash, extra: string(hash)}); ok {
			return m, true
		}
	}
	if len(keyID) > 0 {
		if m, ok := tryGet(csKey{name: nameID, kind: matchNameKeyID, extra: string(keyID)}); ok {
			return m, true
		}
	}
	return tryGet(csKey{name: nameID, kind: matchName})
}

// Len reports the number of stored objects (Invariant 3: "|CS| <= C").
func (cs *ContentStore) Len() int { return cs.ll.Len() }

// Clear evicts every entry atomically (spec.md §4.4 Clear; Invariant 3:
// "after clear, |CS| = 0").
func (cs *ContentStore) Clear() {
	for elem := cs.ll.Front(); elem != nil; elem = elem.Next() {
		elem.Value.(*csEntry).msg.Release()
	}
	cs.ll.Init()
	cs.index = make(map[csKey]*list.Element)
}
