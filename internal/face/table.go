package face

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Table is the connection table: id -> Connection, (local,remote) -> id
// for de-duplication, and fd/key -> id for listener demux (spec.md §3).
type Table struct {
	mu       sync.RWMutex
	byID     map[uint64]*Connection
	byPair   map[string]uint64
	byDemux  map[string]uint64
	nextID   atomic.Uint64
}

// NewTable constructs an empty connection table. IDs start at 1 so 0 can
// mean "no connection" in callers.
func NewTable() *Table {
	t := &Table{
		byID:    make(map[uint64]*Connection),
		byPair:  make(map[string]uint64),
		byDemux: make(map[string]uint64),
	}
	t.nextID.Store(1)
	return t
}

func pairKey(local, remote Address) string {
	return fmt.Sprintf("%s|%s", local, remote)
}

// NextID assigns the next monotonically increasing connection id.
func (t *Table) NextID() uint64 {
	return t.nextID.Add(1) - 1
}

// Add inserts a new connection, indexing it by id and by its address pair.
// If a connection already exists for this (local,remote) pair, it is
// returned instead and c is not inserted (de-duplication, spec.md §3).
func (t *Table) Add(c *Connection) *Connection {
	key := pairKey(c.Local(), c.Remote())

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byPair[key]; ok {
		if existing, ok := t.byID[id]; ok {
			return existing
		}
	}
	t.byID[c.id] = c
	t.byPair[key] = c.id
	return c
}

// Get returns the connection for id, or nil.
func (t *Table) Get(id uint64) *Connection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byID[id]
}

// GetByPair returns the connection for an exact (local,remote) pair.
func (t *Table) GetByPair(local, remote Address) *Connection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byPair[pairKey(local, remote)]
	if !ok {
		return nil
	}
	return t.byID[id]
}

// BindDemux associates a listener-specific key (e.g. a raw fd, or a
// symbolic name) with a connection id, for fast dispatch on readability.
func (t *Table) BindDemux(key string, id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byDemux[key] = id
}

// GetByDemux resolves a listener demux key back to a connection.
func (t *Table) GetByDemux(key string) *Connection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byDemux[key]
	if !ok {
		return nil
	}
	return t.byID[id]
}

// Remove deletes a connection from every index and closes it. Callers (the
// control plane's remove connection) are responsible for also calling FIB.PurgeConnection
// and Strategy.PurgeConnection, per spec.md §3's Invariant on FIB nexthops.
func (t *Table) Remove(id uint64) {
	t.mu.Lock()
	c, ok := t.byID[id]
	if ok {
		delete(t.byID, id)
		key := pairKey(c.Local(), c.Remote())
		if t.byPair[key] == id {
			delete(t.byPair, key)
		}
		for k, v := range t.byDemux {
			if v == id {
				delete(t.byDemux, k)
			}
		}
	}
	t.mu.Unlock()

	if ok {
		c.Close()
	}
}

// All returns a snapshot of every live connection, for `list connections`.
func (t *Table) All() []*Connection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Connection, 0, len(t.byID))
	for _, c := range t.byID {
		out = append(out, c)
	}
	return out
}
