package table

import (
	"testing"
	"time"

	"github.com/icn-metis/metisd/internal/name"
	"github.com/icn-metis/metisd/internal/pkt"
	"github.com/icn-metis/metisd/internal/wire"
	"github.com/stretchr/testify/assert"
)

func fakeMessage() *pkt.Message {
	return pkt.New(pkt.KindContentObject, []byte("payload"), wire.Skeleton{}, 0, time.Now())
}

// TestLRUEviction reproduces scenario S5: with C=2, save O1,O2,O3 in
// order; CS ends up with {O2,O3} and O1 no longer hits.
func TestLRUEviction(t *testing.T) {
	arena := name.NewArena()
	cs := NewContentStore(2)

	o1 := arena.Intern(name.FromString("/o1"))
	o2 := arena.Intern(name.FromString("/o2"))
	o3 := arena.Intern(name.FromString("/o3"))

	cs.Save(o1, nil, nil, fakeMessage(), time.Time{})
	cs.Save(o2, nil, nil, fakeMessage(), time.Time{})
	cs.Save(o3, nil, nil, fakeMessage(), time.Time{})

	assert.Equal(t, 2, cs.Len())
	_, ok := cs.Fetch(o1, nil, nil)
	assert.False(t, ok)
	_, ok = cs.Fetch(o2, nil, nil)
	assert.True(t, ok)
	_, ok = cs.Fetch(o3, nil, nil)
	assert.True(t, ok)
}

func TestFetchMovesToFront(t *testing.T) {
	arena := name.NewArena()
	cs := NewContentStore(2)

	o1 := arena.Intern(name.FromString("/o1"))
	o2 := arena.Intern(name.FromString("/o2"))
	o3 := arena.Intern(name.FromString("/o3"))

	cs.Save(o1, nil, nil, fakeMessage(), time.Time{})
	cs.Save(o2, nil, nil, fakeMessage(), time.Time{})

	// Touch o1 so it becomes more recently used than o2.
	cs.Fetch(o1, nil, nil)

	cs.Save(o3, nil, nil, fakeMessage(), time.Time{})

	_, ok := cs.Fetch(o2, nil, nil)
	assert.False(t, ok, "o2 should have been evicted as least recently used")
	_, ok = cs.Fetch(o1, nil, nil)
	assert.True(t, ok)
}

func TestExpiredObjectNotSaved(t *testing.T) {
	arena := name.NewArena()
	cs := NewContentStore(2)
	n := arena.Intern(name.FromString("/p"))

	cs.Save(n, nil, nil, fakeMessage(), time.Now().Add(-time.Second))
	assert.Equal(t, 0, cs.Len())
}

func TestExpiredObjectNotServed(t *testing.T) {
	arena := name.NewArena()
	cs := NewContentStore(2)
	n := arena.Intern(name.FromString("/p"))

	cs.Save(n, nil, nil, fakeMessage(), time.Now().Add(time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, ok := cs.Fetch(n, nil, nil)
	assert.False(t, ok)
}

func TestClearEmptiesStore(t *testing.T) {
	arena := name.NewArena()
	cs := NewContentStore(4)
	n := arena.Intern(name.FromString("/p"))

	cs.Save(n, nil, nil, fakeMessage(), time.Time{})
	assert.Equal(t, 1, cs.Len())

	cs.Clear()
	assert.Equal(t, 0, cs.Len())
	_, ok := cs.Fetch(n, nil, nil)
	assert.False(t, ok)
}

func TestFetchProbesStrictestFirst(t *testing.T) {
	arena := name.NewArena()
	cs := NewContentStore(4)
	n := arena.Intern(name.FromString("/p"))

	plain := fakeMessage()
	withHash := fakeMessage()

	cs.Save(n, nil, nil, plain, time.Time{})
	cs.Save(n, nil, []byte("hash1"), withHash, time.Time{})

	m, ok := cs.Fetch(n, nil, []byte("hash1"))
	assert.True(t, ok)
	assert.Same(t, withHash, m)
}
