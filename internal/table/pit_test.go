package table

import (
	"testing"
	"time"

	"github.com/icn-metis/metisd/internal/core"
	"github.com/icn-metis/metisd/internal/name"
	"github.com/stretchr/testify/assert"
)

func newTestPit() (*Pit, *name.Arena) {
	arena := name.NewArena()
	timers := core.NewTimerQueue()
	return NewPit(arena, timers, 4*time.Second), arena
}

// TestAggregation reproduces scenario S1: A and B both Interest for
// /a/b; A first (NewEntry), B second (Aggregated, no duplicate send).
func TestAggregation(t *testing.T) {
	pit, arena := newTestPit()
	n := arena.Intern(name.FromString("/a/b"))

	res, e := pit.Receive(n, nil, nil, 1 /* A */, time.Second)
	assert.Equal(t, NewEntry, res)
	assert.Equal(t, 1, len(e.InRecords()))

	res, e2 := pit.Receive(n, nil, nil, 2 /* B */, time.Second)
	assert.Equal(t, Aggregated, res)
	assert.Same(t, e, e2)
	assert.Equal(t, 2, len(e.InRecords()))
}

func TestRetransmitWhenSameIngressResubmits(t *testing.T) {
	pit, arena := newTestPit()
	n := arena.Intern(name.FromString("/a/b"))

	pit.Receive(n, nil, nil, 1, time.Second)
	res, _ := pit.Receive(n, nil, nil, 1, time.Second)
	assert.Equal(t, Retransmit, res)
}

// TestSatisfactionFansOutAndRemoves reproduces S1's second half: a Content
// Object for /a/b satisfies the aggregated entry and returns {A,B}.
func TestSatisfactionFansOutAndRemoves(t *testing.T) {
	pit, arena := newTestPit()
	n := arena.Intern(name.FromString("/a/b"))

	pit.Receive(n, nil, nil, 1, time.Second)
	pit.Receive(n, nil, nil, 2, time.Second)

	down := pit.Satisfy(n, nil, nil)
	assert.Equal(t, 2, len(down))
	_, hasA := down[1]
	_, hasB := down[2]
	assert.True(t, hasA)
	assert.True(t, hasB)
	assert.Equal(t, 0, pit.Len())
}

func TestMatchingRuleStrictness(t *testing.T) {
	pit, arena := newTestPit()
	n := arena.Intern(name.FromString("/p"))

	// An Interest restricted by KeyId gets its own key, distinct from the
	// bare-name key (spec.md §4.3's table).
	res, _ := pit.Receive(n, []byte("key1"), nil, 1, time.Second)
	assert.Equal(t, NewEntry, res)

	res2, _ := pit.Receive(n, nil, nil, 2, time.Second)
	assert.Equal(t, NewEntry, res2, "bare-name Interest must not aggregate into the KeyId-restricted entry")

	// A Content Object carrying KeyId key1 satisfies every matching entry,
	// (name,keyid) and (name), and the union of their reverse paths is
	// returned.
	down := pit.Satisfy(n, []byte("key1"), nil)
	_, ok := down[1]
	assert.True(t, ok)
	_, ok = down[2]
	assert.True(t, ok)
}

func TestPitEntryExpiresViaTimerQueue(t *testing.T) {
	arena := name.NewArena()
	timers := core.NewTimerQueue()
	pit := NewPit(arena, timers, time.Hour)
	n := arena.Intern(name.FromString("/p"))

	pit.Receive(n, nil, nil, 1, time.Millisecond)
	assert.Equal(t, 1, pit.Len())

	timers.Fire(time.Now().Add(time.Second))
	assert.Equal(t, 0, pit.Len())
}

func TestPurgeConnectionRemovesEmptyEntries(t *testing.T) {
	pit, arena := newTestPit()
	n := arena.Intern(name.FromString("/p"))

	pit.Receive(n, nil, nil, 1, time.Second)
	pit.Receive(n, nil, nil, 2, time.Second)

	pit.PurgeConnection(1)
	assert.Equal(t, 1, pit.Len())

	pit.PurgeConnection(2)
	assert.Equal(t, 0, pit.Len())
}
