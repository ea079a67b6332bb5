package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingPushPopOrder(t *testing.T) {
	r := NewRing[int](0)
	for i := 0; i < 5; i++ {
		assert.True(t, r.Push(i))
	}
	for i := 0; i < 5; i++ {
		v, ok := r.Pop()
		assert.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := r.Pop()
	assert.False(t, ok)
}

func TestRingDropsNewestOverCapacity(t *testing.T) {
	r := NewRing[int](3)
	for i := 0; i < 3; i++ {
		assert.True(t, r.Push(i))
	}
	assert.False(t, r.Push(99), "fourth push must be dropped, not queued")
	assert.Equal(t, uint64(1), r.Dropped())

	for i := 0; i < 3; i++ {
		v, ok := r.Pop()
		assert.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := r.Pop()
	assert.False(t, ok, "the dropped value must never appear")
}

func TestRingPopFreesCapacityForFuturePushes(t *testing.T) {
	r := NewRing[int](2)
	assert.True(t, r.Push(1))
	assert.True(t, r.Push(2))
	assert.False(t, r.Push(3))

	v, ok := r.Pop()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	assert.True(t, r.Push(4), "popping must make room for another push")
}

func TestRingDrainInvokesFnInOrder(t *testing.T) {
	r := NewRing[int](0)
	r.Push(1)
	r.Push(2)
	r.Push(3)

	var got []int
	n := r.Drain(func(v int) { got = append(got, v) })
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestRingConcurrentProducersSingleConsumer(t *testing.T) {
	r := NewRing[int](0)
	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				r.Push(i)
			}
		}()
	}
	wg.Wait()

	count := 0
	r.Drain(func(int) { count++ })
	assert.Equal(t, producers*perProducer, count)
}
