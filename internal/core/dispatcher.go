package core

import (
	"sync/atomic"
	"time"
)

// ShouldQuit is polled by listener accept loops to know when to stop
// (mirrors the teacher's `core.ShouldQuit` checked in every accept loop).
var shouldQuit atomic.Bool

func ShouldQuit() bool  { return shouldQuit.Load() }
func RequestQuit()      { shouldQuit.Store(true) }

// IngressEvent is what a listener/transport goroutine hands to the
// dispatcher loop thread: raw bytes plus the connection they arrived on.
// Constructing and publishing one of these is the *only* way a helper
// goroutine is allowed to affect pipeline state (spec §5).
type IngressEvent struct {
	ConnID uint64
	Frame  []byte
}

// Dispatcher is the single-threaded event loop owning the forwarding
// pipeline, PIT, FIB, CS and connection table (spec §2, §5). It has two
// suspension points: waiting for the next tick, and draining the ingress
// ring - nothing inside a tick's processing yields control.
type Dispatcher struct {
	Ingress *Ring[IngressEvent]
	Timers  *TimerQueue

	tickInterval time.Duration
	onIngress    func(IngressEvent)
	stop         chan struct{}
	done         chan struct{}
}

// NewDispatcher builds a Dispatcher with the given tick interval, ingress
// ring capacity, and ingress-event handler. A short tick interval bounds
// PIT-expiry latency; since the ingress ring is drained only once per tick,
// it also adds up to one interval of per-packet latency.
func NewDispatcher(tickInterval time.Duration, ingressCapacity int, onIngress func(IngressEvent)) *Dispatcher {
	return &Dispatcher{
		Ingress:      NewRing[IngressEvent](ingressCapacity),
		Timers:       NewTimerQueue(),
		tickInterval: tickInterval,
		onIngress:    onIngress,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

func (d *Dispatcher) String() string { return "dispatcher" }

// Run drains the ingress ring and fires expired timers on every tick until
// Stop is called. Intended to be run on its own goroutine, which is then
// the sole mutator of loop-private tables.
func (d *Dispatcher) Run() {
	ticker := time.NewTicker(d.tickInterval)
	defer ticker.Stop()
	defer close(d.done)

	for {
		select {
		case <-d.stop:
			return
		case now := <-ticker.C:
			d.tick(now)
		}
	}
}

func (d *Dispatcher) tick(now time.Time) {
	d.Ingress.Drain(d.onIngress)
	d.Timers.Fire(now)
}

// Stop signals Run to exit and blocks until it has.
func (d *Dispatcher) Stop() {
	close(d.stop)
	<-d.done
}
