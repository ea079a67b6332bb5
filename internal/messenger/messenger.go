// Package messenger publishes Connection state-transition notifications
// ("Missives") to subscribers (spec.md §2 "Messenger & Connection Manager",
// §3 Lifecycle). The transition set is grounded on
// original_source/metis/.../messenger/metis_MissiveType.h.
package messenger

import "sync"

// Type enumerates the connection-state transitions a Missive reports.
type Type int

const (
	Create Type = iota
	Up
	Down
	Closed
	Destroyed
)

func (t Type) String() string {
	switch t {
	case Create:
		return "create"
	case Up:
		return "up"
	case Down:
		return "down"
	case Closed:
		return "closed"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Missive is one connection-state notification.
type Missive struct {
	Conn uint64
	Type Type
}

// Subscriber receives Missives published to a Bus.
type Subscriber interface {
	Notify(Missive)
}

// SubscriberFunc adapts a plain function to the Subscriber interface.
type SubscriberFunc func(Missive)

func (f SubscriberFunc) Notify(m Missive) { f(m) }

// Bus is a simple synchronous publish/subscribe hub. Subscribers are
// invoked on the publishing goroutine - the connection's drain goroutine
// for every transition that originates in Connection.setState.
type Bus struct {
	mu   sync.RWMutex
	subs []Subscriber
}

// NewBus constructs an empty Bus.
func NewBus() *Bus { return &Bus{} }

// Subscribe registers s to receive future Missives.
func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, s)
}

// Publish notifies every current subscriber of m.
func (b *Bus) Publish(m Missive) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		s.Notify(m)
	}
}
