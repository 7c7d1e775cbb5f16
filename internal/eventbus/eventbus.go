// Package eventbus provides the in-process, synchronous pub/sub used to
// decouple the transition engine from its collaborators. Delivery is
// best-effort: a failing subscriber is logged and never prevents delivery to
// the remaining subscribers or rolls back the originating mutation.
package eventbus

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Kind identifies a class of domain event.
type Kind string

const (
	// KindLoadStatusChanged is published on every committed transition
	KindLoadStatusChanged Kind = "load.status_changed"
	// KindLoadArrivedAtField is published when a disposal flow load reaches its site
	KindLoadArrivedAtField Kind = "load.arrived_at_field"
	// KindTripLinked is published when loads are consolidated into a trip
	KindTripLinked Kind = "trip.linked"
	// KindTripResourcesAssigned is published when a whole trip is assigned
	KindTripResourcesAssigned Kind = "trip.resources_assigned"
)

// Event is a domain event with a typed payload.
type Event struct {
	Kind      Kind        `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Handler consumes an event. Handlers run synchronously on the publishing
// goroutine and must not assume any retry on failure.
type Handler func(event Event)

// Bus is the publisher interface injected into the engines, so tests can
// substitute a recording bus.
type Bus interface {
	Subscribe(kind Kind, handler Handler)
	Publish(event Event)
}

// InMemoryBus implements Bus with a subscriber map guarded by a mutex.
type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[Kind][]Handler
}

// New creates an empty in-memory bus.
func New() *InMemoryBus {
	return &InMemoryBus{subscribers: make(map[Kind][]Handler)}
}

// Subscribe registers a handler for an event kind.
func (b *InMemoryBus) Subscribe(kind Kind, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[kind] = append(b.subscribers[kind], handler)
}

// Publish delivers the event to every subscriber of its kind, in
// subscription order. A panicking handler is recovered and logged; delivery
// continues with the next subscriber.
func (b *InMemoryBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.subscribers[event.Kind]))
	copy(handlers, b.subscribers[event.Kind])
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.deliver(event, handler)
	}
}

func (b *InMemoryBus) deliver(event Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("kind", string(event.Kind)).
				Interface("panic", r).
				Msg("Event handler panicked")
		}
	}()
	handler(event)
}
