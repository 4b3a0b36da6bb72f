// Package events is the in-process fanout point for lifecycle events.
// Delivery is broadcast-only: whoever is subscribed at publish time gets the
// event, a full subscriber buffer drops it, and there is no replay log.
// Reconnecting observers re-derive state by querying the repositories.
package events

import (
	"sync"
	"time"
)

// Kind enumerates the published event kinds.
type Kind string

const (
	KindRideRequested         Kind = "ride_requested"
	KindRideStatusChanged     Kind = "ride_status_changed"
	KindDriverLocationUpdated Kind = "driver_location_updated"
	KindMessagePosted         Kind = "message_posted"
)

// Event is the in-process representation; Payload carries the wire message
// from internal/general/contracts.
type Event struct {
	Kind       Kind
	RideID     string
	ThreadID   string
	DriverID   string
	OccurredAt time.Time
	Payload    any
}

// Bus fans events out to subscriber channels. Per-ride ordering is inherited
// from the mutation discipline upstream (publishers call Publish in commit
// order); the bus itself only preserves the order it was handed.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a buffered subscriber channel and returns it together
// with an unsubscribe function. Unsubscribe closes the channel.
func (bus *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	bus.mu.Lock()
	id := bus.next
	bus.next++
	bus.subs[id] = ch
	bus.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			bus.mu.Lock()
			delete(bus.subs, id)
			bus.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

// Publish delivers the event to every connected subscriber without blocking.
// A subscriber that cannot keep up misses the event.
func (bus *Bus) Publish(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	bus.mu.RLock()
	defer bus.mu.RUnlock()
	for _, ch := range bus.subs {
		select {
		case ch <- event:
		default:
			// subscriber buffer full; broadcast semantics, drop
		}
	}
}

// Subscribers reports the current subscriber count (used by metrics).
func (bus *Bus) Subscribers() int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	return len(bus.subs)
}
