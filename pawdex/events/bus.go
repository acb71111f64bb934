package events

import (
	"log/slog"
	"sync"
	"time"
)

// Kind identifies a domain event.
type Kind string

const (
	OfferCreated     Kind = "offer_created"
	OfferResolved    Kind = "offer_resolved"
	ListingPublished Kind = "listing_published"
	ListingRemoved   Kind = "listing_removed"
)

// Outcome qualifies an OfferResolved event.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeDeclined Outcome = "declined"
)

// Event is what observers receive. IDs are the public string identifiers, not
// database row ids.
type Event struct {
	Kind      Kind
	OfferID   string
	ListingID string
	UserID    string
	Outcome   Outcome
	At        time.Time
}

// Subscriber owns a buffered event channel. Events for slow subscribers are
// dropped rather than blocking publishers.
type Subscriber struct {
	C  chan Event
	id int
}

// Bus fans domain events out to subscribers. The core emits without holding
// any reference to the presentation layer; observers attach and detach freely.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*Subscriber
	nextID int
	closed bool
	buffer int
}

func NewBus() *Bus {
	return &Bus{
		subs:   make(map[int]*Subscriber),
		buffer: 64,
	}
}

func (b *Bus) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		s := &Subscriber{C: make(chan Event)}
		close(s.C)
		return s
	}

	s := &Subscriber{
		C:  make(chan Event, b.buffer),
		id: b.nextID,
	}
	b.subs[b.nextID] = s
	b.nextID++
	return s
}

func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[s.id]; ok && sub == s {
		delete(b.subs, s.id)
		close(s.C)
	}
}

// Publish delivers the event to every subscriber without blocking. A full
// subscriber buffer drops the event for that subscriber only.
func (b *Bus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, s := range b.subs {
		select {
		case s.C <- event:
		default:
			slog.Warn("Dropping event for slow subscriber",
				slog.String("type", "sys"),
				slog.String("kind", string(event.Kind)))
		}
	}
}

// Close shuts the bus down. Further Publish calls are no-ops and all
// subscriber channels are closed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		delete(b.subs, id)
		close(s.C)
	}
}
