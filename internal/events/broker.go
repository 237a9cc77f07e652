// Package events fans ticket change notifications out to long-lived
// subscribers. Delivery is best effort: a subscriber that cannot keep up is
// dropped, and dropped subscribers never receive a backlog.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActionBulkImport tags the event published after a bulk import commits.
const ActionBulkImport = "bulk-import"

// Event is one change notification.
type Event struct {
	Action string     `json:"action"`
	ID     *uuid.UUID `json:"id,omitempty"`
	SentAt time.Time  `json:"sentAt"`
}

// subscriberBuffer bounds how many undelivered events a subscriber may hold
// before it is considered failed and dropped.
const subscriberBuffer = 16

// Subscriber is one registered listener.
type Subscriber struct {
	ch chan Event
}

// Events is the stream of notifications for this subscriber. It is closed
// when the subscriber is dropped or unsubscribed.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Broker maintains the set of currently connected subscribers.
type Broker struct {
	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	logger *slog.Logger
}

// NewBroker creates an empty broker.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subs:   make(map[*Subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers a listener and immediately queues a connection
// acknowledgement event.
func (b *Broker) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan Event, subscriberBuffer)}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	sub.ch <- Event{Action: "connected", SentAt: time.Now()}
	return sub
}

// Unsubscribe removes a listener and closes its stream. Safe to call more
// than once.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}

// Publish pushes an event to every current subscriber. A subscriber whose
// buffer is full is removed without affecting delivery to the others.
func (b *Broker) Publish(action string, id *uuid.UUID) {
	event := Event{Action: action, ID: id, SentAt: time.Now()}

	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			delete(b.subs, sub)
			close(sub.ch)
			b.logger.Warn("dropping slow change subscriber", "action", action)
		}
	}
}

// Len reports the number of connected subscribers.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
