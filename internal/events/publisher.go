// Package events provides in-process event publishing and subscription
// for the composition and dispatch core. The dispatcher and the TUI
// subscribe to well-defined triggers instead of polling.
package events

import (
	"sync"
	"time"
)

// Type categorizes events in the core.
type Type string

const (
	// TypeBufferEdited fires after the composition buffer changed and
	// markers were re-resolved.
	TypeBufferEdited Type = "buffer.edited"

	// TypeQueueChanged fires after the tail queue gained, lost, or
	// rewrote an entry.
	TypeQueueChanged Type = "queue.changed"

	// TypeGateChanged fires on every dispatch gate transition.
	TypeGateChanged Type = "gate.changed"

	// TypeStatusChanged fires when a conversation's turn status changes.
	TypeStatusChanged Type = "status.changed"

	// TypeMessageDispatched fires after a queued message was handed to
	// the transport successfully.
	TypeMessageDispatched Type = "message.dispatched"

	// TypeMessageFailed fires when the transport rejected a send.
	TypeMessageFailed Type = "message.failed"
)

// Event is a single notification delivered to subscribers.
type Event struct {
	// Type categorizes the event.
	Type Type

	// ConversationID is the conversation the event relates to (may be
	// empty for global events).
	ConversationID string

	// Detail carries a short human-readable description, set for
	// failure events.
	Detail string

	// Timestamp is when the event was published.
	Timestamp time.Time
}

// Handler is a callback invoked when an event matches a subscription.
type Handler func(event Event)

// Filter defines criteria for matching events.
type Filter struct {
	// Types filters by event type (nil = all types).
	Types []Type

	// ConversationID filters to a specific conversation (empty = all).
	ConversationID string
}

// Matches returns true if the event matches the filter criteria.
func (f *Filter) Matches(event Event) bool {
	if len(f.Types) > 0 {
		matched := false
		for _, t := range f.Types {
			if event.Type == t {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.ConversationID != "" && event.ConversationID != f.ConversationID {
		return false
	}

	return true
}

// subscription represents an active event subscription.
type subscription struct {
	id      string
	filter  Filter
	handler Handler
}

// Publisher dispatches events to matching subscribers in-process.
type Publisher struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
}

// NewPublisher creates a new in-memory event publisher.
func NewPublisher() *Publisher {
	return &Publisher{
		subscriptions: make(map[string]*subscription),
	}
}

// Publish sends an event to all matching subscribers. Handlers run
// synchronously on the caller's goroutine, outside the lock.
func (p *Publisher) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	var handlers []Handler
	for _, sub := range p.subscriptions {
		if sub.filter.Matches(event) {
			handlers = append(handlers, sub.handler)
		}
	}
	p.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// Subscribe registers a handler to receive events matching the filter.
func (p *Publisher) Subscribe(id string, filter Filter, handler Handler) error {
	if id == "" {
		return ErrInvalidSubscriptionID
	}
	if handler == nil {
		return ErrNilHandler
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subscriptions[id]; exists {
		return ErrSubscriptionExists
	}

	p.subscriptions[id] = &subscription{
		id:      id,
		filter:  filter,
		handler: handler,
	}

	return nil
}

// Unsubscribe removes a subscription by ID.
func (p *Publisher) Unsubscribe(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subscriptions[id]; !exists {
		return ErrSubscriptionNotFound
	}

	delete(p.subscriptions, id)
	return nil
}

// SubscriberCount returns the number of active subscribers.
func (p *Publisher) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscriptions)
}

// Close removes all subscriptions.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriptions = make(map[string]*subscription)
}

// Errors for publisher operations.
var (
	ErrInvalidSubscriptionID = &PublisherError{Message: "subscription ID is required"}
	ErrNilHandler            = &PublisherError{Message: "handler cannot be nil"}
	ErrSubscriptionExists    = &PublisherError{Message: "subscription with this ID already exists"}
	ErrSubscriptionNotFound  = &PublisherError{Message: "subscription not found"}
)

// PublisherError represents an error from publisher operations.
type PublisherError struct {
	Message string
}

func (e *PublisherError) Error() string {
	return e.Message
}
