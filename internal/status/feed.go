// Package status holds the per-conversation turn status read model. The
// transport layer writes it; the dispatcher and the TUI only read it.
package status

import (
	"sync"

	"github.com/tOgg1/loom/internal/events"
	"github.com/tOgg1/loom/internal/models"
)

// Feed tracks the last reported status per conversation and publishes a
// status.changed event on every transition.
type Feed struct {
	mu       sync.RWMutex
	statuses map[string]models.ConversationStatus
	pub      *events.Publisher
}

// NewFeed creates an empty status feed. The publisher may be nil.
func NewFeed(pub *events.Publisher) *Feed {
	return &Feed{
		statuses: make(map[string]models.ConversationStatus),
		pub:      pub,
	}
}

// Set records the transport-reported status for a conversation. Repeated
// identical states are dropped without publishing.
func (f *Feed) Set(conversationID string, st models.ConversationStatus) {
	f.mu.Lock()
	prev, seen := f.statuses[conversationID]
	if seen && prev == st {
		f.mu.Unlock()
		return
	}
	f.statuses[conversationID] = st
	f.mu.Unlock()

	if f.pub != nil {
		f.pub.Publish(events.Event{
			Type:           events.TypeStatusChanged,
			ConversationID: conversationID,
		})
	}
}

// Get returns the last reported status; unknown conversations are idle.
func (f *Feed) Get(conversationID string) models.ConversationStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if st, ok := f.statuses[conversationID]; ok {
		return st
	}
	return models.ConversationStatus{State: models.ConversationStateIdle}
}

// Idle reports whether the conversation has no turn in progress.
func (f *Feed) Idle(conversationID string) bool {
	return f.Get(conversationID).Idle()
}
