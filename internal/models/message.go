// Package models defines the data model for the Loom composition and
// dispatch core.
package models

import (
	"errors"
	"time"
)

// Model errors.
var (
	ErrInvalidPart    = errors.New("invalid part")
	ErrInvalidMessage = errors.New("invalid queued message")
)

// QueuedMessage is a deferred message waiting in the tail queue.
// Immutable except (Text, Parts) via in-place edit; InsertionSeq never
// changes, which is what keeps FIFO order stable across edits.
type QueuedMessage struct {
	// ID is the unique identifier for the queued message.
	ID string `json:"id"`

	// ConversationID references the conversation the message targets.
	ConversationID string `json:"conversation_id"`

	// Text is the resolved message text.
	Text string `json:"text"`

	// Parts are the structured non-text parts accompanying the text.
	Parts []Part `json:"parts,omitempty"`

	// Agent is the agent the message is addressed to.
	Agent string `json:"agent"`

	// Model is the model identifier to run the turn with.
	Model string `json:"model"`

	// Variant is an optional model variant (for example a thinking level).
	Variant string `json:"variant,omitempty"`

	// InsertionSeq is the queue position (lower = earlier).
	InsertionSeq uint64 `json:"insertion_seq"`

	// QueuedAt is when the message was deferred.
	QueuedAt time.Time `json:"queued_at"`
}

// Validate checks that the message can be submitted. A missing agent or
// model blocks submission entirely.
func (m *QueuedMessage) Validate() error {
	errs := &ValidationErrors{}
	if m.ConversationID == "" {
		errs.AddMessage("conversation_id", "conversation is required")
	}
	if m.Agent == "" {
		errs.AddMessage("agent", "no agent selected")
	}
	if m.Model == "" {
		errs.AddMessage("model", "no model selected")
	}
	return errs.Err()
}
