package models

import "time"

// ConversationState is the externally observable state of an agent turn.
type ConversationState string

const (
	ConversationStateIdle     ConversationState = "idle"
	ConversationStateRunning  ConversationState = "running"
	ConversationStateRetrying ConversationState = "retrying"
)

// ConversationStatus is the transport-maintained status of a conversation.
// The dispatch core only reads it.
type ConversationStatus struct {
	// State is the current turn state.
	State ConversationState `json:"state"`

	// RetryAttempt is the current retry attempt (retrying only).
	RetryAttempt int `json:"retry_attempt,omitempty"`

	// RetryMessage describes why the transport is retrying.
	RetryMessage string `json:"retry_message,omitempty"`

	// NextRetryAt is when the next retry fires (retrying only).
	NextRetryAt time.Time `json:"next_retry_at,omitempty"`
}

// Idle reports whether the conversation has no turn in progress.
func (s ConversationStatus) Idle() bool {
	return s.State == "" || s.State == ConversationStateIdle
}
