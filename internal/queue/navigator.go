package queue

import "github.com/tOgg1/loom/internal/models"

// Navigator is a cursor over one conversation's queue, newest first,
// wrapping cyclically at both ends. Selecting an entry loads it into the
// live composition as the currently-editing item.
type Navigator struct {
	q              *TailQueue
	conversationID string
	currentID      string
}

// NewNavigator creates a navigator for a conversation's queue.
func NewNavigator(q *TailQueue, conversationID string) *Navigator {
	return &Navigator{q: q, conversationID: conversationID}
}

// Move steps the cursor: -1 toward older entries, +1 toward newer,
// wrapping at both ends. From an unselected cursor, -1 lands on the
// newest entry and +1 on the oldest. Returns the selected message.
func (n *Navigator) Move(direction int) (models.QueuedMessage, bool) {
	items := n.q.Items(n.conversationID)
	if len(items) == 0 {
		n.currentID = ""
		return models.QueuedMessage{}, false
	}

	// Newest first.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	pos := -1
	if n.currentID != "" {
		for i, item := range items {
			if item.ID == n.currentID {
				pos = i
				break
			}
		}
	}

	count := len(items)
	switch {
	case pos < 0 && direction < 0:
		pos = 0
	case pos < 0:
		pos = count - 1
	case direction < 0:
		pos = (pos + 1) % count
	default:
		pos = (pos - 1 + count) % count
	}

	selected := items[pos]
	n.currentID = selected.ID
	n.q.SetEditing(n.conversationID, selected.ID)
	return selected, true
}

// Current returns the selected message, if it still exists.
func (n *Navigator) Current() (models.QueuedMessage, bool) {
	if n.currentID == "" {
		return models.QueuedMessage{}, false
	}
	msg, ok := n.q.Get(n.currentID)
	if !ok {
		n.currentID = ""
	}
	return msg, ok
}

// Reset drops the cursor and the conversation's editing flag.
func (n *Navigator) Reset() {
	n.currentID = ""
	n.q.ClearEditing(n.conversationID)
}
