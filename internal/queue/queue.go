// Package queue implements the per-conversation tail queue: messages
// deferred until the current agent turn completes, drained in insertion
// order by the dispatcher.
package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tOgg1/loom/internal/events"
	"github.com/tOgg1/loom/internal/models"
)

// PreviewWidth is how many characters of the head message the status
// strip preview shows before truncation.
const PreviewWidth = 80

// Preview is the status strip summary for one conversation's queue.
type Preview struct {
	// Count is the number of pending messages.
	Count int

	// PreviewText is the head message text, truncated.
	PreviewText string

	// EditingID is the message currently loaded for in-place editing,
	// empty when none.
	EditingID string
}

// TailQueue holds deferred messages for all conversations. Identity is
// stable: InsertionSeq never changes, so FIFO order survives in-place
// edits.
type TailQueue struct {
	mu      sync.Mutex
	items   []*models.QueuedMessage
	nextSeq uint64
	editing map[string]string // conversation -> message ID being edited
	pub     *events.Publisher
}

// New creates an empty tail queue. The publisher may be nil.
func New(pub *events.Publisher) *TailQueue {
	return &TailQueue{
		nextSeq: 1,
		editing: make(map[string]string),
		pub:     pub,
	}
}

// Enqueue appends a message with a fresh ID and the next insertion
// sequence, returning the stored copy.
func (q *TailQueue) Enqueue(msg models.QueuedMessage) models.QueuedMessage {
	q.mu.Lock()
	msg.ID = uuid.NewString()
	msg.InsertionSeq = q.nextSeq
	q.nextSeq++
	if msg.QueuedAt.IsZero() {
		msg.QueuedAt = time.Now()
	}
	stored := msg
	q.items = append(q.items, &stored)
	q.mu.Unlock()

	q.publishChanged(msg.ConversationID)
	return msg
}

// EditInPlace replaces (text, parts) for the matching ID. InsertionSeq is
// untouched, so FIFO order is unaffected. When the ID is no longer
// present (already dispatched) the call is a silent no-op.
func (q *TailQueue) EditInPlace(id, newText string, newParts []models.Part) bool {
	q.mu.Lock()
	var conv string
	edited := false
	for _, item := range q.items {
		if item.ID == id {
			item.Text = newText
			item.Parts = newParts
			conv = item.ConversationID
			edited = true
			break
		}
	}
	q.mu.Unlock()

	if edited {
		q.publishChanged(conv)
	}
	return edited
}

// DequeueHead removes and returns the lowest-sequence entry for the
// conversation. Used only by the dispatcher.
func (q *TailQueue) DequeueHead(conversationID string) (models.QueuedMessage, bool) {
	q.mu.Lock()
	headIdx := -1
	for i, item := range q.items {
		if item.ConversationID != conversationID {
			continue
		}
		if headIdx < 0 || item.InsertionSeq < q.items[headIdx].InsertionSeq {
			headIdx = i
		}
	}
	if headIdx < 0 {
		q.mu.Unlock()
		return models.QueuedMessage{}, false
	}

	head := *q.items[headIdx]
	q.items = append(q.items[:headIdx], q.items[headIdx+1:]...)
	if q.editing[conversationID] == head.ID {
		delete(q.editing, conversationID)
	}
	q.mu.Unlock()

	q.publishChanged(conversationID)
	return head, true
}

// Cancel removes a message by ID.
func (q *TailQueue) Cancel(id string) bool {
	q.mu.Lock()
	removed := false
	var conv string
	for i, item := range q.items {
		if item.ID == id {
			conv = item.ConversationID
			q.items = append(q.items[:i], q.items[i+1:]...)
			if q.editing[conv] == id {
				delete(q.editing, conv)
			}
			removed = true
			break
		}
	}
	q.mu.Unlock()

	if removed {
		q.publishChanged(conv)
	}
	return removed
}

// Items returns the conversation's pending messages in insertion order.
func (q *TailQueue) Items(conversationID string) []models.QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.itemsLocked(conversationID)
}

func (q *TailQueue) itemsLocked(conversationID string) []models.QueuedMessage {
	var out []models.QueuedMessage
	for _, item := range q.items {
		if item.ConversationID == conversationID {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].InsertionSeq < out[j].InsertionSeq
	})
	return out
}

// Len returns the number of pending messages for the conversation.
func (q *TailQueue) Len(conversationID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, item := range q.items {
		if item.ConversationID == conversationID {
			n++
		}
	}
	return n
}

// Get returns a message by ID.
func (q *TailQueue) Get(id string) (models.QueuedMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.ID == id {
			return *item, true
		}
	}
	return models.QueuedMessage{}, false
}

// SetEditing marks a message as the one loaded into the live composition.
// At most one message per conversation can be editing; marking an absent
// ID is a no-op.
func (q *TailQueue) SetEditing(conversationID, id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.ID == id && item.ConversationID == conversationID {
			q.editing[conversationID] = id
			return true
		}
	}
	return false
}

// Editing returns the ID currently being edited. The flag self-clears
// when the underlying entry has disappeared (race with the dispatcher).
func (q *TailQueue) Editing(conversationID string) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id, ok := q.editing[conversationID]
	if !ok {
		return "", false
	}
	for _, item := range q.items {
		if item.ID == id {
			return id, true
		}
	}
	delete(q.editing, conversationID)
	return "", false
}

// ClearEditing drops the editing flag for a conversation.
func (q *TailQueue) ClearEditing(conversationID string) {
	q.mu.Lock()
	delete(q.editing, conversationID)
	q.mu.Unlock()
}

// Preview returns the status strip summary for a conversation. A
// non-positive width falls back to PreviewWidth.
func (q *TailQueue) Preview(conversationID string, width int) Preview {
	if width <= 0 {
		width = PreviewWidth
	}

	q.mu.Lock()
	items := q.itemsLocked(conversationID)
	editingID := q.editing[conversationID]
	q.mu.Unlock()

	p := Preview{Count: len(items), EditingID: editingID}
	if len(items) > 0 {
		p.PreviewText = truncatePreview(items[0].Text, width)
	}
	return p
}

// truncatePreview cuts on rune boundaries so a multibyte character
// straddling the limit never yields invalid UTF-8.
func truncatePreview(text string, width int) string {
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	return string(runes[:width]) + "..."
}

func (q *TailQueue) publishChanged(conversationID string) {
	if q.pub == nil {
		return
	}
	q.pub.Publish(events.Event{
		Type:           events.TypeQueueChanged,
		ConversationID: conversationID,
	})
}
