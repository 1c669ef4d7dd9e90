package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tOgg1/loom/internal/models"
)

// Repository handles sent-message persistence.
type Repository struct {
	db *DB
}

// NewRepository creates a repository over the history database.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Record appends a dispatched message. Implements dispatch.Recorder.
func (r *Repository) Record(ctx context.Context, msg models.QueuedMessage) error {
	partsJSON, err := json.Marshal(msg.Parts)
	if err != nil {
		return fmt.Errorf("marshal parts: %w", err)
	}

	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}

	err = r.db.execWithRetry(ctx, `
		INSERT INTO sent_messages (id, conversation_id, agent, model, variant, text, parts_json, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, msg.ConversationID, msg.Agent, msg.Model, msg.Variant, msg.Text,
		string(partsJSON), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append sent message: %w", err)
	}
	return nil
}

// ListRecent returns the most recent sent messages for a conversation,
// newest first.
func (r *Repository) ListRecent(ctx context.Context, conversationID string, limit int) ([]models.QueuedMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, conversation_id, agent, model, variant, text, parts_json
		FROM sent_messages
		WHERE conversation_id = ?
		ORDER BY sent_at DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sent messages: %w", err)
	}
	defer rows.Close()

	var out []models.QueuedMessage
	for rows.Next() {
		var msg models.QueuedMessage
		var partsJSON string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Agent, &msg.Model,
			&msg.Variant, &msg.Text, &partsJSON); err != nil {
			return nil, fmt.Errorf("scan sent message: %w", err)
		}
		if err := json.Unmarshal([]byte(partsJSON), &msg.Parts); err != nil {
			return nil, fmt.Errorf("decode parts: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}
