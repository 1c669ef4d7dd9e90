// Package history provides the append-only SQLite store for sent
// messages. The queue itself is process-lifetime only; history is the
// durable record of what actually went out.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 50 * time.Millisecond
)

// DB wraps the sqlite handle.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if needed) the history database at path and
// applies the schema.
func Open(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sent_messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			agent           TEXT NOT NULL,
			model           TEXT NOT NULL,
			variant         TEXT NOT NULL DEFAULT '',
			text            TEXT NOT NULL,
			parts_json      TEXT NOT NULL DEFAULT '[]',
			sent_at         TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sent_messages_conversation
			ON sent_messages(conversation_id, sent_at);
	`)
	if err != nil {
		return fmt.Errorf("apply history schema: %w", err)
	}
	return nil
}

// execWithRetry runs a statement with retry handling for busy database
// errors.
func (db *DB) execWithRetry(ctx context.Context, query string, args ...any) error {
	attempt := 0
	backoff := defaultRetryBackoff

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, err := db.conn.ExecContext(ctx, query, args...)
		if err == nil {
			return nil
		}

		attempt++
		if !isBusyError(err) || attempt >= defaultRetryAttempts {
			return err
		}

		if err := sleepWithContext(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
	}
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	message := strings.ToLower(err.Error())
	return strings.Contains(message, "database is locked") ||
		strings.Contains(message, "database is busy") ||
		strings.Contains(message, "sqlite_busy")
}

func sleepWithContext(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
