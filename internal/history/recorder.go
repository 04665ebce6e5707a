// Package history is the durable-history collaborator: it records each
// relayed message as the relay's core.MessageSink. The relay functions
// identically without it; history is a side subscription, never part of
// the delivery path.
package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/prtysh-bhb/estatechat/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id           INTEGER PRIMARY KEY,
	conversation TEXT NOT NULL,
	text         TEXT NOT NULL,
	display_time TEXT NOT NULL,
	recorded_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages(conversation, id DESC);
`

// Recorder persists relayed messages to SQLite.
type Recorder struct {
	db *sql.DB
}

// Open creates a recorder backed by the SQLite database at path, applying
// the schema if needed. Use ":memory:" for tests.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Recorder{db: db}, nil
}

// Close closes the database connection.
func (r *Recorder) Close() error {
	return r.db.Close()
}

// RecordMessage stores one relayed message. The per-copy sender tag is not
// persisted; it only has meaning relative to a recipient.
func (r *Recorder) RecordMessage(ctx context.Context, msg core.Message) error {
	query := `
		INSERT INTO messages (id, conversation, text, display_time)
		VALUES (?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query, msg.ID, msg.Conversation, msg.Text, msg.Time); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Recent returns up to limit most recent messages of a conversation,
// oldest first.
func (r *Recorder) Recent(ctx context.Context, conversation string, limit int) ([]core.Message, error) {
	query := `
		SELECT id, conversation, text, display_time
		FROM messages
		WHERE conversation = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, conversation, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []core.Message
	for rows.Next() {
		var m core.Message
		if err := rows.Scan(&m.ID, &m.Conversation, &m.Text, &m.Time); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
