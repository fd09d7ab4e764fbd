package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"greenhouse_monitor/internal/models"
)

// Default and upper bound for Recent.
const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 500
)

const (
	insertMessageSQL = `
		INSERT INTO greenhouse_messages (greenhouse_id, ts, payload, stored_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(greenhouse_id, ts) DO NOTHING
	`
	selectRecentMessagesSQL = `
		SELECT payload FROM greenhouse_messages
		ORDER BY id DESC LIMIT ?
	`
)

type MessageSQLite struct {
	db *sql.DB
}

func NewMessageSQLite(db *sql.DB) *MessageSQLite { return &MessageSQLite{db: db} }

var _ MessageRepo = (*MessageSQLite)(nil)

// Append stores the message once per (greenhouse id, timestamp); duplicates are ignored.
func (r *MessageSQLite) Append(ctx context.Context, m models.GreenhouseMessage) error {
	payload, err := m.Encode()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	_, err = r.db.ExecContext(ctx, insertMessageSQL,
		m.GreenhouseID,
		m.Timestamp,
		string(payload),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert message %s: %w", m.Key(), err)
	}
	return nil
}

// Recent returns up to limit messages, oldest first.
func (r *MessageSQLite) Recent(ctx context.Context, limit int) ([]models.GreenhouseMessage, error) {
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx, selectRecentMessagesSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent messages: %w", err)
	}
	defer rows.Close()

	out := make([]models.GreenhouseMessage, 0, limit)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		m, err := models.DecodeGreenhouseMessage([]byte(payload))
		if err != nil {
			// rows are written by Append only; skip anything unreadable
			continue
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// newest-first from the query; callers want delivery order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	default:
		return limit
	}
}
