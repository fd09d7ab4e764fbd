package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"greenhouse_monitor/internal/models"
)

// Fixed keys of the session entries in kv_store.
const (
	KeyAccessToken = "greenhouse.auth.access_token"
	KeyUsername    = "greenhouse.auth.username"
)

const (
	upsertKVSQL = `
		INSERT INTO kv_store (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value
	`
	selectKVSQL      = `SELECT value FROM kv_store WHERE key = ?`
	deleteSessionSQL = `DELETE FROM kv_store WHERE key IN (?, ?)`
	selectSessionSQL = `SELECT key, value FROM kv_store WHERE key IN (?, ?)`
)

// SessionSQLite is a durable key/value Session Store.
type SessionSQLite struct {
	db *sql.DB
}

func NewSessionSQLite(db *sql.DB) *SessionSQLite {
	return &SessionSQLite{db: db}
}

// Ensure implementation of SessionStore interface at compile time.
var _ SessionStore = (*SessionSQLite)(nil)

// SaveSession writes token and username atomically.
func (r *SessionSQLite) SaveSession(ctx context.Context, s models.AuthSession) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, kv := range [][2]string{{KeyAccessToken, s.Token}, {KeyUsername, s.Username}} {
		if _, err := tx.ExecContext(ctx, upsertKVSQL, kv[0], kv[1]); err != nil {
			return fmt.Errorf("save %s: %w", kv[0], err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

// LoadSession returns the stored session; absent keys yield empty fields.
func (r *SessionSQLite) LoadSession(ctx context.Context) (models.AuthSession, error) {
	rows, err := r.db.QueryContext(ctx, selectSessionSQL, KeyAccessToken, KeyUsername)
	if err != nil {
		return models.AuthSession{}, fmt.Errorf("load session: %w", err)
	}
	defer rows.Close()

	var s models.AuthSession
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.AuthSession{}, fmt.Errorf("scan session: %w", err)
		}
		switch key {
		case KeyAccessToken:
			s.Token = value
		case KeyUsername:
			s.Username = value
		}
	}
	if err := rows.Err(); err != nil {
		return models.AuthSession{}, fmt.Errorf("load session: %w", err)
	}
	return s, nil
}

// Token returns the access token or "" when none is stored.
func (r *SessionSQLite) Token(ctx context.Context) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx, selectKVSQL, KeyAccessToken).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("load token: %w", err)
	}
	return token, nil
}

// Clear removes the session entries. Clearing an empty store is not an error.
func (r *SessionSQLite) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, deleteSessionSQL, KeyAccessToken, KeyUsername); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
