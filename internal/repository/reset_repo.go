package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"greenhouse_monitor/internal/models"
)

const (
	insertResetSQL = `INSERT INTO password_resets (token, user_id, expires_at) VALUES (?, ?, ?)`
	selectResetSQL = `SELECT token, user_id, expires_at FROM password_resets WHERE token = ?`
	deleteResetSQL = `DELETE FROM password_resets WHERE token = ?`
)

type ResetTokenSQLite struct {
	db *sql.DB
}

func NewResetTokenSQLite(db *sql.DB) *ResetTokenSQLite { return &ResetTokenSQLite{db: db} }

var _ ResetTokenRepo = (*ResetTokenSQLite)(nil)

func (r *ResetTokenSQLite) Save(ctx context.Context, pr models.PasswordReset) error {
	if _, err := r.db.ExecContext(ctx, insertResetSQL, pr.Token, pr.UserID, pr.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}
	return nil
}

// Take returns the reset and deletes it so a token is usable once. Returns (nil, nil) if unknown.
func (r *ResetTokenSQLite) Take(ctx context.Context, token string) (*models.PasswordReset, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reset transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var pr models.PasswordReset
	err = tx.QueryRowContext(ctx, selectResetSQL, token).Scan(&pr.Token, &pr.UserID, &pr.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select reset token: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteResetSQL, token); err != nil {
		return nil, fmt.Errorf("delete reset token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reset transaction: %w", err)
	}
	pr.ExpiresAt = pr.ExpiresAt.UTC()
	return &pr, nil
}
