package repository

import (
	"context"
	"database/sql"

	"greenhouse_monitor/internal/models"
)

// SessionStore persists the opaque auth token and username of the client.
type SessionStore interface {
	SaveSession(ctx context.Context, s models.AuthSession) error
	LoadSession(ctx context.Context) (models.AuthSession, error)
	Token(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// MessageRepo caches greenhouse readings: received ones on the client, produced ones on the backend.
type MessageRepo interface {
	Append(ctx context.Context, m models.GreenhouseMessage) error
	Recent(ctx context.Context, limit int) ([]models.GreenhouseMessage, error)
}

// Authorization stores backend accounts.
type Authorization interface {
	Create(ctx context.Context, username, email, hash string) (int, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID int, hash string) error
}

// ResetTokenRepo stores pending password resets.
type ResetTokenRepo interface {
	Save(ctx context.Context, r models.PasswordReset) error
	Take(ctx context.Context, token string) (*models.PasswordReset, error)
}

type Repository struct {
	Session  SessionStore
	Messages MessageRepo
	Auth     Authorization
	Resets   ResetTokenRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Session:  NewSessionSQLite(db),
		Messages: NewMessageSQLite(db),
		Auth:     NewUserRepository(db),
		Resets:   NewResetTokenSQLite(db),
	}
}
