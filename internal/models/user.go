package models

import "time"

// User is an account of the development backend.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"` // don’t expose hash
}

// PasswordReset is a pending reset token issued by forgot-password.
type PasswordReset struct {
	Token     string
	UserID    int
	ExpiresAt time.Time
}
