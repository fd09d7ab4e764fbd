package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"greenhouse_monitor/internal/models"
	"greenhouse_monitor/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL   = time.Hour
	defaultResetTTL   = 15 * time.Minute
	defaultSigningKey = "greenhouse-dev-key"
	tokenType         = "Bearer"
	minPasswordLength = 6
)

// Domain errors for auth flows.
var (
	ErrInvalidPassword   = errors.New("invalid password")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidToken      = errors.New("invalid token")
	ErrEmailTaken        = errors.New("email already in use")
	ErrWeakPassword      = errors.New("password must be at least 6 characters")
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)

// AuthService handles user auth logic
type AuthService struct {
	authRepo   repository.Authorization
	resetRepo  repository.ResetTokenRepo
	signingKey []byte
	tokenTTL   time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

func NewAuthService(repo repository.Authorization, resets repository.ResetTokenRepo, opts Options) *AuthService {
	s := &AuthService{
		authRepo:   repo,
		resetRepo:  resets,
		signingKey: []byte(opts.SigningKey),
		tokenTTL:   opts.TokenTTL,
		resetTTL:   opts.ResetTTL,
		now:        time.Now,
	}
	if len(s.signingKey) == 0 {
		s.signingKey = []byte(defaultSigningKey)
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = defaultTokenTTL
	}
	if s.resetTTL <= 0 {
		s.resetTTL = defaultResetTTL
	}
	return s
}

// SignUp hashes password, creates a new user and signs them in.
func (s *AuthService) SignUp(ctx context.Context, username, email, password string) (models.AuthResponse, error) {
	existing, err := s.authRepo.GetByEmail(ctx, email)
	if err != nil {
		return models.AuthResponse{}, err
	}
	if existing != nil {
		return models.AuthResponse{}, ErrEmailTaken
	}

	hash, err := hashPassword(password)
	if err != nil {
		return models.AuthResponse{}, err
	}
	id, err := s.authRepo.Create(ctx, username, email, hash)
	if err != nil {
		return models.AuthResponse{}, err
	}
	return s.respond(models.User{ID: id, Username: username, Email: strings.ToLower(strings.TrimSpace(email))})
}

// Claims defines JWT claims
type Claims struct {
	jwt.RegisteredClaims
	UserID int `json:"user_id"`
}

// SignIn validates credentials and returns a signed token.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (models.AuthResponse, error) {
	u, err := s.authRepo.GetByEmail(ctx, email)
	if err != nil {
		return models.AuthResponse{}, err
	}
	if u == nil {
		return models.AuthResponse{}, ErrUserNotFound
	}
	if err := verifyPassword(u.PasswordHash, password); err != nil {
		return models.AuthResponse{}, ErrInvalidPassword
	}
	return s.respond(*u)
}

// ParseToken parses JWT and returns userID
func (s *AuthService) ParseToken(accessToken string) (int, error) {
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Ensure HMAC signing is used
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}

// RequestReset stores a fresh reset token for the account of email.
func (s *AuthService) RequestReset(ctx context.Context, email string) (string, error) {
	u, err := s.authRepo.GetByEmail(ctx, email)
	if err != nil || u == nil {
		return "", err
	}
	token := uuid.NewString()
	err = s.resetRepo.Save(ctx, models.PasswordReset{
		Token:     token,
		UserID:    u.ID,
		ExpiresAt: s.now().Add(s.resetTTL).UTC(),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// ResetPassword consumes a reset token and replaces the password.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	r, err := s.resetRepo.Take(ctx, token)
	if err != nil {
		return err
	}
	if r == nil || s.now().After(r.ExpiresAt) {
		return ErrInvalidResetToken
	}
	return s.authRepo.UpdatePassword(ctx, r.UserID, hash)
}

func (s *AuthService) respond(u models.User) (models.AuthResponse, error) {
	token, err := s.issueToken(u.ID)
	if err != nil {
		return models.AuthResponse{}, err
	}
	return models.AuthResponse{Token: token, Type: tokenType, Username: u.Username, Email: u.Email}, nil
}

// helper: hash password safely
func hashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" || len([]rune(password)) < minPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// helper: verify password against hash
func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// helper: issue a signed JWT for a user
func (s *AuthService) issueToken(userID int) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: userID,
	})
	return token.SignedString(s.signingKey)
}
