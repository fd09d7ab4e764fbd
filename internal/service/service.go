package service

import (
	"context"
	"time"

	"greenhouse_monitor/internal/logger"
	"greenhouse_monitor/internal/models"
	"greenhouse_monitor/internal/repository"
)

// Authorization covers the account flows of the development backend.
type Authorization interface {
	SignUp(ctx context.Context, username, email, password string) (models.AuthResponse, error)
	SignIn(ctx context.Context, email, password string) (models.AuthResponse, error)
	ParseToken(accessToken string) (int, error)
	// RequestReset issues a reset token; it returns "" for unknown emails.
	RequestReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// Greenhouse stores readings, fans them out to realtime subscribers and accepts setpoints.
type Greenhouse interface {
	Record(ctx context.Context, m models.GreenhouseMessage) error
	Recent(ctx context.Context, limit int) ([]models.GreenhouseMessage, error)
	PublishCustom(ctx context.Context, topic string, qos int, payload []byte) error
}

// Broadcaster fans encoded messages out to realtime subscribers.
type Broadcaster interface {
	Subscribe() (<-chan []byte, func())
	Publish(body []byte) int
}

// Simulator runs the background loop that produces readings.
// Stop via context cancellation in main() for graceful shutdown.
type Simulator interface {
	Run(ctx context.Context, tick time.Duration)
}

// Options are the tunables of the backend services.
type Options struct {
	SigningKey string
	TokenTTL   time.Duration
	ResetTTL   time.Duration
	Log        *logger.Logger
}

// Service aggregates all sub-services.
type Service struct {
	Authorization
	Greenhouse
	Simulator
	Hub Broadcaster
}

// NewService wires the repository layer into concrete services.
func NewService(repos *repository.Repository, opts Options) *Service {
	hub := NewHub(0)
	sim := NewSimulatorService(opts.Log.Named("simulator"))
	greenhouse := NewGreenhouseService(repos.Messages, hub, sim, opts.Log.Named("greenhouse"))
	sim.sink = greenhouse

	return &Service{
		Authorization: NewAuthService(repos.Auth, repos.Resets, opts),
		Greenhouse:    greenhouse,
		Simulator:     sim,
		Hub:           hub,
	}
}
