// Package auth is the Auth Session Coordinator: it validates auth forms, runs at
// most one remote auth call at a time, persists the session and announces outcomes.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"greenhouse_monitor/internal/logger"
	"greenhouse_monitor/internal/models"
	"greenhouse_monitor/internal/observable"
	"greenhouse_monitor/internal/repository"
)

// eventBuffer bounds undelivered one-shot events.
const eventBuffer = 64

var errEmptyToken = errors.New("auth response carried no token")

// API is the remote side of the auth flows, usually *gateway.Client.
type API interface {
	Login(ctx context.Context, req models.LoginRequest) (models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (models.AuthResponse, error)
	ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) (models.MessageResponse, error)
	ResetPassword(ctx context.Context, req models.ResetPasswordRequest) (models.MessageResponse, error)
}

// Coordinator owns AuthUiState. All four remote operations share one
// single-flight guard: a request made while another is loading is dropped.
type Coordinator struct {
	api   API
	store repository.SessionStore
	log   *logger.Logger

	state  *observable.Value[models.AuthUiState]
	events chan models.AuthEvent

	mu     sync.Mutex // guards flight transitions
	flight *flight
}

func NewCoordinator(api API, store repository.SessionStore, log *logger.Logger) *Coordinator {
	return &Coordinator{
		api:    api,
		store:  store,
		log:    log,
		state:  observable.New(models.AuthUiState{}),
		events: make(chan models.AuthEvent, eventBuffer),
		flight: newFlight(log),
	}
}

// State returns a snapshot of the UI state.
func (c *Coordinator) State() models.AuthUiState { return c.state.Get() }

// Subscribe watches the UI state. Call cancel when done.
func (c *Coordinator) Subscribe() (<-chan models.AuthUiState, func()) { return c.state.Subscribe() }

// Events delivers each success event once to a single consumer.
func (c *Coordinator) Events() <-chan models.AuthEvent { return c.events }

// Phase reports where the current operation is in its lifecycle.
func (c *Coordinator) Phase() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flight.Current()
}

func (c *Coordinator) SetEmail(v string) { c.editDraft(func(d *models.AuthDraft) { d.Email = v }) }

func (c *Coordinator) SetPassword(v string) {
	c.editDraft(func(d *models.AuthDraft) { d.Password = v })
}

func (c *Coordinator) SetUsername(v string) {
	c.editDraft(func(d *models.AuthDraft) { d.Username = v })
}

func (c *Coordinator) SetConfirmPassword(v string) {
	c.editDraft(func(d *models.AuthDraft) { d.ConfirmPassword = v })
}

func (c *Coordinator) SetResetToken(v string) {
	c.editDraft(func(d *models.AuthDraft) { d.ResetToken = v })
}

func (c *Coordinator) SetNewPassword(v string) {
	c.editDraft(func(d *models.AuthDraft) { d.NewPassword = v })
}

func (c *Coordinator) editDraft(fn func(*models.AuthDraft)) {
	c.state.Update(func(s models.AuthUiState) models.AuthUiState {
		fn(&s.Draft)
		return s
	})
}

// ClearError drops the displayed error.
func (c *Coordinator) ClearError() {
	c.state.Update(func(s models.AuthUiState) models.AuthUiState {
		s.Error = ""
		return s
	})
}

// IsLoggedIn reports whether the Session Store holds a token.
func (c *Coordinator) IsLoggedIn(ctx context.Context) bool {
	tok, err := c.store.Token(ctx)
	if err != nil {
		if c.log != nil {
			c.log.Warnw("auth_session_read_failed", "err", err)
		}
		return false
	}
	return tok != ""
}

// Logout clears the stored session and resets the form. It is not guarded
// and never fails; a storage error is logged.
func (c *Coordinator) Logout(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil && c.log != nil {
		c.log.Errorw("auth_logout_clear_failed", "err", err)
	}
	c.state.Update(func(s models.AuthUiState) models.AuthUiState {
		return models.AuthUiState{IsLoading: s.IsLoading}
	})
}

// Login signs in with the email and password drafts.
func (c *Coordinator) Login(ctx context.Context) {
	c.run(ctx, "login", validateLogin, func(ctx context.Context, d models.AuthDraft) (models.AuthEvent, error) {
		resp, err := c.api.Login(ctx, models.LoginRequest{Email: strings.TrimSpace(d.Email), Password: d.Password})
		if err != nil {
			return 0, err
		}
		if err := c.persist(ctx, resp, strings.TrimSpace(d.Email)); err != nil {
			return 0, err
		}
		return models.LoginSuccess, nil
	})
}

// Register creates an account and signs in with it.
func (c *Coordinator) Register(ctx context.Context) {
	c.run(ctx, "register", validateRegister, func(ctx context.Context, d models.AuthDraft) (models.AuthEvent, error) {
		resp, err := c.api.Register(ctx, models.RegisterRequest{
			Username: strings.TrimSpace(d.Username),
			Email:    strings.TrimSpace(d.Email),
			Password: d.Password,
		})
		if err != nil {
			return 0, err
		}
		if err := c.persist(ctx, resp, strings.TrimSpace(d.Username)); err != nil {
			return 0, err
		}
		return models.RegisterSuccess, nil
	})
}

// ForgotPassword asks the backend to send a reset token to the email draft.
func (c *Coordinator) ForgotPassword(ctx context.Context) {
	c.run(ctx, "forgot_password", validateForgot, func(ctx context.Context, d models.AuthDraft) (models.AuthEvent, error) {
		if _, err := c.api.ForgotPassword(ctx, models.ForgotPasswordRequest{Email: strings.TrimSpace(d.Email)}); err != nil {
			return 0, err
		}
		return models.ForgotPasswordSuccess, nil
	})
}

// ResetPassword sets a new password using the reset token draft.
func (c *Coordinator) ResetPassword(ctx context.Context) {
	c.run(ctx, "reset_password", validateReset, func(ctx context.Context, d models.AuthDraft) (models.AuthEvent, error) {
		req := models.ResetPasswordRequest{Token: strings.TrimSpace(d.ResetToken), NewPassword: d.NewPassword}
		if _, err := c.api.ResetPassword(ctx, req); err != nil {
			return 0, err
		}
		return models.ResetPasswordSuccess, nil
	})
}

// run drives one guarded operation: validate, call, settle.
func (c *Coordinator) run(
	ctx context.Context,
	op string,
	validate func(models.AuthDraft) *Error,
	call func(context.Context, models.AuthDraft) (models.AuthEvent, error),
) {
	draft, ok := c.begin(ctx, op, validate)
	if !ok {
		return
	}

	// the remote call runs to completion even if the caller gives up
	ev, err := call(context.WithoutCancel(ctx), draft)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.flight.fire(ctx, eventFail, op)
		ae := Classify(err)
		if c.log != nil {
			c.log.Warnw("auth_"+op+"_failed", "kind", ae.Kind.String(), "status", ae.Status, "err", err)
		}
		c.state.Update(func(s models.AuthUiState) models.AuthUiState {
			s.IsLoading = false
			s.Error = ae.Message
			return s
		})
	} else {
		c.flight.fire(ctx, eventSucceed, op)
		if c.log != nil {
			c.log.Infow("auth_" + op + "_succeeded")
		}
		c.state.Update(func(s models.AuthUiState) models.AuthUiState {
			s.IsLoading = false
			s.Error = ""
			return s
		})
	}
	c.flight.fire(ctx, eventFinalize, op)
	if err == nil {
		c.emit(ev)
	}
}

// begin validates the draft and takes the single-flight slot.
// It reports false when the request was dropped or rejected locally.
func (c *Coordinator) begin(ctx context.Context, op string, validate func(models.AuthDraft) *Error) (models.AuthDraft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Get().IsLoading || !c.flight.fire(ctx, eventValidate, op) {
		if c.log != nil {
			c.log.Debugw("auth_request_dropped", "op", op)
		}
		return models.AuthDraft{}, false
	}

	draft := c.state.Get().Draft
	if verr := validate(draft); verr != nil {
		c.flight.fire(ctx, eventReject, op)
		c.state.Update(func(s models.AuthUiState) models.AuthUiState {
			s.Error = verr.Message
			return s
		})
		return models.AuthDraft{}, false
	}

	c.flight.fire(ctx, eventSubmit, op)
	c.state.Update(func(s models.AuthUiState) models.AuthUiState {
		s.IsLoading = true
		s.Error = ""
		return s
	})
	return draft, true
}

// persist stores the session from a login or register response.
// An empty response username falls back to the given draft value.
func (c *Coordinator) persist(ctx context.Context, resp models.AuthResponse, fallbackName string) error {
	if resp.Token == "" {
		return errEmptyToken
	}
	name := resp.Username
	if name == "" {
		name = fallbackName
	}
	return c.store.SaveSession(ctx, models.AuthSession{Token: resp.Token, Username: name})
}

func (c *Coordinator) emit(ev models.AuthEvent) {
	select {
	case c.events <- ev:
	default:
		if c.log != nil {
			c.log.Warnw("auth_event_dropped", "event", ev.String())
		}
	}
}
