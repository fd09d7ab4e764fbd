// Package gateway is the HTTP Request Gateway: the REST client of the greenhouse backend.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gm "greenhouse_monitor"
	"greenhouse_monitor/internal/logger"
	"greenhouse_monitor/internal/models"

	"github.com/sony/gobreaker"
)

// ErrNetwork marks failures where no HTTP response was received.
var ErrNetwork = errors.New("network error")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code    int
	Body    string
	Message string // server supplied message, if the body carried one
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("status %d", e.Code)
}

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

const (
	defaultTimeout   = 15 * time.Second
	maxResponseBytes = 1 << 20 // 1 MB

	breakerName         = "greenhouse-api"
	breakerOpenFor      = 30 * time.Second
	breakerTripFailures = 5
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Tokens     TokenSource
	Log        *logger.Logger
	HTTPClient *http.Client // optional; overrides Timeout
}

// Client issues authenticated and unauthenticated REST calls.
type Client struct {
	base    string
	http    *http.Client
	tokens  TokenSource
	breaker *gobreaker.CircuitBreaker
	log     *logger.Logger
}

// New builds a Client for opts.BaseURL.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	c := &Client{
		base:   strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		http:   hc,
		tokens: opts.Tokens,
		log:    opts.Log,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    breakerName,
		Timeout: breakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripFailures
		},
		IsSuccessful: func(err error) bool { return !unhealthy(err) },
		OnStateChange: func(name string, from, to gobreaker.State) {
			if c.log != nil {
				c.log.Infow("gateway_breaker_state", "name", name, "from", from.String(), "to", to.String())
			}
		},
	})
	return c
}

// unhealthy reports whether err says the backend is down: no response at all, or a 5xx.
// 4xx answers and undecodable 2xx bodies come from a live backend.
func unhealthy(err error) bool {
	if errors.Is(err, ErrNetwork) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code >= http.StatusInternalServerError
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.base }

// Login posts credentials and returns the issued token.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (models.AuthResponse, error) {
	var out models.AuthResponse
	err := c.do(ctx, http.MethodPost, gm.PathLogin, nil, req, false, &out)
	return out, err
}

// Register creates an account; the backend logs the user in on success.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (models.AuthResponse, error) {
	var out models.AuthResponse
	err := c.do(ctx, http.MethodPost, gm.PathRegister, nil, req, false, &out)
	return out, err
}

// ForgotPassword asks the backend to send a reset token.
func (c *Client) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) (models.MessageResponse, error) {
	var out models.MessageResponse
	err := c.do(ctx, http.MethodPost, gm.PathForgotPassword, nil, req, false, &out)
	return out, err
}

// ResetPassword sets a new password using a reset token.
func (c *Client) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) (models.MessageResponse, error) {
	var out models.MessageResponse
	err := c.do(ctx, http.MethodPost, gm.PathResetPassword, nil, req, false, &out)
	return out, err
}

// RecentMessages fetches the latest readings; the polling fallback of the realtime feed.
func (c *Client) RecentMessages(ctx context.Context) ([]models.GreenhouseMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, gm.PathRecentMessages, nil, nil, true, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return []models.GreenhouseMessage{}, nil
	}
	return models.DecodeGreenhouseMessages(raw)
}

// PublishCustom forwards payload to an actuator topic, e.g. an irrigation sector setpoint.
func (c *Client) PublishCustom(ctx context.Context, topic string, qos int, payload any) error {
	q := url.Values{}
	q.Set("topic", topic)
	q.Set("qos", strconv.Itoa(qos))
	return c.do(ctx, http.MethodPost, gm.PathPublishCustom, q, payload, true, nil)
}

// do runs one request through the circuit breaker and decodes a 2xx body into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, auth bool, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, query, body, auth, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	if err != nil && c.log != nil {
		c.log.Debugw("gateway_request_failed", "method", method, "path", path, "err", err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body any, auth bool, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body, auth)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: string(data), Message: extractMessage(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any, auth bool) (*http.Request, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", path, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if auth && c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("load token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// extractMessage pulls a human readable message out of an error body.
// Accepts {"message": ...}, {"error": ...} or plain text.
func extractMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	if trimmed[0] == '{' {
		var m struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(trimmed, &m); err == nil {
			if m.Message != "" {
				return m.Message
			}
			return m.Error
		}
	}
	const maxPlain = 200
	s := string(trimmed)
	if len(s) > maxPlain {
		s = s[:maxPlain]
	}
	return s
}
