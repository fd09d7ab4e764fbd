// Package realtime manages the STOMP-over-WebSocket feed of greenhouse readings
// and its HTTP polling fallback.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	gm "greenhouse_monitor"
	"greenhouse_monitor/internal/logger"
	"greenhouse_monitor/internal/models"
	"greenhouse_monitor/internal/observable"
)

var (
	// ErrNotConnected is returned when subscribing without a live session.
	ErrNotConnected = errors.New("realtime: not connected, call Connect first")

	errUnsupportedScheme = errors.New("realtime: base url must be http, https, ws or wss")
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	BaseURL        string
	Topic          string        // defaults to MessagesTopic
	ReconnectDelay time.Duration // defaults to DefaultReconnectDelay
	Log            *logger.Logger
	Clock          func() time.Time
}

// Manager owns exactly one logical realtime session at a time and publishes its ConnectionState.
// Connect, Disconnect and Reconnect must not overlap; the Manager does not serialize them.
type Manager struct {
	transport      Transport
	url            string
	topic          string
	reconnectDelay time.Duration
	log            *logger.Logger
	now            func() time.Time

	state *observable.Value[models.ConnectionState]

	mu      sync.Mutex // guards session and gen, and orders state writes that depend on them
	session Session
	gen     uint64 // bumped whenever the session is replaced or dropped
}

// NewManager builds a Manager; it fails only for a base URL it cannot rewrite.
func NewManager(t Transport, opts ManagerOptions) (*Manager, error) {
	wsURL, err := WebSocketURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		transport:      t,
		url:            wsURL,
		topic:          opts.Topic,
		reconnectDelay: opts.ReconnectDelay,
		log:            opts.Log,
		now:            opts.Clock,
		state:          observable.New(models.ConnectionState{}),
	}
	if m.topic == "" {
		m.topic = gm.MessagesTopic
	}
	if m.reconnectDelay <= 0 {
		m.reconnectDelay = gm.DefaultReconnectDelay
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// WebSocketURL rewrites an http(s) base URL to its ws(s) equivalent and appends the realtime path.
func WebSocketURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("realtime: parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", errUnsupportedScheme
	}
	u.Path = strings.TrimRight(u.Path, "/") + gm.RealtimePath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// URL returns the realtime endpoint the Manager connects to.
func (m *Manager) URL() string { return m.url }

// State returns a snapshot of the connection state.
func (m *Manager) State() models.ConnectionState { return m.state.Get() }

// Subscribe watches the connection state. Call cancel when done.
func (m *Manager) Subscribe() (<-chan models.ConnectionState, func()) { return m.state.Subscribe() }

// Connect opens a new session, replacing any previous one.
// Failures are recorded in the state and returned; they count as a reconnect attempt.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	old := m.session
	m.session = nil
	m.gen++
	m.mu.Unlock()
	if old != nil {
		m.closeSession(ctx, old)
	}

	sess, err := m.transport.Connect(ctx, m.url)
	if err != nil {
		m.state.Update(func(s models.ConnectionState) models.ConnectionState {
			s.IsConnected = false
			s.ConnectionEstablishedAt = nil
			s.LastError = "connection failed: " + err.Error()
			s.ReconnectAttempts++
			return s
		})
		if m.log != nil {
			m.log.Warnw("realtime_connect_failed", "url", m.url, "err", err)
		}
		return fmt.Errorf("connect %s: %w", m.url, err)
	}

	established := m.now()
	m.mu.Lock()
	m.session = sess
	m.gen++
	m.state.Update(func(s models.ConnectionState) models.ConnectionState {
		s.IsConnected = true
		s.ConnectionEstablishedAt = &established
		s.MessagesReceived = 0
		s.LastError = ""
		return s
	})
	m.mu.Unlock()
	if m.log != nil {
		m.log.Infow("realtime_connected", "url", m.url)
	}
	return nil
}

// SubscribeToMessages subscribes to the message topic of the live session.
// Without one it returns ErrNotConnected and touches no transport.
func (m *Manager) SubscribeToMessages(ctx context.Context) (*MessageStream, error) {
	m.mu.Lock()
	sess, gen := m.session, m.gen
	m.mu.Unlock()

	if sess == nil || !m.state.Get().IsConnected {
		m.state.Update(func(s models.ConnectionState) models.ConnectionState {
			s.LastError = ErrNotConnected.Error()
			return s
		})
		if m.log != nil {
			m.log.Errorw("realtime_subscribe_without_session")
		}
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub, err := sess.Subscribe(m.topic)
	if err != nil {
		m.fail(gen, err)
		return nil, fmt.Errorf("subscribe %s: %w", m.topic, err)
	}
	if m.log != nil {
		m.log.Debugw("realtime_subscribed", "topic", m.topic)
	}
	return newMessageStream(m, sub, gen), nil
}

// Disconnect ends the session, if any, and always leaves the state disconnected.
// It never fails; transport errors are only logged. ReconnectAttempts is kept.
func (m *Manager) Disconnect(ctx context.Context) {
	m.mu.Lock()
	sess := m.session
	m.session = nil
	m.gen++
	m.mu.Unlock()

	if sess != nil {
		m.closeSession(ctx, sess)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Update(func(s models.ConnectionState) models.ConnectionState {
		s.IsConnected = false
		s.ConnectionEstablishedAt = nil
		s.MessagesReceived = 0
		s.LastError = ""
		return s
	})
}

// Reconnect is Disconnect, a fixed delay, then Connect. It is never triggered internally.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.Disconnect(ctx)

	timer := time.NewTimer(m.reconnectDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	return m.Connect(ctx)
}

// ResetReconnectAttempts zeroes the counter once the caller deems the connection healthy.
func (m *Manager) ResetReconnectAttempts() {
	m.state.Update(func(s models.ConnectionState) models.ConnectionState {
		s.ReconnectAttempts = 0
		return s
	})
}

func (m *Manager) closeSession(ctx context.Context, sess Session) {
	defer func() {
		if r := recover(); r != nil && m.log != nil {
			m.log.Errorw("realtime_disconnect_panic", "panic", r)
		}
	}()
	if err := sess.Disconnect(ctx); err != nil && m.log != nil {
		m.log.Infow("realtime_disconnect_failed", "err", err)
	}
}

// current reports whether gen still names the live session.
func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen && m.session != nil
}

// updateIfCurrent applies fn to the state only while gen still names the live session.
// The check and the update share m.mu, so a concurrent Connect or Disconnect
// either sees the update or makes it a no-op.
func (m *Manager) updateIfCurrent(gen uint64, fn func(models.ConnectionState) models.ConnectionState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.session == nil {
		return false
	}
	m.state.Update(fn)
	return true
}

// countMessage records one delivered message of session gen.
func (m *Manager) countMessage(gen uint64) {
	m.updateIfCurrent(gen, func(s models.ConnectionState) models.ConnectionState {
		s.MessagesReceived++
		return s
	})
}

// fail marks session gen as broken. Errors of replaced sessions are ignored.
func (m *Manager) fail(gen uint64, err error) {
	applied := m.updateIfCurrent(gen, func(s models.ConnectionState) models.ConnectionState {
		s.IsConnected = false
		s.LastError = err.Error()
		return s
	})
	if applied && m.log != nil {
		m.log.Warnw("realtime_stream_failed", "err", err)
	}
}
