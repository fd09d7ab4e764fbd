package realtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	gm "greenhouse_monitor"
	"greenhouse_monitor/internal/logger"
	"greenhouse_monitor/internal/wsconn"

	"github.com/go-stomp/stomp/v3"
	"github.com/gorilla/websocket"
)

var errReceiptTimeout = errors.New("disconnect receipt timed out")

// StompOptions are the timing knobs of the STOMP transport.
type StompOptions struct {
	PingInterval      time.Duration
	ConnectTimeout    time.Duration
	ReceiptTimeout    time.Duration
	DisconnectTimeout time.Duration
	Header            http.Header // extra handshake headers, e.g. Authorization
}

func (o StompOptions) withDefaults() StompOptions {
	if o.PingInterval <= 0 {
		o.PingInterval = gm.DefaultPingInterval
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = gm.DefaultConnectTimeout
	}
	if o.ReceiptTimeout <= 0 {
		o.ReceiptTimeout = gm.DefaultReceiptTimeout
	}
	if o.DisconnectTimeout <= 0 {
		o.DisconnectTimeout = gm.DefaultDisconnectTimeout
	}
	return o
}

// StompTransport speaks STOMP over a websocket. Subscriptions use auto ack and
// no receipts; only DISCONNECT waits for one.
type StompTransport struct {
	opts   StompOptions
	dialer *websocket.Dialer
	log    *logger.Logger
}

func NewStompTransport(opts StompOptions, log *logger.Logger) *StompTransport {
	opts = opts.withDefaults()
	return &StompTransport{
		opts:   opts,
		dialer: &websocket.Dialer{HandshakeTimeout: opts.ConnectTimeout, Proxy: http.ProxyFromEnvironment},
		log:    log,
	}
}

var _ Transport = (*StompTransport)(nil)

type connectResult struct {
	conn *stomp.Conn
	err  error
}

// Connect dials the websocket and completes the STOMP handshake within ConnectTimeout.
func (t *StompTransport) Connect(ctx context.Context, rawURL string) (Session, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse realtime url: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.opts.ConnectTimeout)
	defer cancel()

	ws, resp, err := t.dialer.DialContext(ctx, rawURL, t.opts.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	conn := wsconn.New(ws)
	conn.CloseTimeout = t.opts.DisconnectTimeout

	ch := make(chan connectResult, 1)
	go func() {
		c, err := stomp.Connect(conn,
			stomp.ConnOpt.Host(u.Hostname()),
			stomp.ConnOpt.HeartBeat(0, 0), // liveness is covered by websocket pings
		)
		ch <- connectResult{conn: c, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("stomp connect: %w", r.err)
		}
		conn.StartPing(t.opts.PingInterval)
		if t.log != nil {
			t.log.Debugw("stomp_connected", "url", rawURL)
		}
		return &stompSession{conn: r.conn, ws: conn, opts: t.opts}, nil
	case <-ctx.Done():
		_ = conn.Close()
		return nil, fmt.Errorf("stomp connect: %w", ctx.Err())
	}
}

type stompSession struct {
	conn *stomp.Conn
	ws   *wsconn.Conn
	opts StompOptions
}

func (s *stompSession) Subscribe(topic string) (Subscription, error) {
	sub, err := s.conn.Subscribe(topic, stomp.AckAuto)
	if err != nil {
		return nil, err
	}
	return &stompSubscription{sub: sub}, nil
}

// Disconnect sends DISCONNECT, waits up to ReceiptTimeout for the receipt,
// then closes the websocket within DisconnectTimeout.
func (s *stompSession) Disconnect(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- s.conn.Disconnect() }()

	var err error
	timer := time.NewTimer(s.opts.ReceiptTimeout)
	defer timer.Stop()
	select {
	case err = <-done:
	case <-timer.C:
		err = errReceiptTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}

	if cerr := s.ws.CloseWithin(s.opts.DisconnectTimeout); err == nil {
		err = ignoreClosed(cerr)
	}
	return err
}

type stompSubscription struct {
	sub *stomp.Subscription
}

func (s *stompSubscription) Next(ctx context.Context) ([]byte, error) {
	select {
	case msg, ok := <-s.sub.C:
		if !ok {
			return nil, ErrSubscriptionClosed
		}
		if msg.Err != nil {
			return nil, msg.Err
		}
		return msg.Body, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *stompSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

// ignoreClosed drops errors that only say the socket was already gone.
func ignoreClosed(err error) error {
	if err == nil || errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
