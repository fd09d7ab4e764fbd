// Package wsconn exposes a websocket as a byte stream so a STOMP codec can run on top of it.
package wsconn

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait           = 10 * time.Second
	defaultCloseTimeout = time.Second
)

// Conn adapts *websocket.Conn to io.ReadWriteCloser.
// Each Write becomes one text message; Read concatenates incoming data messages.
type Conn struct {
	ws *websocket.Conn

	readMu sync.Mutex
	reader io.Reader

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
	closeErr  error

	// CloseTimeout bounds the close handshake performed by Close.
	CloseTimeout time.Duration
}

// New wraps ws. The returned Conn owns ws.
func New(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws, done: make(chan struct{}), CloseTimeout: defaultCloseTimeout}
}

func (c *Conn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for {
		if c.reader == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			c.reader = r
		}
		n, err := c.reader.Read(p)
		if errors.Is(err, io.EOF) {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// StartPing sends a websocket ping every interval until the Conn is closed.
func (c *Conn) StartPing(interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-t.C:
				if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()
}

// CloseWithin sends a close frame and closes the socket; the close frame is bounded by timeout.
func (c *Conn) CloseWithin(timeout time.Duration) error {
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeout))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// Close implements io.Closer.
func (c *Conn) Close() error {
	return c.CloseWithin(c.CloseTimeout)
}

// Done is closed once Close has been called.
func (c *Conn) Done() <-chan struct{} { return c.done }
