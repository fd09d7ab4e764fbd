package handlers

import (
	"errors"
	"io"
	"strconv"
	"sync"
	"time"

	gm "greenhouse_monitor"
	"greenhouse_monitor/internal/logger"
	"greenhouse_monitor/internal/service"
	"greenhouse_monitor/internal/wsconn"

	"github.com/gin-gonic/gin"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
)

// Send/receive timing configuration and frame size limits.
const (
	pingPeriod   = 20 * time.Second
	maxFrameSize = 1 << 16 // 64 KB
	serverName   = "greenhouse-sim/1.0"
	stompVersion = "1.2"
)

var (
	errNotConnected     = errors.New("CONNECT expected")
	errAlreadyConnected = errors.New("already connected")
	errMissingID        = errors.New("subscription id is required")
	errDuplicateID      = errors.New("subscription id already in use")
	errUnknownDest      = errors.New("unknown destination")
)

// @Summary      Realtime feed (STOMP 1.2 over WebSocket)
// @Description  SUBSCRIBE to /topic/greenhouse/messages to receive every stored reading as a JSON MESSAGE frame.
// @Tags         realtime
// @Router       /ws/greenhouse-native [get]
func (h *Handler) realtimeConnect(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	ws.SetReadLimit(maxFrameSize)

	conn := wsconn.New(ws)
	defer func() { _ = conn.Close() }()
	conn.StartPing(pingPeriod)

	newBrokerSession(conn, h.services.Hub, h.log).serve()
}

// brokerSession is the server side of one STOMP connection.
type brokerSession struct {
	id     string
	reader *frame.Reader
	hub    service.Broadcaster
	log    *logger.Logger

	writeMu sync.Mutex
	writer  *frame.Writer

	connected bool
	subs      map[string]func()
	wg        sync.WaitGroup
}

func newBrokerSession(rw io.ReadWriter, hub service.Broadcaster, log *logger.Logger) *brokerSession {
	return &brokerSession{
		id:     uuid.NewString(),
		reader: frame.NewReader(rw),
		writer: frame.NewWriter(rw),
		hub:    hub,
		log:    log,
		subs:   make(map[string]func()),
	}
}

// serve reads client frames until DISCONNECT, a protocol error or a broken socket.
func (s *brokerSession) serve() {
	defer func() {
		for _, cancel := range s.subs {
			cancel()
		}
		s.wg.Wait()
	}()

	for {
		f, err := s.reader.Read()
		if err != nil {
			if s.log != nil && !errors.Is(err, io.EOF) {
				s.log.Infow("stomp_read_closed", "session", s.id, "err", err)
			}
			return
		}
		if f == nil {
			continue // heart-beat
		}

		done, err := s.handle(f)
		if err != nil {
			s.sendError(err, f)
			return
		}
		if receipt := f.Header.Get("receipt"); receipt != "" {
			if err := s.write(frame.New("RECEIPT", "receipt-id", receipt)); err != nil {
				return
			}
		}
		if done {
			return
		}
	}
}

// handle applies one client frame and reports whether the session is over.
func (s *brokerSession) handle(f *frame.Frame) (bool, error) {
	if !s.connected && f.Command != "CONNECT" && f.Command != "STOMP" {
		return false, errNotConnected
	}

	switch f.Command {
	case "CONNECT", "STOMP":
		if s.connected {
			return false, errAlreadyConnected
		}
		s.connected = true
		if s.log != nil {
			s.log.Debugw("stomp_connected", "session", s.id, "host", f.Header.Get("host"))
		}
		return false, s.write(frame.New("CONNECTED",
			"version", stompVersion,
			"heart-beat", "0,0",
			"server", serverName,
			"session", s.id,
		))
	case "SUBSCRIBE":
		return false, s.subscribe(f.Header.Get("id"), f.Header.Get("destination"))
	case "UNSUBSCRIBE":
		if cancel, ok := s.subs[f.Header.Get("id")]; ok {
			cancel()
			delete(s.subs, f.Header.Get("id"))
		}
		return false, nil
	case "DISCONNECT":
		return true, nil
	default:
		return false, errors.New("unsupported command " + f.Command)
	}
}

func (s *brokerSession) subscribe(id, dest string) error {
	if id == "" {
		return errMissingID
	}
	if _, exists := s.subs[id]; exists {
		return errDuplicateID
	}
	if dest != gm.MessagesTopic {
		return errUnknownDest
	}

	ch, cancel := s.hub.Subscribe()
	s.subs[id] = cancel
	s.wg.Add(1)
	go s.forward(id, dest, ch)
	if s.log != nil {
		s.log.Debugw("stomp_subscribed", "session", s.id, "subscription", id)
	}
	return nil
}

// forward writes hub messages as MESSAGE frames until the subscription ends.
func (s *brokerSession) forward(subID, dest string, ch <-chan []byte) {
	defer s.wg.Done()
	for body := range ch {
		f := frame.New("MESSAGE",
			"destination", dest,
			"subscription", subID,
			"message-id", uuid.NewString(),
			"content-type", "application/json",
		)
		f.Header.Set("content-length", strconv.Itoa(len(body)))
		f.Body = body
		if err := s.write(f); err != nil {
			// the read loop notices the broken socket and cleans up
			for range ch {
			}
			return
		}
	}
}

func (s *brokerSession) sendError(cause error, f *frame.Frame) {
	if s.log != nil {
		s.log.Infow("stomp_protocol_error", "session", s.id, "command", f.Command, "err", cause)
	}
	ef := frame.New("ERROR", "message", cause.Error())
	if receipt := f.Header.Get("receipt"); receipt != "" {
		ef.Header.Set("receipt-id", receipt)
	}
	_ = s.write(ef)
}

func (s *brokerSession) write(f *frame.Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writer.Write(f)
}
