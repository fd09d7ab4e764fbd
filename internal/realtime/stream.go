package realtime

import (
	"context"
	"errors"
	"iter"
	"sync"

	"greenhouse_monitor/internal/models"
)

// ErrStreamClosed is returned by Next after the consumer closed the stream.
var ErrStreamClosed = errors.New("realtime: message stream closed")

// MessageStream is a non-restartable sequence of decoded messages.
// The first error is terminal and returned by every later Next.
type MessageStream struct {
	m   *Manager
	sub Subscription
	gen uint64

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	closed    chan struct{}
}

func newMessageStream(m *Manager, sub Subscription, gen uint64) *MessageStream {
	return &MessageStream{m: m, sub: sub, gen: gen, closed: make(chan struct{})}
}

// Next blocks for the next message. A frame that fails to decode ends the stream.
// Connection errors mark the Manager disconnected before they are returned;
// context cancellation and Close end the stream without touching the state.
func (s *MessageStream) Next(ctx context.Context) (models.GreenhouseMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.GreenhouseMessage{}, s.err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	raw, err := s.sub.Next(ctx)
	if err == nil {
		msg, derr := models.DecodeGreenhouseMessage(raw)
		if derr == nil {
			s.m.countMessage(s.gen)
			return msg, nil
		}
		err = derr
	}

	switch {
	case s.isClosed():
		err = ErrStreamClosed
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// caller stopped consuming
	default:
		s.m.fail(s.gen, err)
	}
	s.err = err
	return models.GreenhouseMessage{}, err
}

// All ranges over the stream. The terminal error, if any, is yielded last;
// breaking out of the loop closes the stream.
func (s *MessageStream) All(ctx context.Context) iter.Seq2[models.GreenhouseMessage, error] {
	return func(yield func(models.GreenhouseMessage, error) bool) {
		for {
			msg, err := s.Next(ctx)
			if err != nil {
				if !errors.Is(err, ErrStreamClosed) {
					yield(models.GreenhouseMessage{}, err)
				}
				return
			}
			if !yield(msg, nil) {
				_ = s.Close()
				return
			}
		}
	}
}

// Close unsubscribes and ends the stream. Safe to call more than once.
func (s *MessageStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.m.current(s.gen) {
			err = s.sub.Unsubscribe()
		}
	})
	return err
}

func (s *MessageStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
