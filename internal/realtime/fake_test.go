package realtime

import (
	"context"
	"errors"
	"sync"
)

type fakeTransport struct {
	mu       sync.Mutex
	connects int
	err      error // returned by the next Connect calls
	sessions []*fakeSession
}

func (t *fakeTransport) Connect(ctx context.Context, url string) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connects++
	if t.err != nil {
		return nil, t.err
	}
	s := &fakeSession{}
	t.sessions = append(t.sessions, s)
	return s, nil
}

func (t *fakeTransport) connectCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects
}

func (t *fakeTransport) last() *fakeSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sessions) == 0 {
		return nil
	}
	return t.sessions[len(t.sessions)-1]
}

type fakeSession struct {
	mu            sync.Mutex
	subscribes    int
	subscribeErr  error
	disconnects   int
	disconnectErr error
	subs          []*fakeSubscription
}

func (s *fakeSession) Subscribe(topic string) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribes++
	if s.subscribeErr != nil {
		return nil, s.subscribeErr
	}
	sub := &fakeSubscription{topic: topic, frames: make(chan fakeFrame, 16), done: make(chan struct{})}
	s.subs = append(s.subs, sub)
	return sub, nil
}

func (s *fakeSession) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
	for _, sub := range s.subs {
		sub.end()
	}
	return s.disconnectErr
}

func (s *fakeSession) disconnectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnects
}

type fakeFrame struct {
	body []byte
	err  error
}

type fakeSubscription struct {
	topic        string
	frames       chan fakeFrame
	once         sync.Once
	done         chan struct{}
	unsubscribed bool
}

func (s *fakeSubscription) push(body string) { s.frames <- fakeFrame{body: []byte(body)} }

func (s *fakeSubscription) fail(err error) { s.frames <- fakeFrame{err: err} }

func (s *fakeSubscription) end() { s.once.Do(func() { close(s.done) }) }

func (s *fakeSubscription) Next(ctx context.Context) ([]byte, error) {
	select {
	case f := <-s.frames:
		return f.body, f.err
	case <-s.done:
		return nil, ErrSubscriptionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSubscription) Unsubscribe() error {
	s.unsubscribed = true
	s.end()
	return nil
}

var errBoom = errors.New("boom")
