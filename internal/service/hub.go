package service

import "sync"

const defaultSubscriberBuffer = 32

// Hub fans encoded messages out to realtime subscribers.
// A subscriber that falls behind loses messages rather than stalling the others.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]chan []byte
	next int
	buf  int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{subs: make(map[int]chan []byte), buf: buffer}
}

// Subscribe registers a subscriber. cancel closes the channel and is idempotent.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan []byte, h.buf)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish offers body to every subscriber and returns how many accepted it.
func (h *Hub) Publish(body []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, ch := range h.subs {
		select {
		case ch <- body:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
