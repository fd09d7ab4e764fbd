// Package observable holds a single value that one owner mutates and many readers watch.
package observable

import "sync"

// Value is a thread-safe slot. Subscribers receive the latest value only:
// intermediate updates are conflated when a subscriber falls behind.
type Value[T any] struct {
	mu   sync.RWMutex
	cur  T
	subs map[int]chan T
	next int
}

// New returns a Value holding initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{cur: initial, subs: make(map[int]chan T)}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cur
}

// Set replaces the current value and notifies subscribers.
func (v *Value[T]) Set(val T) {
	v.Update(func(T) T { return val })
}

// Update applies fn atomically and returns the new value.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cur = fn(v.cur)
	for _, ch := range v.subs {
		offerLatest(ch, v.cur)
	}
	return v.cur
}

// Subscribe returns a channel primed with the current value and a cancel func
// that closes it. Cancel is idempotent.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.next
	v.next++
	ch := make(chan T, 1)
	ch <- v.cur
	v.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			delete(v.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// offerLatest replaces any undelivered value with val. Callers hold v.mu.
func offerLatest[T any](ch chan T, val T) {
	select {
	case <-ch:
	default:
	}
	ch <- val
}
