package realtime

import (
	"sync"
	"time"
)

const (
	defaultSeenTTL = 10 * time.Minute
	defaultSeenMax = 10000
)

// deduper remembers keys for a TTL, bounded to roughly max entries.
type deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	now  func() time.Time
	seen map[string]time.Time
}

func newDeduper(ttl time.Duration, max int, now func() time.Time) *deduper {
	if ttl <= 0 {
		ttl = defaultSeenTTL
	}
	if max <= 0 {
		max = defaultSeenMax
	}
	if now == nil {
		now = time.Now
	}
	return &deduper{ttl: ttl, max: max, now: now, seen: make(map[string]time.Time)}
}

// firstSeen records key and reports whether it was unknown or expired.
func (d *deduper) firstSeen(key string) bool {
	if key == "" {
		return true
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if exp, ok := d.seen[key]; ok && now.Before(exp) {
		return false
	}
	d.seen[key] = now.Add(d.ttl)
	if len(d.seen) > d.max {
		for k, exp := range d.seen {
			if now.After(exp) {
				delete(d.seen, k)
			}
			if len(d.seen) <= d.max {
				break
			}
		}
	}
	return true
}
