package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"greenhouse_monitor/internal/gateway"
	"greenhouse_monitor/internal/logger"
	"greenhouse_monitor/internal/models"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultPollInterval   = 5 * time.Second
	DefaultPollMaxBackoff = 30 * time.Second
)

// RecentSource is the HTTP side of the feed, usually *gateway.Client.
type RecentSource interface {
	RecentMessages(ctx context.Context) ([]models.GreenhouseMessage, error)
}

// Poller is the fallback feed used once the realtime stream has ended.
// It delivers each message at most once, keyed by greenhouse id and timestamp.
type Poller struct {
	src        RecentSource
	interval   time.Duration
	maxBackoff time.Duration
	seen       *deduper
	log        *logger.Logger
}

func NewPoller(src RecentSource, interval, maxBackoff time.Duration, log *logger.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxBackoff <= 0 {
		maxBackoff = DefaultPollMaxBackoff
	}
	return &Poller{
		src:        src,
		interval:   interval,
		maxBackoff: maxBackoff,
		seen:       newDeduper(0, 0, nil),
		log:        log,
	}
}

// MarkSeen records messages that already reached the consumer, e.g. through the stream.
func (p *Poller) MarkSeen(msgs ...models.GreenhouseMessage) {
	for _, m := range msgs {
		p.seen.firstSeen(m.Key())
	}
}

// Poll fetches the recent messages once, retrying transient failures, and
// returns the ones not delivered before in server order.
// Client errors (4xx) are not retried.
func (p *Poller) Poll(ctx context.Context) ([]models.GreenhouseMessage, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = p.maxBackoff
	bo.MaxElapsedTime = 0

	var batch []models.GreenhouseMessage
	op := func() error {
		msgs, err := p.src.RecentMessages(ctx)
		if err != nil {
			var se *gateway.StatusError
			if errors.As(err, &se) && se.Code < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}
			return err
		}
		batch = msgs
		return nil
	}
	notify := func(err error, wait time.Duration) {
		if p.log != nil {
			p.log.Warnw("poll_failed", "err", err, "retry_in", wait)
		}
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, fmt.Errorf("poll recent messages: %w", err)
	}

	fresh := batch[:0:0]
	for _, m := range batch {
		if p.seen.firstSeen(m.Key()) {
			fresh = append(fresh, m)
		}
	}
	return fresh, nil
}

// Run polls every interval and hands new messages to sink until ctx ends,
// a poll fails permanently or sink returns an error.
func (p *Poller) Run(ctx context.Context, sink func(models.GreenhouseMessage) error) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		msgs, err := p.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		for _, m := range msgs {
			if err := sink(m); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
