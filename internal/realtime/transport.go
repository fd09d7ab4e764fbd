package realtime

import (
	"context"
	"errors"
)

// ErrSubscriptionClosed is returned by Subscription.Next once the subscription ended.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Transport opens message-oriented duplex sessions to the realtime endpoint.
type Transport interface {
	Connect(ctx context.Context, url string) (Session, error)
}

// Session is one live connection.
type Session interface {
	Subscribe(topic string) (Subscription, error)
	// Disconnect asks for a graceful close and releases the session either way.
	Disconnect(ctx context.Context) error
}

// Subscription delivers raw frame bodies of one topic in arrival order.
type Subscription interface {
	Next(ctx context.Context) ([]byte, error)
	Unsubscribe() error
}
