// Package pubsub fans live events out to every server instance holding a
// websocket for the topic.
package pubsub

import (
	"context"
	"errors"
)

// ErrClosed is returned by a broker after Close.
var ErrClosed = errors.New("broker closed")

// Broker publishes payloads on named topics.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	Close() error
}

// Subscription delivers payloads published after Subscribe returned. C is
// closed when the subscription or its broker is closed. Slow readers lose
// payloads rather than block publishers.
type Subscription interface {
	C() <-chan []byte
	Close() error
}

const subscriptionBuffer = 64
