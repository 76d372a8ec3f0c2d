package messaging

import (
	"context"
)

// Broker is the outbound event channel the worker publishes engine events
// on. The portal consumes them to push live queue updates to browsers.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
