// Package messagequeue defines the port the domain event bus publishes to.
package messagequeue

import "context"

// Handler processes one message. Returning an error leaves the message
// unacknowledged so it is redelivered.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue carries domain events between TuneForge instances.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe delivers messages published after the call to handler.
	// Subject may use NATS wildcards. The returned function unsubscribes.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain flushes pending publishes and subscriptions, then closes.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}
