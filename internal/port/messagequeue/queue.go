// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a durable handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, consumer, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subjects used by CoachForge.
const (
	SubjectTurnCompleted = "turns.completed" // orchestrator → memory: assembled turn
	SubjectTurnFailed    = "turns.failed"    // orchestrator: turn rejected before routing
)

// Nop is a Queue that accepts and discards everything. It stands in when no
// broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, []byte) error { return nil }
func (Nop) Subscribe(context.Context, string, string, Handler) (func(), error) {
	return func() {}, nil
}
func (Nop) Drain() error      { return nil }
func (Nop) Close() error      { return nil }
func (Nop) IsConnected() bool { return false }
