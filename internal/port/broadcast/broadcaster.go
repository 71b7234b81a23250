// Package broadcast defines the port for broadcasting real-time events to connected clients.
package broadcast

import "context"

// Event types sent to dashboard clients.
const (
	EventTurnStarted   = "turn.started"
	EventWorkerResult  = "turn.worker"
	EventTurnCompleted = "turn.completed"
)

// Broadcaster sends real-time events to all connected clients.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected clients.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// Nop discards all events.
type Nop struct{}

// BroadcastEvent implements Broadcaster.
func (Nop) BroadcastEvent(context.Context, string, any) {}
