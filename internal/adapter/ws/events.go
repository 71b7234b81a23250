package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Strob0t/CoachForge/internal/domain/turn"
)

// TurnStartedEvent is broadcast once the router decision is known.
type TurnStartedEvent struct {
	TurnID   string            `json:"turn_id"`
	UserID   string            `json:"user_id,omitempty"`
	Services []turn.RawCommand `json:"services"`
}

// WorkerResultEvent is broadcast after each worker call.
type WorkerResultEvent struct {
	TurnID     string `json:"turn_id"`
	UserID     string `json:"user_id,omitempty"`
	Step       string `json:"step"`
	OK         bool   `json:"ok"`
	DurationMS int64  `json:"duration_ms"`
}

// TurnCompletedEvent is broadcast with the assembled result.
type TurnCompletedEvent struct {
	TurnID      string      `json:"turn_id"`
	UserID      string      `json:"user_id,omitempty"`
	Result      turn.Result `json:"result"`
	CompletedAt time.Time   `json:"completed_at"`
}

func (e TurnStartedEvent) user() string   { return e.UserID }
func (e WorkerResultEvent) user() string  { return e.UserID }
func (e TurnCompletedEvent) user() string { return e.UserID }

type userScoped interface{ user() string }

// BroadcastEvent marshals a typed event and broadcasts it. Events that carry a
// user ID only reach connections of that user or unfiltered ones.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	msg := Message{Type: eventType, Payload: json.RawMessage(data)}
	if scoped, ok := payload.(userScoped); ok && scoped.user() != "" {
		h.BroadcastToUser(ctx, scoped.user(), msg)
		return
	}
	h.Broadcast(ctx, msg)
}
