package messagequeue

import "time"

// TurnCompletedPayload is the schema for turns.completed messages.
type TurnCompletedPayload struct {
	TurnID      string    `json:"turn_id"`
	UserID      string    `json:"user_id,omitempty"`
	UserInput   string    `json:"user_input"`
	CoachAnswer *string   `json:"coach_answer"`
	Services    []string  `json:"services"`
	CompletedAt time.Time `json:"completed_at"`
}

// TurnFailedPayload is the schema for turns.failed messages.
type TurnFailedPayload struct {
	TurnID string `json:"turn_id"`
	UserID string `json:"user_id,omitempty"`
	Task   string `json:"task"`
	Error  string `json:"error"`
}
