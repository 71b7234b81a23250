package messagequeue

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		data    string
		wantErr string
	}{
		{
			name:    "valid turn completed",
			subject: SubjectTurnCompleted,
			data:    `{"turn_id":"t1","user_id":"u1","user_input":"hi","coach_answer":"hello","services":["coaching/coach-response"],"completed_at":"2026-01-02T03:04:05Z"}`,
		},
		{
			name:    "null answer is fine",
			subject: SubjectTurnCompleted,
			data:    `{"turn_id":"t1","user_input":"","coach_answer":null,"services":[]}`,
		},
		{
			name:    "missing turn id",
			subject: SubjectTurnCompleted,
			data:    `{"user_input":"hi"}`,
			wantErr: "turn_id is required",
		},
		{
			name:    "wrong field type",
			subject: SubjectTurnCompleted,
			data:    `{"turn_id":42}`,
			wantErr: "schema validation failed",
		},
		{
			name:    "valid turn failed",
			subject: SubjectTurnFailed,
			data:    `{"turn_id":"t1","task":"dance","error":"unknown task"}`,
		},
		{
			name:    "invalid json",
			subject: SubjectTurnCompleted,
			data:    `{"turn_id":`,
			wantErr: "invalid JSON",
		},
		{
			name:    "unknown subject passes",
			subject: "turns.other",
			data:    `{"anything":true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.subject, []byte(tt.data))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
