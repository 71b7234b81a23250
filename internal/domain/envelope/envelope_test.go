package envelope

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Strob0t/CoachForge/internal/domain"
)

func TestNewRequestAssignsFreshIDs(t *testing.T) {
	seen := make(map[string]bool)
	for range 50 {
		m, err := NewRequest(ServiceOrchestrator, ServiceMood, AnalyzeMood{Task: TaskAnalyzeMood, Text: "hi"}, Context{UserID: "u1"})
		if err != nil {
			t.Fatalf("NewRequest: %v", err)
		}
		if m.ID == "" || seen[m.ID] {
			t.Fatalf("message id %q empty or reused", m.ID)
		}
		seen[m.ID] = true
		if m.Kind != KindRequest {
			t.Errorf("kind = %q, want request", m.Kind)
		}
	}
}

func TestWireFieldNames(t *testing.T) {
	m, err := NewRequest(ServiceOrchestrator, ServiceSpeech, TranscribeAudio{Task: TaskTranscribeAudio, AudioPath: "a.wav"}, Context{UserID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"message_id", "type", "from_agent", "to_agent", "payload", "context"} {
		if _, ok := generic[k]; !ok {
			t.Errorf("missing wire field %q in %s", k, raw)
		}
	}
	if got := generic["context"].(map[string]any)["user_id"]; got != "u1" {
		t.Errorf("context.user_id = %v, want u1", got)
	}
}

func TestReplyKeepsContextAndTargetsSender(t *testing.T) {
	req, _ := NewRequest(ServiceInterface, ServiceOrchestrator, ProcessUserInput{Task: TaskProcessUserInput}, Context{UserID: "u9"})
	resp, err := req.NewReply(ServiceOrchestrator, Reply{Status: StatusOK})
	if err != nil {
		t.Fatal(err)
	}
	if resp.ID == req.ID {
		t.Error("reply reused the request id")
	}
	if resp.Receiver != ServiceInterface || resp.Kind != KindResponse {
		t.Errorf("reply = %+v", resp)
	}
	if resp.Context.UserID != "u9" {
		t.Errorf("context not propagated: %+v", resp.Context)
	}
}

func TestTask(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"present", `{"task":"process-user-input"}`, TaskProcessUserInput},
		{"missing", `{"user_input":"x"}`, ""},
		{"not object", `[1,2]`, ""},
		{"empty", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Message{Payload: json.RawMessage(tt.payload)}
			if got := m.Task(); got != tt.want {
				t.Errorf("Task() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := (&Message{Kind: KindRequest}).Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("missing payload: err = %v", err)
	}
	if err := (&Message{Kind: "gossip", Payload: json.RawMessage(`{}`)}).Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("bad kind: err = %v", err)
	}
	if err := (&Message{Kind: KindRequest, Payload: json.RawMessage(`{}`)}).Validate(); err != nil {
		t.Errorf("valid message: %v", err)
	}
}

func TestDecodeReplyBranchesOnStatus(t *testing.T) {
	ok := &Message{Payload: json.RawMessage(`{"status":"ok","answer":"drink water"}`)}
	r, err := DecodeReply[CoachReply](ok)
	if err != nil {
		t.Fatalf("DecodeReply: %v", err)
	}
	if r.Answer != "drink water" {
		t.Errorf("answer = %q", r.Answer)
	}

	failed := &Message{Payload: json.RawMessage(`{"status":"error","message":"boom","answer":"ignored"}`)}
	r, err = DecodeReply[CoachReply](failed)
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("err = %v, want ErrStatus", err)
	}
	if r.Answer != "" {
		t.Errorf("fields trusted on error reply: %+v", r)
	}

	missing := &Message{Payload: json.RawMessage(`{"answer":"x"}`)}
	if _, err := DecodeReply[CoachReply](missing); !errors.Is(err, ErrStatus) {
		t.Errorf("missing status: err = %v", err)
	}

	malformed := &Message{Payload: json.RawMessage(`{"status":`)}
	if _, err := DecodeReply[CoachReply](malformed); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("malformed: err = %v", err)
	}
}

func TestTurnReplyFlattensResult(t *testing.T) {
	uid := "u1"
	reply := TurnReply{Reply: Reply{Status: StatusOK, Task: TaskProcessUserInput}, UserID: &uid}
	raw, err := json.Marshal(reply)
	if err != nil {
		t.Fatal(err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"status", "task", "user_id", "mood_state", "coach_answer", "speech_transcription", "nutrition_result", "vision_result", "called_services"} {
		if _, ok := generic[k]; !ok {
			t.Errorf("missing reply field %q in %s", k, raw)
		}
	}
}
