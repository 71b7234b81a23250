// Package envelope defines the uniform JSON message exchanged between services
// on POST /mcp, and one payload schema per task variant.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Strob0t/CoachForge/internal/domain"
)

// Kind is the message type.
type Kind string

const (
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
	KindEvent    Kind = "event"
)

// Status is the outcome carried by every response payload.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Context is side-channel metadata propagated unchanged through a turn.
type Context struct {
	UserID string `json:"user_id,omitempty"`
}

// Message is the request/response/event envelope.
type Message struct {
	ID       string          `json:"message_id"`
	Kind     Kind            `json:"type"`
	Sender   string          `json:"from_agent"`
	Receiver string          `json:"to_agent"`
	Payload  json.RawMessage `json:"payload"`
	Context  Context         `json:"context"`
}

// Reply is the status header embedded in every response payload.
type Reply struct {
	Status  Status `json:"status"`
	Task    string `json:"task,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK reports whether the reply carries status ok.
func (r Reply) OK() bool {
	return r.Status == StatusOK
}

// ErrorReply builds an error payload with a human-readable message.
func ErrorReply(format string, args ...any) Reply {
	return Reply{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// NewRequest builds a request envelope with a fresh ID.
func NewRequest(sender, receiver string, payload any, mctx Context) (*Message, error) {
	return newMessage(KindRequest, sender, receiver, payload, mctx)
}

// NewReply builds the response to m. The context is copied unchanged.
func (m *Message) NewReply(sender string, payload any) (*Message, error) {
	receiver := m.Sender
	if receiver == "" {
		receiver = "unknown"
	}
	return newMessage(KindResponse, sender, receiver, payload, m.Context)
}

func newMessage(kind Kind, sender, receiver string, payload any, mctx Context) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return &Message{
		ID:       uuid.New().String(),
		Kind:     kind,
		Sender:   sender,
		Receiver: receiver,
		Payload:  raw,
		Context:  mctx,
	}, nil
}

// Task returns the payload's task discriminator, or "" when absent.
func (m *Message) Task() string {
	var head struct {
		Task string `json:"task"`
	}
	if len(m.Payload) == 0 {
		return ""
	}
	if err := json.Unmarshal(m.Payload, &head); err != nil {
		return ""
	}
	return head.Task
}

// Validate checks the envelope fields every service relies on.
func (m *Message) Validate() error {
	if len(m.Payload) == 0 || string(m.Payload) == "null" {
		return fmt.Errorf("%w: payload is required", domain.ErrValidation)
	}
	switch m.Kind {
	case KindRequest, KindResponse, KindEvent, "":
	default:
		return fmt.Errorf("%w: unknown message type %q", domain.ErrValidation, m.Kind)
	}
	return nil
}

// Decode unmarshals the payload into the schema of its task variant.
func Decode[T any](m *Message) (T, error) {
	var v T
	if len(m.Payload) == 0 {
		return v, fmt.Errorf("%w: empty payload", domain.ErrValidation)
	}
	if err := json.Unmarshal(m.Payload, &v); err != nil {
		return v, fmt.Errorf("%w: decode payload: %v", domain.ErrValidation, err)
	}
	return v, nil
}

// ErrStatus is returned by DecodeReply when the reply carries status error.
var ErrStatus = errors.New("worker reported error")

// DecodeReply decodes a response payload and fails unless its status is ok.
// Callers must not trust any field of T when an error is returned.
func DecodeReply[T interface{ header() Reply }](m *Message) (T, error) {
	v, err := Decode[T](m)
	if err != nil {
		return v, err
	}
	h := v.header()
	if !h.OK() {
		var zero T
		if h.Message != "" {
			return zero, fmt.Errorf("%w: %s", ErrStatus, h.Message)
		}
		return zero, fmt.Errorf("%w: status %q", ErrStatus, h.Status)
	}
	return v, nil
}

func (r Reply) header() Reply { return r }
