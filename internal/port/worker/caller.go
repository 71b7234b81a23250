// Package worker defines the port for calling collaborator services over the
// uniform envelope protocol.
package worker

import (
	"context"

	"github.com/Strob0t/CoachForge/internal/domain/envelope"
)

// Endpoint identifies a collaborator service.
type Endpoint struct {
	Name string // logical service name, used as envelope receiver
	URL  string // full /mcp URL
}

// Caller posts a request envelope and returns the reply envelope.
// A non-nil error means the reply could not be obtained; callers still have
// to check the reply's status before trusting its payload.
type Caller interface {
	Call(ctx context.Context, ep Endpoint, msg *envelope.Message) (*envelope.Message, error)
}
