package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/Strob0t/CoachForge/internal/domain"
	"github.com/Strob0t/CoachForge/internal/domain/envelope"
	"github.com/Strob0t/CoachForge/internal/domain/turn"
)

// TaskFunc handles one task of an /mcp endpoint. The returned value is the
// reply payload.
type TaskFunc func(ctx context.Context, msg *envelope.Message) (any, error)

// Endpoint dispatches request envelopes on their payload task.
// Task names are matched canonically, so "coach_response" reaches the
// handler of "coach-response".
type Endpoint struct {
	service   string
	tasks     map[string]TaskFunc
	onUnknown func(ctx context.Context, msg *envelope.Message, task string)
}

// NewEndpoint creates an endpoint replying as service.
func NewEndpoint(service string) *Endpoint {
	return &Endpoint{service: service, tasks: make(map[string]TaskFunc)}
}

// Handle registers fn for task.
func (e *Endpoint) Handle(task string, fn TaskFunc) *Endpoint {
	e.tasks[turn.CanonicalName(task)] = fn
	return e
}

// OnUnknown sets a hook called before an unknown task is rejected.
func (e *Endpoint) OnUnknown(fn func(ctx context.Context, msg *envelope.Message, task string)) *Endpoint {
	e.onUnknown = fn
	return e
}

// Tasks returns the registered task names, sorted.
func (e *Endpoint) Tasks() []string {
	names := make([]string, 0, len(e.tasks))
	for name := range e.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServeHTTP answers POST /mcp. Malformed envelopes get 400; everything
// else, including unknown tasks and handler failures, gets a 200 reply
// envelope whose payload carries the status.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	msg, ok := readJSON[envelope.Message](w, r, maxBodyBytes)
	if !ok {
		return
	}
	if err := msg.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	ctx := r.Context()
	task := msg.Task()
	fn, ok := e.tasks[turn.CanonicalName(task)]
	if !ok {
		slog.WarnContext(ctx, "unknown task", "service", e.service, "task", task, "from", msg.Sender)
		if e.onUnknown != nil {
			e.onUnknown(ctx, &msg, task)
		}
		e.reply(w, &msg, envelope.Reply{
			Status:  envelope.StatusError,
			Task:    task,
			Message: fmt.Sprintf("%s: %s %q", domain.ErrUnknownTask, e.service, task),
		})
		return
	}

	payload, err := fn(ctx, &msg)
	if err != nil {
		e.reply(w, &msg, e.failure(ctx, task, err))
		return
	}
	e.reply(w, &msg, payload)
}

func (e *Endpoint) failure(ctx context.Context, task string, err error) envelope.Reply {
	rep := envelope.Reply{Status: envelope.StatusError, Task: task}
	if errors.Is(err, domain.ErrValidation) {
		rep.Message = validationMessage(err)
		return rep
	}
	slog.ErrorContext(ctx, "task failed", "service", e.service, "task", task, "error", err)
	rep.Message = "internal error"
	return rep
}

func (e *Endpoint) reply(w http.ResponseWriter, msg *envelope.Message, payload any) {
	out, err := msg.NewReply(e.service, payload)
	if err != nil {
		slog.Error("build reply envelope", "service", e.service, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func okReply(task string) envelope.Reply {
	return envelope.Reply{Status: envelope.StatusOK, Task: task}
}
