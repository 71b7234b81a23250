package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	cfotel "github.com/Strob0t/CoachForge/internal/adapter/otel"
	"github.com/Strob0t/CoachForge/internal/domain"
	"github.com/Strob0t/CoachForge/internal/domain/turn"
)

// TurnContext is the read-only state an adapter sees. Fields are filled in
// by the orchestrator as earlier steps complete.
type TurnContext struct {
	TurnID    string
	UserID    string
	Mood      *turn.MoodState
	Nutrition *turn.NutritionResult
	Vision    turn.VisionResult
	History   []turn.HistoryEntry
}

// Outcome is the normalized result of one step. The field matching the
// step's kind is set.
type Outcome struct {
	Mood          *turn.MoodState
	Answer        *string
	Transcription *turn.Transcription
	Nutrition     *turn.NutritionResult
	Vision        turn.VisionResult
	History       []turn.HistoryEntry
}

// Adapter builds a worker request for cmd, calls the worker and normalizes
// its reply.
type Adapter func(ctx context.Context, cmd turn.Command, tc *TurnContext) (*Outcome, error)

type registration struct {
	kind    turn.Kind
	adapter Adapter
}

// Registry maps (capability, task) pairs to adapters. It is written during
// startup and only read afterwards.
type Registry struct {
	entries map[turn.Key]registration
	metrics *cfotel.Metrics
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[turn.Key]registration)}
}

// SetMetrics enables per-call worker metrics.
func (r *Registry) SetMetrics(m *cfotel.Metrics) {
	r.metrics = m
}

// Register binds an adapter of the given kind to (capability, task).
// Registering the same pair twice is an error.
func (r *Registry) Register(capability, task string, kind turn.Kind, a Adapter) error {
	key := turn.Key{Capability: turn.CanonicalName(capability), Task: turn.CanonicalName(task)}
	if _, ok := r.entries[key]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateAdapter, key)
	}
	r.entries[key] = registration{kind: kind, adapter: a}
	return nil
}

// Kind reports the step kind registered for key.
func (r *Registry) Kind(key turn.Key) (turn.Kind, bool) {
	e, ok := r.entries[key]
	return e.kind, ok
}

// Has reports whether an adapter is registered for key.
func (r *Registry) Has(key turn.Key) bool {
	_, ok := r.entries[key]
	return ok
}

// Binding describes one registered adapter.
type Binding struct {
	Capability string    `json:"capability"`
	Task       string    `json:"task"`
	Kind       turn.Kind `json:"kind"`
}

// Bindings lists the registered adapters ordered by capability and task.
func (r *Registry) Bindings() []Binding {
	out := make([]Binding, 0, len(r.entries))
	for key, e := range r.entries {
		out = append(out, Binding{Capability: key.Capability, Task: key.Task, Kind: e.kind})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Capability != out[j].Capability {
			return out[i].Capability < out[j].Capability
		}
		return out[i].Task < out[j].Task
	})
	return out
}

// Execute runs the adapter registered for cmd. Worker failures are logged and
// yield a nil Outcome; the only error is domain.ErrNoAdapter.
func (r *Registry) Execute(ctx context.Context, cmd turn.Command, tc *TurnContext) (*Outcome, error) {
	e, ok := r.entries[cmd.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoAdapter, cmd.Key())
	}

	ctx, span := cfotel.StartStepSpan(ctx, cmd.Capability, cmd.Task)
	start := time.Now()
	out, err := e.adapter(ctx, cmd, tc)
	r.metrics.RecordWorkerCall(ctx, string(e.kind), err == nil, time.Since(start))
	cfotel.EndSpan(span, err)

	if err != nil {
		slog.WarnContext(ctx, "worker call failed",
			"capability", cmd.Capability,
			"task", cmd.Task,
			"turn_id", tc.TurnID,
			"error", err,
		)
		return nil, nil
	}
	return out, nil
}
