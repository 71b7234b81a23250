package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "coachforge"

// Metrics holds the orchestration metric instruments.
type Metrics struct {
	TurnsStarted   metric.Int64Counter
	TurnsCompleted metric.Int64Counter
	TurnsRejected  metric.Int64Counter
	WorkerCalls    metric.Int64Counter
	WorkerFailures metric.Int64Counter
	RouterFallback metric.Int64Counter
	TurnDuration   metric.Float64Histogram
	WorkerDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.TurnsStarted, err = meter.Int64Counter("coach.turns.started",
		metric.WithDescription("Number of turns started")); err != nil {
		return nil, err
	}
	if m.TurnsCompleted, err = meter.Int64Counter("coach.turns.completed",
		metric.WithDescription("Number of turns assembled")); err != nil {
		return nil, err
	}
	if m.TurnsRejected, err = meter.Int64Counter("coach.turns.rejected",
		metric.WithDescription("Number of requests rejected before routing")); err != nil {
		return nil, err
	}
	if m.WorkerCalls, err = meter.Int64Counter("coach.worker.calls",
		metric.WithDescription("Number of worker calls")); err != nil {
		return nil, err
	}
	if m.WorkerFailures, err = meter.Int64Counter("coach.worker.failures",
		metric.WithDescription("Number of worker calls that yielded no result")); err != nil {
		return nil, err
	}
	if m.RouterFallback, err = meter.Int64Counter("coach.router.fallback",
		metric.WithDescription("Number of routing decisions without a usable primary answer")); err != nil {
		return nil, err
	}
	if m.TurnDuration, err = meter.Float64Histogram("coach.turn.duration_seconds",
		metric.WithDescription("Turn duration in seconds")); err != nil {
		return nil, err
	}
	if m.WorkerDuration, err = meter.Float64Histogram("coach.worker.duration_seconds",
		metric.WithDescription("Worker call duration in seconds")); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordWorkerCall records one worker call. A nil receiver records nothing.
func (m *Metrics) RecordWorkerCall(ctx context.Context, step string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("step", step))
	m.WorkerCalls.Add(ctx, 1, attrs)
	if !ok {
		m.WorkerFailures.Add(ctx, 1, attrs)
	}
	m.WorkerDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordTurn records one assembled turn. A nil receiver records nothing.
func (m *Metrics) RecordTurn(ctx context.Context, steps int, d time.Duration) {
	if m == nil {
		return
	}
	m.TurnsCompleted.Add(ctx, 1)
	m.TurnDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.Int("steps", steps)))
}

// TurnStarted counts a turn entering the pipeline. A nil receiver records nothing.
func (m *Metrics) TurnStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.TurnsStarted.Add(ctx, 1)
}

// TurnRejected counts a request rejected before routing. A nil receiver records nothing.
func (m *Metrics) TurnRejected(ctx context.Context, task string) {
	if m == nil {
		return
	}
	m.TurnsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("task", task)))
}

// RouterFellBack counts a routing decision served by the keyword fallback.
func (m *Metrics) RouterFellBack(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.RouterFallback.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
