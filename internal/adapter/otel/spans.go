package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "coachforge"

// StartTurnSpan starts a span for one user turn.
func StartTurnSpan(ctx context.Context, turnID, userID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "turn",
		trace.WithAttributes(
			attribute.String("turn.id", turnID),
			attribute.String("user.id", userID),
		),
	)
}

// StartRouteSpan starts a span for the routing decision.
func StartRouteSpan(ctx context.Context, mode string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "route",
		trace.WithAttributes(attribute.String("router.mode", mode)),
	)
}

// StartStepSpan starts a span for one worker call within a turn.
func StartStepSpan(ctx context.Context, capability, task string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "step",
		trace.WithAttributes(
			attribute.String("step.capability", capability),
			attribute.String("step.task", task),
		),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
