package service

import (
	"context"
	"fmt"
	"log/slog"

	cfotel "github.com/Strob0t/CoachForge/internal/adapter/otel"
	"github.com/Strob0t/CoachForge/internal/domain/envelope"
	"github.com/Strob0t/CoachForge/internal/port/worker"
)

// RemoteRouter asks the manager service for a routing decision and falls
// back to a local router when the manager is unreachable or replies with an
// error.
type RemoteRouter struct {
	caller   worker.Caller
	ep       worker.Endpoint
	fallback Router
	metrics  *cfotel.Metrics
}

// NewRemoteRouter creates a RemoteRouter for the manager at url.
func NewRemoteRouter(caller worker.Caller, url string, fallback Router) *RemoteRouter {
	return &RemoteRouter{
		caller:   caller,
		ep:       worker.Endpoint{Name: envelope.ServiceManager, URL: url},
		fallback: fallback,
	}
}

// SetMetrics enables fallback counting.
func (r *RemoteRouter) SetMetrics(m *cfotel.Metrics) {
	r.metrics = m
}

// Route implements Router.
func (r *RemoteRouter) Route(ctx context.Context, in RouteInput) RouteDecision {
	d, err := r.ask(ctx, in)
	if err == nil {
		return d
	}
	slog.Warn("router: manager unavailable, routing locally", "error", err, "user_id", in.UserID)
	r.metrics.RouterFellBack(ctx, "manager_unavailable")
	return r.fallback.Route(ctx, in)
}

func (r *RemoteRouter) ask(ctx context.Context, in RouteInput) (RouteDecision, error) {
	msg, err := envelope.NewRequest(envelope.ServiceOrchestrator, r.ep.Name, envelope.RouteServices{
		Task:      envelope.TaskRouteServices,
		Text:      in.Text,
		AudioPath: in.AudioPath,
	}, envelope.Context{UserID: in.UserID})
	if err != nil {
		return RouteDecision{}, err
	}
	resp, err := r.caller.Call(ctx, r.ep, msg)
	if err != nil {
		return RouteDecision{}, err
	}
	reply, err := envelope.DecodeReply[envelope.RouteReply](resp)
	if err != nil {
		return RouteDecision{}, fmt.Errorf("route reply: %w", err)
	}
	return RouteDecision{Services: reply.Services, LLMError: reply.LLMError}, nil
}
