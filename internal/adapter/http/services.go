package http

import (
	"context"
	"fmt"

	"github.com/Strob0t/CoachForge/internal/domain"
	"github.com/Strob0t/CoachForge/internal/domain/envelope"
	"github.com/Strob0t/CoachForge/internal/domain/turn"
	"github.com/Strob0t/CoachForge/internal/service"
)

// TurnProcessor runs user turns. Implemented by *service.CoachService.
type TurnProcessor interface {
	ProcessUserInput(ctx context.Context, in service.TurnInput) turn.Completed
	RejectTask(ctx context.Context, userID, task string)
}

// InteractionMemory stores and reads user interactions. Implemented by
// *service.MemoryService.
type InteractionMemory interface {
	Save(ctx context.Context, userID, role, text string, metadata map[string]any) (int64, error)
	History(ctx context.Context, userID string, limit int) ([]turn.HistoryEntry, error)
}

// NewOrchestratorEndpoint answers process-user-input. Unknown tasks are
// reported to coach before being rejected.
func NewOrchestratorEndpoint(coach TurnProcessor) *Endpoint {
	e := NewEndpoint(envelope.ServiceOrchestrator)
	e.Handle(envelope.TaskProcessUserInput, func(ctx context.Context, msg *envelope.Message) (any, error) {
		in, err := envelope.Decode[envelope.ProcessUserInput](msg)
		if err != nil {
			return nil, err
		}
		done := coach.ProcessUserInput(ctx, service.TurnInput{
			UserID:    msg.Context.UserID,
			UserInput: in.UserInput,
			AudioPath: in.AudioPath,
			ImagePath: in.ImagePath,
		})
		return envelope.TurnReply{
			Reply:  okReply(envelope.TaskProcessUserInput),
			UserID: optionalString(msg.Context.UserID),
			Result: done.Result,
		}, nil
	})
	e.OnUnknown(func(ctx context.Context, msg *envelope.Message, task string) {
		coach.RejectTask(ctx, msg.Context.UserID, task)
	})
	return e
}

// NewManagerEndpoint answers route-services.
func NewManagerEndpoint(router service.Router) *Endpoint {
	e := NewEndpoint(envelope.ServiceManager)
	e.Handle(envelope.TaskRouteServices, func(ctx context.Context, msg *envelope.Message) (any, error) {
		in, err := envelope.Decode[envelope.RouteServices](msg)
		if err != nil {
			return nil, err
		}
		d := router.Route(ctx, service.RouteInput{
			Text:      in.Text,
			AudioPath: in.AudioPath,
			UserID:    msg.Context.UserID,
		})
		services := d.Services
		if services == nil {
			services = []turn.RawCommand{}
		}
		return envelope.RouteReply{
			Reply:    okReply(envelope.TaskRouteServices),
			Services: services,
			LLMError: d.LLMError,
		}, nil
	})
	return e
}

// NewMemoryEndpoint answers save-interaction and get-history. The payload
// user_id wins over the envelope context.
func NewMemoryEndpoint(mem InteractionMemory) *Endpoint {
	e := NewEndpoint(envelope.ServiceMemory)
	e.Handle(envelope.TaskSaveInteraction, func(ctx context.Context, msg *envelope.Message) (any, error) {
		in, err := envelope.Decode[envelope.SaveInteraction](msg)
		if err != nil {
			return nil, err
		}
		id, err := mem.Save(ctx, firstNonEmpty(in.UserID, msg.Context.UserID), in.Role, in.Text, in.Metadata)
		if err != nil {
			return nil, fmt.Errorf("save interaction: %w", err)
		}
		return envelope.SaveReply{Reply: okReply(envelope.TaskSaveInteraction), InteractionID: id}, nil
	})
	e.Handle(envelope.TaskGetHistory, func(ctx context.Context, msg *envelope.Message) (any, error) {
		in, err := envelope.Decode[envelope.GetHistory](msg)
		if err != nil {
			return nil, err
		}
		if in.Limit < 0 {
			return nil, fmt.Errorf("%w: limit must be >= 0", domain.ErrValidation)
		}
		history, err := mem.History(ctx, firstNonEmpty(in.UserID, msg.Context.UserID), in.Limit)
		if err != nil {
			return nil, fmt.Errorf("get history: %w", err)
		}
		return envelope.HistoryReply{Reply: okReply(envelope.TaskGetHistory), History: history}, nil
	})
	return e
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
