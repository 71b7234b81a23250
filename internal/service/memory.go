package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Strob0t/CoachForge/internal/domain"
	"github.com/Strob0t/CoachForge/internal/domain/turn"
	"github.com/Strob0t/CoachForge/internal/port/database"
	"github.com/Strob0t/CoachForge/internal/port/messagequeue"
)

// Interaction roles.
const (
	RoleUser  = "user"
	RoleCoach = "coach"
)

// MaxHistoryLimit caps a history request.
const MaxHistoryLimit = 100

const (
	metadataTurnID   = "turn_id"
	metadataServices = "services"
	turnConsumer     = "memory-turns"
)

// MemoryService stores and reads user interactions.
type MemoryService struct {
	store database.InteractionStore
}

// NewMemoryService creates a MemoryService.
func NewMemoryService(store database.InteractionStore) *MemoryService {
	return &MemoryService{store: store}
}

// Save stores one utterance. role defaults to user.
func (s *MemoryService) Save(ctx context.Context, userID, role, text string, metadata map[string]any) (int64, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("%w: user_id and text are required", domain.ErrValidation)
	}
	if role == "" {
		role = RoleUser
	}
	if role != RoleUser && role != RoleCoach {
		return 0, fmt.Errorf("%w: role must be %q or %q, got %q", domain.ErrValidation, RoleUser, RoleCoach, role)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return s.store.SaveInteraction(ctx, turn.HistoryEntry{
		UserID:   userID,
		Role:     role,
		Text:     text,
		Metadata: metadata,
	})
}

// History returns the most recent interactions of userID, newest first.
// A non-positive limit means DefaultHistoryLimit.
func (s *MemoryService) History(ctx context.Context, userID string, limit int) ([]turn.HistoryEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrValidation)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)
	entries, err := s.store.ListInteractions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	if entries == nil {
		entries = []turn.HistoryEntry{}
	}
	return entries, nil
}

// Ping checks the backing store.
func (s *MemoryService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Subscribe records every completed turn published on q.
func (s *MemoryService) Subscribe(ctx context.Context, q messagequeue.Queue) (func(), error) {
	return q.Subscribe(ctx, turnConsumer, messagequeue.SubjectTurnCompleted, s.RecordTurn)
}

// RecordTurn stores the user input and coach answer of a completed turn.
// Both saves carry the turn ID, so a redelivered event stores nothing new.
// Turns without a user are not recorded.
func (s *MemoryService) RecordTurn(ctx context.Context, _ string, data []byte) error {
	var ev messagequeue.TurnCompletedPayload
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("unmarshal turn completed: %w", err)
	}
	if ev.UserID == "" {
		slog.DebugContext(ctx, "skipping anonymous turn", "turn_id", ev.TurnID)
		return nil
	}

	meta := map[string]any{
		metadataTurnID:   ev.TurnID,
		metadataServices: ev.Services,
	}
	if strings.TrimSpace(ev.UserInput) != "" {
		if _, err := s.Save(ctx, ev.UserID, RoleUser, ev.UserInput, meta); err != nil {
			return fmt.Errorf("record user input: %w", err)
		}
	}
	if ev.CoachAnswer != nil && strings.TrimSpace(*ev.CoachAnswer) != "" {
		if _, err := s.Save(ctx, ev.UserID, RoleCoach, *ev.CoachAnswer, meta); err != nil {
			return fmt.Errorf("record coach answer: %w", err)
		}
	}
	slog.InfoContext(ctx, "turn recorded", "turn_id", ev.TurnID, "user_id", ev.UserID)
	return nil
}
