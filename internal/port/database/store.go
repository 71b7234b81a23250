// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/CoachForge/internal/domain/turn"
)

// InteractionStore persists user and coach utterances for the memory service.
type InteractionStore interface {
	// SaveInteraction stores e and returns its assigned ID.
	// ID and CreatedAt of e are ignored.
	SaveInteraction(ctx context.Context, e turn.HistoryEntry) (int64, error)

	// ListInteractions returns up to limit entries of userID, newest first.
	ListInteractions(ctx context.Context, userID string, limit int) ([]turn.HistoryEntry, error)

	// Ping checks the connection.
	Ping(ctx context.Context) error
}
