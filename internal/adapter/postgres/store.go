package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/CoachForge/internal/domain"
	"github.com/Strob0t/CoachForge/internal/domain/turn"
	"github.com/Strob0t/CoachForge/internal/port/database"
)

// MetadataTurnID is the metadata key whose value deduplicates saves.
const MetadataTurnID = "turn_id"

// Store implements database.InteractionStore using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ database.InteractionStore = (*Store)(nil)

// SaveInteraction inserts e. When e.Metadata carries a turn_id, saving the
// same (turn_id, role) again returns the existing row's ID.
func (s *Store) SaveInteraction(ctx context.Context, e turn.HistoryEntry) (int64, error) {
	if e.UserID == "" || e.Text == "" {
		return 0, fmt.Errorf("save interaction: %w: user_id and text are required", domain.ErrValidation)
	}
	metadata, err := marshalMetadata(e.Metadata)
	if err != nil {
		return 0, err
	}
	turnID, _ := e.Metadata[MetadataTurnID].(string)

	const q = `
		INSERT INTO interactions (user_id, role, text, metadata, turn_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (turn_id, role) WHERE turn_id IS NOT NULL DO NOTHING
		RETURNING id`

	var id int64
	err = s.pool.QueryRow(ctx, q, e.UserID, e.Role, e.Text, metadata, nullIfEmpty(turnID)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err = s.pool.QueryRow(ctx,
			`SELECT id FROM interactions WHERE turn_id = $1 AND role = $2`, turnID, e.Role).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("save interaction: %w", err)
	}
	return id, nil
}

// ListInteractions returns up to limit entries of userID, newest first.
func (s *Store) ListInteractions(ctx context.Context, userID string, limit int) ([]turn.HistoryEntry, error) {
	const q = `
		SELECT id, user_id, role, text, metadata, created_at
		FROM interactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	var result []turn.HistoryEntry
	for rows.Next() {
		e, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	return orEmpty(result), nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanInteraction(row scannable) (turn.HistoryEntry, error) {
	var (
		e        turn.HistoryEntry
		metadata []byte
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Role, &e.Text, &metadata, &e.CreatedAt); err != nil {
		return e, fmt.Errorf("scan interaction: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return e, fmt.Errorf("decode interaction metadata: %w", err)
		}
	}
	return e, nil
}
