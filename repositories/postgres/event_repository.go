package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/repositories"
)

// EventRepository implements repositories.EventRepository
type EventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB, logger *zap.Logger) repositories.EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

// List returns every event ordered by ID
func (r *EventRepository) List(ctx context.Context) ([]*models.Event, error) {
	query := `
		SELECT id, data, created_at, updated_at
		FROM events
		ORDER BY id
	`

	rows, err := GetExecutor(ctx, r.db, nil).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []*models.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	r.logger.Debug("events listed", zap.Int("count", len(events)))
	return events, nil
}

// GetByID retrieves an event by ID
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	query := `
		SELECT id, data, created_at, updated_at
		FROM events
		WHERE id = $1
	`

	event, err := scanEvent(GetExecutor(ctx, r.db, nil).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("event %s: %w", id, repositories.ErrNotFound)
		}
		return nil, err
	}
	return event, nil
}

// Upsert creates an event or replaces the data of an existing one
func (r *EventRepository) Upsert(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`

	fields := event.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.ID, err)
	}

	now := time.Now()
	if _, err := GetExecutor(ctx, r.db, nil).ExecContext(ctx, query, event.ID, data, now); err != nil {
		return fmt.Errorf("failed to upsert event: %w", err)
	}

	r.logger.Debug("event upserted", zap.String("id", event.ID))
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	event := &models.Event{}
	var data []byte
	if err := row.Scan(&event.ID, &data, &event.CreatedAt, &event.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	event.Fields = map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &event.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode event %s: %w", event.ID, err)
		}
	}
	return event, nil
}
