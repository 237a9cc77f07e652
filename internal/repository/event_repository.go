package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mlevkov/tickethub/internal/db"
	"github.com/mlevkov/tickethub/internal/domain"
)

type eventRepository struct {
	conn *db.Connection
}

// NewEventRepository creates an event repository over the shared connection.
func NewEventRepository(conn *db.Connection) EventRepository {
	return &eventRepository{conn: conn}
}

func (r *eventRepository) Create(ctx context.Context, event domain.Event) (domain.Event, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	_, err := r.conn.Querier(ctx).Exec(ctx,
		`INSERT INTO events (id, name, tickets_count, event_type)
		 VALUES ($1, $2, $3, $4)`,
		event.ID, event.Name, event.TicketsCount, nilIfBlank(string(event.EventType)),
	)
	if err != nil {
		return domain.Event{}, fmt.Errorf("failed to create event: %w", err)
	}

	return event, nil
}

func (r *eventRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	var (
		event     domain.Event
		eventType pgtype.Text
	)

	err := r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT id, name, tickets_count, event_type FROM events WHERE id = $1`, id,
	).Scan(&event.ID, &event.Name, &event.TicketsCount, &eventType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, domain.ErrNotFound
		}
		return domain.Event{}, fmt.Errorf("failed to get event: %w", err)
	}

	if eventType.Valid {
		event.EventType = domain.EventType(eventType.String)
	}

	return event, nil
}
