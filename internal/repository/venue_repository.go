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

type venueRepository struct {
	conn *db.Connection
}

// NewVenueRepository creates a venue repository over the shared connection.
func NewVenueRepository(conn *db.Connection) VenueRepository {
	return &venueRepository{conn: conn}
}

func (r *venueRepository) Create(ctx context.Context, venue domain.Venue) (domain.Venue, error) {
	if venue.ID == uuid.Nil {
		venue.ID = uuid.New()
	}

	_, err := r.conn.Querier(ctx).Exec(ctx,
		`INSERT INTO venues (id, name, capacity, type)
		 VALUES ($1, $2, $3, $4)`,
		venue.ID, venue.Name, venue.Capacity, nilIfBlank(string(venue.Type)),
	)
	if err != nil {
		return domain.Venue{}, fmt.Errorf("failed to create venue: %w", err)
	}

	return venue, nil
}

func (r *venueRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Venue, error) {
	var (
		venue     domain.Venue
		venueType pgtype.Text
	)

	err := r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT id, name, capacity, type FROM venues WHERE id = $1`, id,
	).Scan(&venue.ID, &venue.Name, &venue.Capacity, &venueType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Venue{}, domain.ErrNotFound
		}
		return domain.Venue{}, fmt.Errorf("failed to get venue: %w", err)
	}

	if venueType.Valid {
		venue.Type = domain.VenueType(venueType.String)
	}

	return venue, nil
}
