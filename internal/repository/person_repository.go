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

type personRepository struct {
	conn *db.Connection
}

// NewPersonRepository creates a person repository over the shared connection.
func NewPersonRepository(conn *db.Connection) PersonRepository {
	return &personRepository{conn: conn}
}

func (r *personRepository) Create(ctx context.Context, person domain.Person) (domain.Person, error) {
	if person.ID == uuid.Nil {
		person.ID = uuid.New()
	}

	var locX, locY, locZ any
	if person.Location != nil {
		locX, locY, locZ = person.Location.X, person.Location.Y, person.Location.Z
	}

	_, err := r.conn.Querier(ctx).Exec(ctx,
		`INSERT INTO persons (id, passport_id, weight, nationality, hair_color, eye_color, loc_x, loc_y, loc_z)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		person.ID, person.PassportID, person.Weight, person.Nationality,
		person.HairColor, nilIfBlank(string(person.EyeColor)), locX, locY, locZ,
	)
	if err != nil {
		return domain.Person{}, fmt.Errorf("failed to create person: %w", err)
	}

	return person, nil
}

func (r *personRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Person, error) {
	var (
		person     domain.Person
		eyeColor   pgtype.Text
		locX       pgtype.Int4
		locY, locZ pgtype.Float8
	)

	err := r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT id, passport_id, weight, nationality, hair_color, eye_color, loc_x, loc_y, loc_z
		 FROM persons WHERE id = $1`, id,
	).Scan(&person.ID, &person.PassportID, &person.Weight, &person.Nationality,
		&person.HairColor, &eyeColor, &locX, &locY, &locZ)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Person{}, domain.ErrNotFound
		}
		return domain.Person{}, fmt.Errorf("failed to get person: %w", err)
	}

	if eyeColor.Valid {
		person.EyeColor = domain.Color(eyeColor.String)
	}
	if locX.Valid {
		person.Location = &domain.Location{X: int(locX.Int32), Y: locY.Float64, Z: locZ.Float64}
	}

	return person, nil
}

func (r *personRepository) PassportExists(ctx context.Context, passportID string) (bool, error) {
	var exists bool
	err := r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM persons WHERE passport_id = $1)`, passportID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check passport: %w", err)
	}
	return exists, nil
}
