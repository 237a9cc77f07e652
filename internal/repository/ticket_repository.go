package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mlevkov/tickethub/internal/db"
	"github.com/mlevkov/tickethub/internal/domain"
)

// ticketColumns is the select list shared by every ticket query. Related
// person, event and venue rows are hydrated through left joins.
const ticketColumns = `
	t.id, t.name, t.coord_x, t.coord_y, t.creation_date,
	t.price, t.type, t.discount, t.number, t.comment,
	p.id, p.passport_id, p.weight, p.nationality, p.hair_color, p.eye_color,
	p.loc_x, p.loc_y, p.loc_z,
	e.id, e.name, e.tickets_count, e.event_type,
	v.id, v.name, v.capacity, v.type`

const ticketJoins = `
	FROM tickets t
	LEFT JOIN persons p ON p.id = t.person_id
	LEFT JOIN events e ON e.id = t.event_id
	LEFT JOIN venues v ON v.id = t.venue_id`

type ticketRepository struct {
	conn *db.Connection
}

// NewTicketRepository creates a ticket repository over the shared connection.
func NewTicketRepository(conn *db.Connection) TicketRepository {
	return &ticketRepository{conn: conn}
}

func (r *ticketRepository) Create(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error) {
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	if ticket.CreationDate.IsZero() {
		ticket.CreationDate = time.Now()
	}

	_, err := r.conn.Querier(ctx).Exec(ctx,
		`INSERT INTO tickets (id, name, coord_x, coord_y, creation_date,
			person_id, event_id, venue_id, price, type, discount, number, comment)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		ticket.ID, ticket.Name, ticket.Coordinates.X, ticket.Coordinates.Y, ticket.CreationDate,
		nilIfZero(ticket.PersonID()), nilIfZero(ticket.EventID()), nilIfZero(ticket.VenueID()),
		ticket.Price, ticket.Type, ticket.Discount, ticket.Number, nilIfBlank(ticket.Comment),
	)
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("failed to create ticket: %w", err)
	}

	return ticket, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Ticket, error) {
	row := r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT`+ticketColumns+ticketJoins+` WHERE t.id = $1`, id)

	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Ticket{}, domain.ErrNotFound
		}
		return domain.Ticket{}, fmt.Errorf("failed to get ticket: %w", err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context) ([]domain.Ticket, error) {
	rows, err := r.conn.Querier(ctx).Query(ctx,
		`SELECT`+ticketColumns+ticketJoins+` ORDER BY t.creation_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	tickets := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}
	return tickets, nil
}

func (r *ticketRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tickets WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check ticket existence: %w", err)
	}
	return exists, nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket domain.Ticket) error {
	tag, err := r.conn.Querier(ctx).Exec(ctx,
		`UPDATE tickets
		 SET name = $2, coord_x = $3, coord_y = $4,
		     person_id = $5, event_id = $6, venue_id = $7,
		     price = $8, type = $9, discount = $10, number = $11, comment = $12
		 WHERE id = $1`,
		ticket.ID, ticket.Name, ticket.Coordinates.X, ticket.Coordinates.Y,
		nilIfZero(ticket.PersonID()), nilIfZero(ticket.EventID()), nilIfZero(ticket.VenueID()),
		ticket.Price, ticket.Type, ticket.Discount, ticket.Number, nilIfBlank(ticket.Comment),
	)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn.Querier(ctx).Exec(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ticketRepository) DeleteByComment(ctx context.Context, comment string) (int64, error) {
	tag, err := r.conn.Querier(ctx).Exec(ctx,
		`DELETE FROM tickets WHERE comment = $1`, comment)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tickets by comment: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *ticketRepository) CountByCommentLess(ctx context.Context, comment string) (int64, error) {
	var count int64
	err := r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE comment < $1`, comment).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tickets by comment: %w", err)
	}
	return count, nil
}

func (r *ticketRepository) FirstWithEarliestEvent(ctx context.Context) (domain.Ticket, error) {
	row := r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT`+ticketColumns+ticketJoins+`
		 WHERE t.event_id IS NOT NULL
		 ORDER BY e.created_at ASC, t.creation_date ASC
		 LIMIT 1`)

	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Ticket{}, domain.ErrNotFound
		}
		return domain.Ticket{}, fmt.Errorf("failed to get ticket with earliest event: %w", err)
	}
	return ticket, nil
}

func (r *ticketRepository) CountByPersonAndEvent(ctx context.Context, personID, eventID uuid.UUID) (int, error) {
	var count int
	err := r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE person_id = $1 AND event_id = $2`,
		personID, eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tickets for person and event: %w", err)
	}
	return count, nil
}

func (r *ticketRepository) ExistsByEventAndCoordinates(ctx context.Context, eventID uuid.UUID, coords domain.Coordinates) (bool, error) {
	var exists bool
	err := r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM tickets
			WHERE event_id = $1 AND coord_x = $2 AND coord_y = $3
		 )`,
		eventID, coords.X, coords.Y).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check coordinates: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (domain.Ticket, error) {
	var (
		ticket   domain.Ticket
		discount pgtype.Float8
		comment  pgtype.Text

		personID       pgtype.UUID
		passportID     pgtype.Text
		weight         pgtype.Float8
		nationality    pgtype.Text
		hairColor      pgtype.Text
		eyeColor       pgtype.Text
		locX           pgtype.Int4
		locY, locZ     pgtype.Float8
		eventID        pgtype.UUID
		eventName      pgtype.Text
		ticketsCount   pgtype.Int4
		eventType      pgtype.Text
		venueID        pgtype.UUID
		venueName      pgtype.Text
		capacity       pgtype.Int4
		venueType      pgtype.Text
	)

	err := row.Scan(
		&ticket.ID, &ticket.Name, &ticket.Coordinates.X, &ticket.Coordinates.Y, &ticket.CreationDate,
		&ticket.Price, &ticket.Type, &discount, &ticket.Number, &comment,
		&personID, &passportID, &weight, &nationality, &hairColor, &eyeColor,
		&locX, &locY, &locZ,
		&eventID, &eventName, &ticketsCount, &eventType,
		&venueID, &venueName, &capacity, &venueType,
	)
	if err != nil {
		return domain.Ticket{}, err
	}

	if discount.Valid {
		value := discount.Float64
		ticket.Discount = &value
	}
	if comment.Valid {
		ticket.Comment = comment.String
	}

	if personID.Valid {
		person := &domain.Person{
			ID:          uuid.UUID(personID.Bytes),
			PassportID:  passportID.String,
			Weight:      weight.Float64,
			Nationality: domain.Country(nationality.String),
			HairColor:   domain.Color(hairColor.String),
		}
		if eyeColor.Valid {
			person.EyeColor = domain.Color(eyeColor.String)
		}
		if locX.Valid {
			person.Location = &domain.Location{
				X: int(locX.Int32),
				Y: locY.Float64,
				Z: locZ.Float64,
			}
		}
		ticket.Person = person
	}

	if eventID.Valid {
		event := &domain.Event{
			ID:           uuid.UUID(eventID.Bytes),
			Name:         eventName.String,
			TicketsCount: int(ticketsCount.Int32),
		}
		if eventType.Valid {
			event.EventType = domain.EventType(eventType.String)
		}
		ticket.Event = event
	}

	if venueID.Valid {
		venue := &domain.Venue{
			ID:       uuid.UUID(venueID.Bytes),
			Name:     venueName.String,
			Capacity: int(capacity.Int32),
		}
		if venueType.Valid {
			venue.Type = domain.VenueType(venueType.String)
		}
		ticket.Venue = venue
	}

	return ticket, nil
}

// nilIfZero maps uuid.Nil to a SQL NULL.
func nilIfZero(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

// nilIfBlank maps an empty string to a SQL NULL.
func nilIfBlank(value string) any {
	if value == "" {
		return nil
	}
	return value
}
