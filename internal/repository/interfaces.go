package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/mlevkov/tickethub/internal/domain"
)

// TicketRepository defines the interface for ticket persistence. All methods
// run against the caller's transaction when the context carries one.
type TicketRepository interface {
	Create(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Ticket, error)
	List(ctx context.Context) ([]domain.Ticket, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Update(ctx context.Context, ticket domain.Ticket) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByComment(ctx context.Context, comment string) (int64, error)
	CountByCommentLess(ctx context.Context, comment string) (int64, error)
	FirstWithEarliestEvent(ctx context.Context) (domain.Ticket, error)

	// Read-only lookups backing the admission and placement rules.
	CountByPersonAndEvent(ctx context.Context, personID, eventID uuid.UUID) (int, error)
	ExistsByEventAndCoordinates(ctx context.Context, eventID uuid.UUID, coords domain.Coordinates) (bool, error)
}

// PersonRepository defines the interface for person persistence.
type PersonRepository interface {
	Create(ctx context.Context, person domain.Person) (domain.Person, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Person, error)
	PassportExists(ctx context.Context, passportID string) (bool, error)
}

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	Create(ctx context.Context, event domain.Event) (domain.Event, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Event, error)
}

// VenueRepository defines the interface for venue persistence.
type VenueRepository interface {
	Create(ctx context.Context, venue domain.Venue) (domain.Venue, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Venue, error)
}

// ImportLogRepository defines the interface for the durable import audit log.
// Entries are written outside the import transaction so a FAILED entry
// survives the rollback of the records it describes.
type ImportLogRepository interface {
	Create(ctx context.Context, entry domain.ImportFileLog) (domain.ImportFileLog, error)
	MarkSuccess(ctx context.Context, id uuid.UUID, imported int, ticketIDs []uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.ImportFileLog, error)
	List(ctx context.Context, limit, offset int) ([]domain.ImportFileLog, error)
}
