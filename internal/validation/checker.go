package validation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mlevkov/tickethub/internal/domain"
)

// MaxTicketsPerPersonPerEvent caps how many tickets one person may hold for
// the same event.
const MaxTicketsPerPersonPerEvent = 10

// TicketLookups is the read-only slice of the ticket repository the checker
// needs. Satisfied by repository.TicketRepository.
type TicketLookups interface {
	CountByPersonAndEvent(ctx context.Context, personID, eventID uuid.UUID) (int, error)
	ExistsByEventAndCoordinates(ctx context.Context, eventID uuid.UUID, coords domain.Coordinates) (bool, error)
}

// Checker evaluates the admission and placement rules that need the current
// database state. Both run as pre-checks before a write; serializable
// isolation keeps the snapshot consistent with the eventual insert.
type Checker struct {
	tickets TicketLookups
}

// NewChecker wires a checker over ticket lookups.
func NewChecker(tickets TicketLookups) *Checker {
	return &Checker{tickets: tickets}
}

// PersonAllowed reports whether the person may take one more ticket for the
// event. A nil person or event imposes no constraint.
func (c *Checker) PersonAllowed(ctx context.Context, personID, eventID uuid.UUID) (bool, error) {
	if personID == uuid.Nil || eventID == uuid.Nil {
		return true, nil
	}
	count, err := c.tickets.CountByPersonAndEvent(ctx, personID, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to count tickets for person: %w", err)
	}
	return count < MaxTicketsPerPersonPerEvent, nil
}

// PlaceAvailable reports whether the coordinates are free within the event.
// A nil event imposes no constraint.
func (c *Checker) PlaceAvailable(ctx context.Context, eventID uuid.UUID, coords domain.Coordinates) (bool, error) {
	if eventID == uuid.Nil {
		return true, nil
	}
	taken, err := c.tickets.ExistsByEventAndCoordinates(ctx, eventID, coords)
	if err != nil {
		return false, fmt.Errorf("failed to check placement: %w", err)
	}
	return !taken, nil
}
