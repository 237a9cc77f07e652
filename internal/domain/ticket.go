package domain

import (
	"time"

	"github.com/google/uuid"
)

// TicketType is the fine-grained ticket category.
type TicketType string

const (
	TicketTypeVIP       TicketType = "VIP"
	TicketTypeUsual     TicketType = "USUAL"
	TicketTypeCheap     TicketType = "CHEAP"
	TicketTypeBudgetary TicketType = "BUDGETARY"
)

// Valid reports whether the value is one of the known ticket types.
func (t TicketType) Valid() bool {
	switch t {
	case TicketTypeVIP, TicketTypeUsual, TicketTypeCheap, TicketTypeBudgetary:
		return true
	}
	return false
}

// Coordinates is the seat placement of a ticket within an event.
// Two tickets under the same event may never share equal coordinates.
type Coordinates struct {
	X int     `json:"x"`
	Y float64 `json:"y"`
}

// Equal compares coordinates structurally.
func (c Coordinates) Equal(other Coordinates) bool {
	return c.X == other.X && c.Y == other.Y
}

// Ticket is the central record of the system. Person, Event and Venue may be
// nil; in import payloads a non-nil reference either carries an ID (must
// resolve to an existing row) or embeds a full value to be created.
type Ticket struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	Coordinates  Coordinates `json:"coordinates"`
	CreationDate time.Time   `json:"creationDate"`
	Person       *Person     `json:"person,omitempty"`
	Event        *Event      `json:"event,omitempty"`
	Venue        *Venue      `json:"venue,omitempty"`
	Price        float64     `json:"price"`
	Type         TicketType  `json:"type"`
	Discount     *float64    `json:"discount,omitempty"`
	Number       int         `json:"number"`
	Comment      string      `json:"comment,omitempty"`
}

// PersonID returns the owning person id or uuid.Nil.
func (t Ticket) PersonID() uuid.UUID {
	if t.Person == nil {
		return uuid.Nil
	}
	return t.Person.ID
}

// EventID returns the linked event id or uuid.Nil.
func (t Ticket) EventID() uuid.UUID {
	if t.Event == nil {
		return uuid.Nil
	}
	return t.Event.ID
}

// VenueID returns the linked venue id or uuid.Nil.
func (t Ticket) VenueID() uuid.UUID {
	if t.Venue == nil {
		return uuid.Nil
	}
	return t.Venue.ID
}
