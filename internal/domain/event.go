package domain

import "github.com/google/uuid"

// EventType is the coarse category of an event. It keys the compatibility
// tables that constrain ticket and venue types.
type EventType string

const (
	EventTypeFootball   EventType = "FOOTBALL"
	EventTypeBaseball   EventType = "BASEBALL"
	EventTypeBasketball EventType = "BASKETBALL"
	EventTypeOpera      EventType = "OPERA"
	EventTypeConcert    EventType = "CONCERT"
)

// Valid reports whether the value is a known event type.
func (e EventType) Valid() bool {
	switch e {
	case EventTypeFootball, EventTypeBaseball, EventTypeBasketball,
		EventTypeOpera, EventTypeConcert:
		return true
	}
	return false
}

// Event is the grouping entity that owns placement and admission constraints
// shared by its tickets.
type Event struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	TicketsCount int       `json:"ticketsCount"`
	EventType    EventType `json:"eventType,omitempty"`
}
