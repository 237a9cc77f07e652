// Package validation decides whether a proposed ticket is admissible: type and
// venue compatibility against fixed tables, the per-person admission cap, and
// placement collision within an event.
package validation

import "github.com/mlevkov/tickethub/internal/domain"

// ticketTypesByEvent maps an event type to the ticket types it permits.
var ticketTypesByEvent = map[domain.EventType]map[domain.TicketType]struct{}{
	domain.EventTypeFootball: {
		domain.TicketTypeCheap: {},
		domain.TicketTypeUsual: {},
	},
	domain.EventTypeBaseball: {
		domain.TicketTypeCheap: {},
		domain.TicketTypeUsual: {},
		domain.TicketTypeVIP:   {},
	},
	domain.EventTypeBasketball: {
		domain.TicketTypeUsual: {},
		domain.TicketTypeVIP:   {},
	},
	domain.EventTypeOpera: {
		domain.TicketTypeUsual: {},
		domain.TicketTypeVIP:   {},
	},
	domain.EventTypeConcert: {
		domain.TicketTypeUsual:     {},
		domain.TicketTypeVIP:       {},
		domain.TicketTypeBudgetary: {},
	},
}

// venueTypesByEvent maps an event type to the venue types it permits.
var venueTypesByEvent = map[domain.EventType]map[domain.VenueType]struct{}{
	domain.EventTypeFootball:   {domain.VenueTypeStadium: {}},
	domain.EventTypeBaseball:   {domain.VenueTypeStadium: {}},
	domain.EventTypeBasketball: {domain.VenueTypeStadium: {}},
	domain.EventTypeOpera:      {domain.VenueTypeStadium: {}},
	domain.EventTypeConcert: {
		domain.VenueTypeLoft:     {},
		domain.VenueTypeOpenArea: {},
	},
}

// Compatible reports whether the ticket's type and venue are admissible for
// its event. Absence of a constraint is not a violation: a missing event,
// event type, venue or venue type is trivially compatible.
func Compatible(t domain.Ticket) bool {
	return ticketTypeCompatible(t) && venueCompatible(t)
}

func ticketTypeCompatible(t domain.Ticket) bool {
	if t.Event == nil || t.Event.EventType == "" {
		return true
	}
	allowed, ok := ticketTypesByEvent[t.Event.EventType]
	if !ok {
		return true
	}
	_, ok = allowed[t.Type]
	return ok
}

func venueCompatible(t domain.Ticket) bool {
	if t.Event == nil || t.Event.EventType == "" {
		return true
	}
	if t.Venue == nil || t.Venue.Type == "" {
		return true
	}
	allowed, ok := venueTypesByEvent[t.Event.EventType]
	if !ok {
		return true
	}
	_, ok = allowed[t.Venue.Type]
	return ok
}
