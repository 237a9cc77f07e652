package tickets

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/mlevkov/tickethub/internal/domain"
	"github.com/mlevkov/tickethub/internal/retry"
	"github.com/mlevkov/tickethub/internal/validation"
)

// ImportRecords persists a parsed batch record by record, in order, using
// whatever transaction the context carries. The first violation aborts the
// whole batch with a position-qualified InvalidDataError; serialization
// conflicts and other infrastructure failures propagate unchanged so the
// caller can retry the enclosing transaction.
func (s *Service) ImportRecords(ctx context.Context, records []domain.Ticket) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(records))
	for i, record := range records {
		position := i + 1

		prepared, err := s.prepareRecord(ctx, record, position)
		if err != nil {
			return nil, err
		}

		created, err := s.tickets.Create(ctx, prepared)
		if err != nil {
			if retry.IsSerializationConflict(err) {
				return nil, err
			}
			return nil, domain.InvalidDataf("record #%d: failed to save ticket: %v", position, err)
		}
		ids = append(ids, created.ID)
	}
	return ids, nil
}

// prepareRecord validates one import record, resolves or creates its
// references, and runs the admission checks against the current
// transactional state.
func (s *Service) prepareRecord(ctx context.Context, record domain.Ticket, position int) (domain.Ticket, error) {
	if err := validateTicketFields(record, position); err != nil {
		return domain.Ticket{}, err
	}

	person, err := s.resolvePerson(ctx, record.Person, position)
	if err != nil {
		return domain.Ticket{}, err
	}
	event, err := s.resolveEvent(ctx, record.Event, position)
	if err != nil {
		return domain.Ticket{}, err
	}
	venue, err := s.resolveVenue(ctx, record.Venue, position)
	if err != nil {
		return domain.Ticket{}, err
	}

	record.ID = uuid.Nil
	record.Person = person
	record.Event = event
	record.Venue = venue

	allowed, err := s.checker.PersonAllowed(ctx, record.PersonID(), record.EventID())
	if err != nil {
		return domain.Ticket{}, err
	}
	if !allowed {
		return domain.Ticket{}, domain.InvalidDataf(
			"record #%d: person %s already holds the maximum of %d tickets for event %s",
			position, record.PersonID(), validation.MaxTicketsPerPersonPerEvent, record.EventID())
	}

	free, err := s.checker.PlaceAvailable(ctx, record.EventID(), record.Coordinates)
	if err != nil {
		return domain.Ticket{}, err
	}
	if !free {
		return domain.Ticket{}, domain.InvalidDataf(
			"record #%d: coordinates (%d, %g) are already taken for event %s",
			position, record.Coordinates.X, record.Coordinates.Y, record.EventID())
	}

	if !validation.Compatible(record) {
		return domain.Ticket{}, domain.InvalidDataf(
			"record #%d: ticket type %s is not compatible with its event or venue",
			position, record.Type)
	}

	return record, nil
}

func validateTicketFields(record domain.Ticket, position int) error {
	if strings.TrimSpace(record.Name) == "" {
		return domain.InvalidDataf("record #%d: ticket.name must not be blank", position)
	}
	if record.Price <= 0 {
		return domain.InvalidDataf("record #%d: ticket.price must be positive", position)
	}
	if !record.Type.Valid() {
		return domain.InvalidDataf("record #%d: unknown ticket type %q", position, string(record.Type))
	}
	if record.Number <= 0 {
		return domain.InvalidDataf("record #%d: ticket.number must be positive", position)
	}
	if record.Discount != nil && (*record.Discount <= 0 || *record.Discount > 100) {
		return domain.InvalidDataf("record #%d: ticket.discount must be in (0, 100]", position)
	}
	return nil
}

// resolvePerson loads a referenced person or creates an embedded one.
func (s *Service) resolvePerson(ctx context.Context, person *domain.Person, position int) (*domain.Person, error) {
	if person == nil {
		return nil, nil
	}
	if person.ID != uuid.Nil {
		existing, err := s.persons.GetByID(ctx, person.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.InvalidDataf("record #%d: person with id %s not found", position, person.ID)
			}
			return nil, err
		}
		return &existing, nil
	}

	if strings.TrimSpace(person.PassportID) == "" {
		return nil, domain.InvalidDataf("record #%d: person.passportID must not be blank", position)
	}
	if person.Weight <= 0 {
		return nil, domain.InvalidDataf("record #%d: person.weight must be positive", position)
	}
	if !person.Nationality.Valid() {
		return nil, domain.InvalidDataf("record #%d: unknown nationality %q", position, string(person.Nationality))
	}
	if !person.HairColor.Valid() {
		return nil, domain.InvalidDataf("record #%d: unknown hair color %q", position, string(person.HairColor))
	}
	if person.EyeColor != "" && !person.EyeColor.Valid() {
		return nil, domain.InvalidDataf("record #%d: unknown eye color %q", position, string(person.EyeColor))
	}
	if person.Location == nil {
		return nil, domain.InvalidDataf("record #%d: person.location is required", position)
	}

	taken, err := s.persons.PassportExists(ctx, person.PassportID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.InvalidDataf("record #%d: passport id %q is already registered", position, person.PassportID)
	}

	created, err := s.persons.Create(ctx, *person)
	if err != nil {
		if retry.IsSerializationConflict(err) {
			return nil, err
		}
		return nil, domain.InvalidDataf("record #%d: failed to save person: %v", position, err)
	}
	return &created, nil
}

// resolveEvent loads a referenced event or creates an embedded one.
func (s *Service) resolveEvent(ctx context.Context, event *domain.Event, position int) (*domain.Event, error) {
	if event == nil {
		return nil, nil
	}
	if event.ID != uuid.Nil {
		existing, err := s.events.GetByID(ctx, event.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.InvalidDataf("record #%d: event with id %s not found", position, event.ID)
			}
			return nil, err
		}
		return &existing, nil
	}

	if strings.TrimSpace(event.Name) == "" {
		return nil, domain.InvalidDataf("record #%d: event.name must not be blank", position)
	}
	if event.TicketsCount <= 0 {
		return nil, domain.InvalidDataf("record #%d: event.ticketsCount must be positive", position)
	}
	if event.EventType != "" && !event.EventType.Valid() {
		return nil, domain.InvalidDataf("record #%d: unknown event type %q", position, string(event.EventType))
	}

	created, err := s.events.Create(ctx, *event)
	if err != nil {
		if retry.IsSerializationConflict(err) {
			return nil, err
		}
		return nil, domain.InvalidDataf("record #%d: failed to save event: %v", position, err)
	}
	return &created, nil
}

// resolveVenue loads a referenced venue or creates an embedded one.
func (s *Service) resolveVenue(ctx context.Context, venue *domain.Venue, position int) (*domain.Venue, error) {
	if venue == nil {
		return nil, nil
	}
	if venue.ID != uuid.Nil {
		existing, err := s.venues.GetByID(ctx, venue.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.InvalidDataf("record #%d: venue with id %s not found", position, venue.ID)
			}
			return nil, err
		}
		return &existing, nil
	}

	if strings.TrimSpace(venue.Name) == "" {
		return nil, domain.InvalidDataf("record #%d: venue.name must not be blank", position)
	}
	if venue.Capacity <= 0 {
		return nil, domain.InvalidDataf("record #%d: venue.capacity must be positive", position)
	}
	if venue.Type != "" && !venue.Type.Valid() {
		return nil, domain.InvalidDataf("record #%d: unknown venue type %q", position, string(venue.Type))
	}

	created, err := s.venues.Create(ctx, *venue)
	if err != nil {
		if retry.IsSerializationConflict(err) {
			return nil, err
		}
		return nil, domain.InvalidDataf("record #%d: failed to save venue: %v", position, err)
	}
	return &created, nil
}
