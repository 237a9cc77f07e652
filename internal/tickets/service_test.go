package tickets

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mlevkov/tickethub/internal/domain"
	"github.com/mlevkov/tickethub/internal/retry"
	"github.com/mlevkov/tickethub/internal/validation"
)

type txmStub struct{}

func (txmStub) InTx(ctx context.Context, _ pgx.TxIsoLevel, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type ticketRepoStub struct {
	byID        map[uuid.UUID]domain.Ticket
	countByPair map[uuid.UUID]int
	takenCoords map[uuid.UUID]domain.Coordinates
	created     []domain.Ticket
	updated     []domain.Ticket
	deleted     []uuid.UUID
	createErrs  []error
}

func newTicketRepoStub() *ticketRepoStub {
	return &ticketRepoStub{
		byID:        make(map[uuid.UUID]domain.Ticket),
		countByPair: make(map[uuid.UUID]int),
		takenCoords: make(map[uuid.UUID]domain.Coordinates),
	}
}

func (s *ticketRepoStub) Create(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error) {
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			return domain.Ticket{}, err
		}
	}
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	if ticket.CreationDate.IsZero() {
		ticket.CreationDate = time.Now()
	}
	s.byID[ticket.ID] = ticket
	s.created = append(s.created, ticket)
	return ticket, nil
}

func (s *ticketRepoStub) GetByID(ctx context.Context, id uuid.UUID) (domain.Ticket, error) {
	ticket, ok := s.byID[id]
	if !ok {
		return domain.Ticket{}, domain.ErrNotFound
	}
	return ticket, nil
}

func (s *ticketRepoStub) List(ctx context.Context) ([]domain.Ticket, error) {
	out := make([]domain.Ticket, 0, len(s.byID))
	for _, ticket := range s.byID {
		out = append(out, ticket)
	}
	return out, nil
}

func (s *ticketRepoStub) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := s.byID[id]
	return ok, nil
}

func (s *ticketRepoStub) Update(ctx context.Context, ticket domain.Ticket) error {
	if _, ok := s.byID[ticket.ID]; !ok {
		return domain.ErrNotFound
	}
	s.byID[ticket.ID] = ticket
	s.updated = append(s.updated, ticket)
	return nil
}

func (s *ticketRepoStub) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.byID, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *ticketRepoStub) DeleteByComment(ctx context.Context, comment string) (int64, error) {
	var removed int64
	for id, ticket := range s.byID {
		if ticket.Comment == comment {
			delete(s.byID, id)
			removed++
		}
	}
	return removed, nil
}

func (s *ticketRepoStub) CountByCommentLess(ctx context.Context, comment string) (int64, error) {
	var count int64
	for _, ticket := range s.byID {
		if ticket.Comment < comment {
			count++
		}
	}
	return count, nil
}

func (s *ticketRepoStub) FirstWithEarliestEvent(ctx context.Context) (domain.Ticket, error) {
	for _, ticket := range s.byID {
		return ticket, nil
	}
	return domain.Ticket{}, domain.ErrNotFound
}

func (s *ticketRepoStub) CountByPersonAndEvent(ctx context.Context, personID, eventID uuid.UUID) (int, error) {
	return s.countByPair[personID], nil
}

func (s *ticketRepoStub) ExistsByEventAndCoordinates(ctx context.Context, eventID uuid.UUID, coords domain.Coordinates) (bool, error) {
	taken, ok := s.takenCoords[eventID]
	return ok && taken.Equal(coords), nil
}

type personRepoStub struct {
	byID      map[uuid.UUID]domain.Person
	passports map[string]bool
	created   []domain.Person
}

func newPersonRepoStub() *personRepoStub {
	return &personRepoStub{
		byID:      make(map[uuid.UUID]domain.Person),
		passports: make(map[string]bool),
	}
}

func (s *personRepoStub) Create(ctx context.Context, person domain.Person) (domain.Person, error) {
	if person.ID == uuid.Nil {
		person.ID = uuid.New()
	}
	s.byID[person.ID] = person
	s.passports[person.PassportID] = true
	s.created = append(s.created, person)
	return person, nil
}

func (s *personRepoStub) GetByID(ctx context.Context, id uuid.UUID) (domain.Person, error) {
	person, ok := s.byID[id]
	if !ok {
		return domain.Person{}, domain.ErrNotFound
	}
	return person, nil
}

func (s *personRepoStub) PassportExists(ctx context.Context, passportID string) (bool, error) {
	return s.passports[passportID], nil
}

type eventRepoStub struct {
	byID map[uuid.UUID]domain.Event
}

func newEventRepoStub() *eventRepoStub {
	return &eventRepoStub{byID: make(map[uuid.UUID]domain.Event)}
}

func (s *eventRepoStub) Create(ctx context.Context, event domain.Event) (domain.Event, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	s.byID[event.ID] = event
	return event, nil
}

func (s *eventRepoStub) GetByID(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	event, ok := s.byID[id]
	if !ok {
		return domain.Event{}, domain.ErrNotFound
	}
	return event, nil
}

type venueRepoStub struct {
	byID map[uuid.UUID]domain.Venue
}

func newVenueRepoStub() *venueRepoStub {
	return &venueRepoStub{byID: make(map[uuid.UUID]domain.Venue)}
}

func (s *venueRepoStub) Create(ctx context.Context, venue domain.Venue) (domain.Venue, error) {
	if venue.ID == uuid.Nil {
		venue.ID = uuid.New()
	}
	s.byID[venue.ID] = venue
	return venue, nil
}

func (s *venueRepoStub) GetByID(ctx context.Context, id uuid.UUID) (domain.Venue, error) {
	venue, ok := s.byID[id]
	if !ok {
		return domain.Venue{}, domain.ErrNotFound
	}
	return venue, nil
}

type publisherStub struct {
	actions []string
	ids     []*uuid.UUID
}

func (s *publisherStub) Publish(action string, id *uuid.UUID) {
	s.actions = append(s.actions, action)
	s.ids = append(s.ids, id)
}

type fixture struct {
	service *Service
	tickets *ticketRepoStub
	persons *personRepoStub
	events  *eventRepoStub
	venues  *venueRepoStub
	pub     *publisherStub
}

func newFixture() *fixture {
	tickets := newTicketRepoStub()
	persons := newPersonRepoStub()
	events := newEventRepoStub()
	venues := newVenueRepoStub()
	pub := &publisherStub{}
	service := NewService(txmStub{}, tickets, persons, events, venues,
		validation.NewChecker(tickets), pub, nil)
	service.policy = retry.Policy{MaxRetries: 5, BaseDelay: time.Microsecond, MaxDelay: time.Microsecond}
	return &fixture{
		service: service,
		tickets: tickets,
		persons: persons,
		events:  events,
		venues:  venues,
		pub:     pub,
	}
}

func (f *fixture) seedEvent(eventType domain.EventType) domain.Event {
	event, _ := f.events.Create(context.Background(), domain.Event{
		Name: "match", TicketsCount: 100, EventType: eventType,
	})
	return event
}

func (f *fixture) seedVenue(venueType domain.VenueType) domain.Venue {
	venue, _ := f.venues.Create(context.Background(), domain.Venue{
		Name: "arena", Capacity: 500, Type: venueType,
	})
	return venue
}

func (f *fixture) seedPerson() domain.Person {
	person, _ := f.persons.Create(context.Background(), domain.Person{
		PassportID:  "AB" + uuid.NewString()[:8],
		Weight:      70,
		Nationality: domain.CountryFrance,
		HairColor:   domain.ColorBlack,
		Location:    &domain.Location{X: 1, Y: 2, Z: 3},
	})
	return person
}

func validTicket(f *fixture) domain.Ticket {
	event := f.seedEvent(domain.EventTypeFootball)
	venue := f.seedVenue(domain.VenueTypeStadium)
	person := f.seedPerson()
	return domain.Ticket{
		Name:        "North stand",
		Coordinates: domain.Coordinates{X: 3, Y: 7.5},
		Person:      &domain.Person{ID: person.ID},
		Event:       &domain.Event{ID: event.ID},
		Venue:       &domain.Venue{ID: venue.ID},
		Price:       25,
		Type:        domain.TicketTypeCheap,
		Number:      1,
	}
}

func TestAddTicketSuccess(t *testing.T) {
	f := newFixture()

	result := f.service.AddTicket(context.Background(), validTicket(f))
	if !result.Status {
		t.Fatalf("expected success, got %+v", result)
	}
	if len(f.tickets.created) != 1 {
		t.Fatalf("expected 1 created ticket, got %d", len(f.tickets.created))
	}
	if len(f.pub.actions) != 1 || f.pub.actions[0] != "add" {
		t.Errorf("published actions = %v", f.pub.actions)
	}
	if *f.pub.ids[0] != f.tickets.created[0].ID {
		t.Errorf("published id should be the created ticket id")
	}
}

func TestAddTicketRejectsOverbookedPerson(t *testing.T) {
	f := newFixture()
	ticket := validTicket(f)
	f.tickets.countByPair[ticket.Person.ID] = validation.MaxTicketsPerPersonPerEvent

	result := f.service.AddTicket(context.Background(), ticket)
	if result.Status || !result.InvalidPerson {
		t.Fatalf("expected invalid person rejection, got %+v", result)
	}
	if len(f.tickets.created) != 0 {
		t.Errorf("nothing should be created")
	}
	if len(f.pub.actions) != 0 {
		t.Errorf("nothing should be published")
	}
}

func TestAddTicketRejectsTakenPlace(t *testing.T) {
	f := newFixture()
	ticket := validTicket(f)
	f.tickets.takenCoords[ticket.Event.ID] = ticket.Coordinates

	result := f.service.AddTicket(context.Background(), ticket)
	if result.Status || !result.InvalidPlace {
		t.Fatalf("expected invalid place rejection, got %+v", result)
	}
}

func TestAddTicketRejectsIncompatibleType(t *testing.T) {
	f := newFixture()
	ticket := validTicket(f)
	ticket.Type = domain.TicketTypeVIP // FOOTBALL admits CHEAP and USUAL only

	result := f.service.AddTicket(context.Background(), ticket)
	if result.Status || !result.InvalidCompatibility {
		t.Fatalf("expected compatibility rejection, got %+v", result)
	}
}

func TestAddTicketUnresolvedReference(t *testing.T) {
	f := newFixture()
	ticket := validTicket(f)
	ticket.Event = &domain.Event{ID: uuid.New()}

	result := f.service.AddTicket(context.Background(), ticket)
	if result.Status || result.InvalidPerson || result.InvalidPlace || result.InvalidCompatibility {
		t.Fatalf("expected plain rejection, got %+v", result)
	}
}

func TestAddTicketRetriesSerializationConflicts(t *testing.T) {
	f := newFixture()
	f.tickets.createErrs = []error{retry.ErrSerializationConflict, retry.ErrSerializationConflict}

	result := f.service.AddTicket(context.Background(), validTicket(f))
	if !result.Status {
		t.Fatalf("expected success after retries, got %+v", result)
	}
	if len(f.tickets.created) != 1 {
		t.Errorf("expected exactly one created ticket, got %d", len(f.tickets.created))
	}
}

func TestAddTicketConflictExhaustionRecoversToFalse(t *testing.T) {
	f := newFixture()
	errs := make([]error, 6)
	for i := range errs {
		errs[i] = retry.ErrSerializationConflict
	}
	f.tickets.createErrs = errs

	result := f.service.AddTicket(context.Background(), validTicket(f))
	if result.Status {
		t.Fatal("expected failure after exhausted retries")
	}
	if len(f.pub.actions) != 0 {
		t.Errorf("nothing should be published")
	}
}

func TestUpdateTicket(t *testing.T) {
	f := newFixture()
	created, _ := f.tickets.Create(context.Background(), domain.Ticket{
		Name: "old", Price: 10, Type: domain.TicketTypeUsual, Number: 1,
	})

	updated := created
	updated.Name = "new"
	if !f.service.UpdateTicket(context.Background(), created.ID, updated) {
		t.Fatal("expected update to succeed")
	}
	if f.tickets.byID[created.ID].Name != "new" {
		t.Errorf("ticket not updated")
	}
	if len(f.pub.actions) != 1 || f.pub.actions[0] != "update" {
		t.Errorf("published actions = %v", f.pub.actions)
	}

	if f.service.UpdateTicket(context.Background(), uuid.New(), updated) {
		t.Error("updating an unknown id should fail")
	}
}

func TestRemoveTicket(t *testing.T) {
	f := newFixture()
	created, _ := f.tickets.Create(context.Background(), domain.Ticket{
		Name: "gone", Price: 10, Type: domain.TicketTypeUsual, Number: 1,
	})

	if !f.service.RemoveTicket(context.Background(), created.ID) {
		t.Fatal("expected removal to succeed")
	}
	if f.service.RemoveTicket(context.Background(), created.ID) {
		t.Error("removing twice should fail")
	}
	if len(f.pub.actions) != 1 || f.pub.actions[0] != "delete" {
		t.Errorf("published actions = %v", f.pub.actions)
	}
}

func TestDeleteAllByComment(t *testing.T) {
	f := newFixture()
	f.tickets.Create(context.Background(), domain.Ticket{Name: "a", Comment: "stale", Price: 1, Type: domain.TicketTypeUsual, Number: 1})
	f.tickets.Create(context.Background(), domain.Ticket{Name: "b", Comment: "stale", Price: 1, Type: domain.TicketTypeUsual, Number: 1})
	f.tickets.Create(context.Background(), domain.Ticket{Name: "c", Comment: "fresh", Price: 1, Type: domain.TicketTypeUsual, Number: 1})

	if !f.service.DeleteAllByComment(context.Background(), "stale") {
		t.Fatal("expected deletion to report true")
	}
	if len(f.tickets.byID) != 1 {
		t.Errorf("expected 1 remaining ticket, got %d", len(f.tickets.byID))
	}

	if f.service.DeleteAllByComment(context.Background(), "") {
		t.Error("blank comment should delete nothing")
	}
	if f.service.DeleteAllByComment(context.Background(), "missing") {
		t.Error("unmatched comment should report false")
	}
}

func TestSellTicket(t *testing.T) {
	f := newFixture()
	person := f.seedPerson()
	created, _ := f.tickets.Create(context.Background(), domain.Ticket{
		Name: "resale", Price: 10, Type: domain.TicketTypeUsual, Number: 1,
	})

	if !f.service.SellTicket(context.Background(), created.ID, person.ID, 99.5) {
		t.Fatal("expected sale to succeed")
	}
	sold := f.tickets.byID[created.ID]
	if sold.Price != 99.5 {
		t.Errorf("price = %v", sold.Price)
	}
	if sold.Person == nil || sold.Person.ID != person.ID {
		t.Errorf("ticket not assigned to buyer")
	}
	if len(f.pub.actions) != 1 || f.pub.actions[0] != "sell" {
		t.Errorf("published actions = %v", f.pub.actions)
	}

	if f.service.SellTicket(context.Background(), created.ID, person.ID, 0) {
		t.Error("non-positive amount should fail")
	}
	if f.service.SellTicket(context.Background(), uuid.New(), person.ID, 5) {
		t.Error("unknown ticket should fail")
	}
	if f.service.SellTicket(context.Background(), created.ID, uuid.New(), 5) {
		t.Error("unknown person should fail")
	}
}

func TestCloneVip(t *testing.T) {
	f := newFixture()
	created, _ := f.tickets.Create(context.Background(), domain.Ticket{
		Name: "source", Price: 40, Type: domain.TicketTypeUsual, Number: 2,
	})

	clone := f.service.CloneVip(context.Background(), created.ID)
	if clone == nil {
		t.Fatal("expected a clone")
	}
	if clone.ID == created.ID {
		t.Error("clone must get a new id")
	}
	if clone.Type != domain.TicketTypeVIP {
		t.Errorf("clone type = %s", clone.Type)
	}
	if clone.Price != 80 {
		t.Errorf("clone price = %v, want doubled", clone.Price)
	}
	if clone.Name != "source" || clone.Number != 2 {
		t.Errorf("clone should keep the remaining fields: %+v", clone)
	}

	if f.service.CloneVip(context.Background(), uuid.New()) != nil {
		t.Error("cloning an unknown id should return nil")
	}
}

func TestImportRecordsCreatesEmbeddedEntities(t *testing.T) {
	f := newFixture()

	records := []domain.Ticket{{
		Name:        "bundle",
		Coordinates: domain.Coordinates{X: 1, Y: 1},
		Person: &domain.Person{
			PassportID:  "XK4411",
			Weight:      82,
			Nationality: domain.CountrySpain,
			HairColor:   domain.ColorBrown,
			Location:    &domain.Location{X: 0, Y: 0, Z: 0},
		},
		Event:  &domain.Event{Name: "finals", TicketsCount: 10, EventType: domain.EventTypeConcert},
		Venue:  &domain.Venue{Name: "hall", Capacity: 300, Type: domain.VenueTypeLoft},
		Price:  75,
		Type:   domain.TicketTypeVIP,
		Number: 1,
	}}

	ids, err := f.service.ImportRecords(context.Background(), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 id, got %d", len(ids))
	}
	if len(f.persons.created) != 1 {
		t.Errorf("embedded person should be created")
	}
	stored := f.tickets.byID[ids[0]]
	if stored.Person == nil || stored.Person.ID == uuid.Nil {
		t.Errorf("stored ticket should reference the created person")
	}
}

func TestImportRecordsResolvesReferences(t *testing.T) {
	f := newFixture()
	record := validTicket(f)

	ids, err := f.service.ImportRecords(context.Background(), []domain.Ticket{record})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := f.tickets.byID[ids[0]]
	if stored.Event == nil || stored.Event.Name != "match" {
		t.Errorf("reference should be hydrated from the repository: %+v", stored.Event)
	}
}

func TestImportRecordsRejectsUnknownReference(t *testing.T) {
	f := newFixture()
	record := validTicket(f)
	record.Person = &domain.Person{ID: uuid.New()}

	_, err := f.service.ImportRecords(context.Background(), []domain.Ticket{record})
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.IsInvalidData(err) {
		t.Fatalf("expected InvalidDataError, got %v", err)
	}
	if !strings.Contains(err.Error(), "record #1") {
		t.Errorf("error should carry the record position: %q", err)
	}
}

func TestImportRecordsRejectsDuplicatePassport(t *testing.T) {
	f := newFixture()
	existing := f.seedPerson()

	record := validTicket(f)
	record.Person = &domain.Person{
		PassportID:  existing.PassportID,
		Weight:      60,
		Nationality: domain.CountryIndia,
		HairColor:   domain.ColorRed,
		Location:    &domain.Location{},
	}

	_, err := f.service.ImportRecords(context.Background(), []domain.Ticket{record})
	if err == nil || !strings.Contains(err.Error(), "passport") {
		t.Fatalf("expected duplicate passport rejection, got %v", err)
	}
}

func TestImportRecordsPositionInFieldError(t *testing.T) {
	f := newFixture()
	good := validTicket(f)
	bad := validTicket(f)
	bad.Price = 0

	_, err := f.service.ImportRecords(context.Background(), []domain.Ticket{good, bad})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "record #2") {
		t.Errorf("error should name record #2: %q", err)
	}
}

func TestImportRecordsEnforcesAdmissionCap(t *testing.T) {
	f := newFixture()
	record := validTicket(f)
	f.tickets.countByPair[record.Person.ID] = validation.MaxTicketsPerPersonPerEvent

	_, err := f.service.ImportRecords(context.Background(), []domain.Ticket{record})
	if err == nil || !strings.Contains(err.Error(), "maximum") {
		t.Fatalf("expected admission rejection, got %v", err)
	}
}

func TestImportRecordsPropagatesConflictsUnwrapped(t *testing.T) {
	f := newFixture()
	f.tickets.createErrs = []error{retry.ErrSerializationConflict}

	_, err := f.service.ImportRecords(context.Background(), []domain.Ticket{validTicket(f)})
	if !retry.IsSerializationConflict(err) {
		t.Fatalf("conflicts must stay classifiable for the retry loop, got %v", err)
	}
	if domain.IsInvalidData(err) {
		t.Error("conflicts must not be converted to invalid-data errors")
	}
}

func TestReadsRecoverToSentinels(t *testing.T) {
	f := newFixture()

	if f.service.GetTicket(context.Background(), uuid.New()) != nil {
		t.Error("unknown ticket should read as nil")
	}
	if f.service.GetWithEarliestEvent(context.Background()) != nil {
		t.Error("empty store should read as nil")
	}
	if got := f.service.CountByCommentLess(context.Background(), "zzz"); got != 0 {
		t.Errorf("empty store count = %d", got)
	}
}
