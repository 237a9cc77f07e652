// Package tickets implements the command side of the ticket keeper: retried
// single-record mutations under serializable isolation, and the record-level
// persistence phase of bulk imports.
package tickets

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mlevkov/tickethub/internal/db"
	"github.com/mlevkov/tickethub/internal/domain"
	"github.com/mlevkov/tickethub/internal/repository"
	"github.com/mlevkov/tickethub/internal/retry"
	"github.com/mlevkov/tickethub/internal/validation"
)

// Publisher pushes change notifications after a mutation commits.
type Publisher interface {
	Publish(action string, id *uuid.UUID)
}

// MutationResult is the outcome of AddTicket. Status false with no reason
// flag set means the save itself failed; the reason flags qualify business
// rejections. Transient failures that exhaust their retries recover to the
// same Status false, which callers cannot distinguish from a rejection
// without the flags.
type MutationResult struct {
	Status               bool `json:"status"`
	InvalidPerson        bool `json:"invalidPerson,omitempty"`
	InvalidPlace         bool `json:"invalidPlace,omitempty"`
	InvalidCompatibility bool `json:"invalidCompatibility,omitempty"`
}

// Service coordinates ticket mutations.
type Service struct {
	txm     db.TxManager
	tickets repository.TicketRepository
	persons repository.PersonRepository
	events  repository.EventRepository
	venues  repository.VenueRepository
	checker *validation.Checker
	pub     Publisher
	policy  retry.Policy
	logger  *slog.Logger
}

// NewService wires the command service.
func NewService(
	txm db.TxManager,
	tickets repository.TicketRepository,
	persons repository.PersonRepository,
	events repository.EventRepository,
	venues repository.VenueRepository,
	checker *validation.Checker,
	pub Publisher,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		txm:     txm,
		tickets: tickets,
		persons: persons,
		events:  events,
		venues:  venues,
		checker: checker,
		pub:     pub,
		policy:  retry.DefaultPolicy(),
		logger:  logger,
	}
}

// AddTicket validates and persists one new ticket. References to person,
// event and venue must resolve by id; admission, placement and compatibility
// rules run as pre-checks inside the same serializable transaction as the
// insert.
func (s *Service) AddTicket(ctx context.Context, ticket domain.Ticket) MutationResult {
	var createdID uuid.UUID

	result, err := retry.Do(ctx, s.policy, func(ctx context.Context) (MutationResult, error) {
		var res MutationResult
		err := s.txm.InTx(ctx, pgx.Serializable, func(ctx context.Context) error {
			resolved, err := s.resolveReferences(ctx, ticket)
			if err != nil {
				return err
			}
			if resolved == nil {
				// A reference did not resolve; reported as a plain rejection.
				return nil
			}

			allowed, err := s.checker.PersonAllowed(ctx, resolved.PersonID(), resolved.EventID())
			if err != nil {
				return err
			}
			if !allowed {
				res = MutationResult{InvalidPerson: true}
				return nil
			}

			free, err := s.checker.PlaceAvailable(ctx, resolved.EventID(), resolved.Coordinates)
			if err != nil {
				return err
			}
			if !free {
				res = MutationResult{InvalidPlace: true}
				return nil
			}

			if !validation.Compatible(*resolved) {
				res = MutationResult{InvalidCompatibility: true}
				return nil
			}

			created, err := s.tickets.Create(ctx, *resolved)
			if err != nil {
				return err
			}
			createdID = created.ID
			res = MutationResult{Status: true}
			return nil
		})
		return res, err
	})
	if err != nil {
		s.logger.Warn("add ticket failed", "error", err)
		return MutationResult{}
	}

	if result.Status {
		s.pub.Publish("add", &createdID)
	}
	return result
}

// UpdateTicket replaces the ticket stored under id. Returns false when the
// id does not exist or the write fails.
func (s *Service) UpdateTicket(ctx context.Context, id uuid.UUID, ticket domain.Ticket) bool {
	ok, err := retry.Do(ctx, s.policy, func(ctx context.Context) (bool, error) {
		var updated bool
		err := s.txm.InTx(ctx, pgx.Serializable, func(ctx context.Context) error {
			exists, err := s.tickets.Exists(ctx, id)
			if err != nil {
				return err
			}
			if !exists {
				return nil
			}
			ticket.ID = id
			if err := s.tickets.Update(ctx, ticket); err != nil {
				return err
			}
			updated = true
			return nil
		})
		return updated, err
	})
	if err != nil {
		s.logger.Warn("update ticket failed", "ticket_id", id, "error", err)
		return false
	}

	if ok {
		s.pub.Publish("update", &id)
	}
	return ok
}

// RemoveTicket deletes by id. Returns false when the id does not exist or
// the delete fails.
func (s *Service) RemoveTicket(ctx context.Context, id uuid.UUID) bool {
	ok, err := retry.Do(ctx, s.policy, func(ctx context.Context) (bool, error) {
		var removed bool
		err := s.txm.InTx(ctx, pgx.Serializable, func(ctx context.Context) error {
			exists, err := s.tickets.Exists(ctx, id)
			if err != nil {
				return err
			}
			if !exists {
				return nil
			}
			if err := s.tickets.Delete(ctx, id); err != nil {
				return err
			}
			removed = true
			return nil
		})
		return removed, err
	})
	if err != nil {
		s.logger.Warn("remove ticket failed", "ticket_id", id, "error", err)
		return false
	}

	if ok {
		s.pub.Publish("delete", &id)
	}
	return ok
}

// DeleteAllByComment removes every ticket carrying the exact comment.
// A blank comment deletes nothing.
func (s *Service) DeleteAllByComment(ctx context.Context, comment string) bool {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return false
	}

	ok, err := retry.Do(ctx, s.policy, func(ctx context.Context) (bool, error) {
		var any bool
		err := s.txm.InTx(ctx, pgx.Serializable, func(ctx context.Context) error {
			removed, err := s.tickets.DeleteByComment(ctx, comment)
			if err != nil {
				return err
			}
			any = removed > 0
			return nil
		})
		return any, err
	})
	if err != nil {
		s.logger.Warn("delete by comment failed", "error", err)
		return false
	}

	if ok {
		s.pub.Publish("delete", nil)
	}
	return ok
}

// SellTicket assigns the ticket to the person at the given price. Returns
// false for a non-positive amount, an unresolved ticket or person, or a
// failed write.
func (s *Service) SellTicket(ctx context.Context, ticketID, personID uuid.UUID, amount float64) bool {
	if amount <= 0 {
		return false
	}

	ok, err := retry.Do(ctx, s.policy, func(ctx context.Context) (bool, error) {
		var sold bool
		err := s.txm.InTx(ctx, pgx.Serializable, func(ctx context.Context) error {
			ticket, err := s.tickets.GetByID(ctx, ticketID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil
				}
				return err
			}
			person, err := s.persons.GetByID(ctx, personID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil
				}
				return err
			}

			ticket.Price = amount
			ticket.Person = &person
			if err := s.tickets.Update(ctx, ticket); err != nil {
				return err
			}
			sold = true
			return nil
		})
		return sold, err
	})
	if err != nil {
		s.logger.Warn("sell ticket failed", "ticket_id", ticketID, "error", err)
		return false
	}

	if ok {
		s.pub.Publish("sell", &ticketID)
	}
	return ok
}

// CloneVip copies an existing ticket as a VIP ticket at double the price.
// Returns nil when the source does not exist or the write fails.
func (s *Service) CloneVip(ctx context.Context, ticketID uuid.UUID) *domain.Ticket {
	clone, err := retry.Do(ctx, s.policy, func(ctx context.Context) (*domain.Ticket, error) {
		var created *domain.Ticket
		err := s.txm.InTx(ctx, pgx.Serializable, func(ctx context.Context) error {
			src, err := s.tickets.GetByID(ctx, ticketID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil
				}
				return err
			}

			dup := src
			dup.ID = uuid.Nil
			dup.CreationDate = time.Time{}
			dup.Type = domain.TicketTypeVIP
			dup.Price = src.Price * 2

			stored, err := s.tickets.Create(ctx, dup)
			if err != nil {
				return err
			}
			created = &stored
			return nil
		})
		return created, err
	})
	if err != nil {
		s.logger.Warn("clone ticket failed", "ticket_id", ticketID, "error", err)
		return nil
	}

	if clone != nil {
		s.pub.Publish("clone", &clone.ID)
	}
	return clone
}

// GetTicket returns nil when the id does not resolve or the read fails.
func (s *Service) GetTicket(ctx context.Context, id uuid.UUID) *domain.Ticket {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("get ticket failed", "ticket_id", id, "error", err)
		}
		return nil
	}
	return &ticket
}

// GetTickets returns nil when the read fails.
func (s *Service) GetTickets(ctx context.Context) []domain.Ticket {
	tickets, err := s.tickets.List(ctx)
	if err != nil {
		s.logger.Warn("list tickets failed", "error", err)
		return nil
	}
	return tickets
}

// GetWithEarliestEvent returns the ticket linked to the oldest event, or nil.
func (s *Service) GetWithEarliestEvent(ctx context.Context) *domain.Ticket {
	ticket, err := s.tickets.FirstWithEarliestEvent(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("get ticket with earliest event failed", "error", err)
		}
		return nil
	}
	return &ticket
}

// CountByCommentLess counts tickets whose comment sorts before the given
// one. Recovers to zero on failure.
func (s *Service) CountByCommentLess(ctx context.Context, comment string) int64 {
	count, err := s.tickets.CountByCommentLess(ctx, comment)
	if err != nil {
		s.logger.Warn("count by comment failed", "error", err)
		return 0
	}
	return count
}

// resolveReferences loads person, event and venue by id for a single-record
// mutation. Returns nil (no error) when a reference does not resolve.
func (s *Service) resolveReferences(ctx context.Context, ticket domain.Ticket) (*domain.Ticket, error) {
	if ticket.Person != nil && ticket.Person.ID != uuid.Nil {
		person, err := s.persons.GetByID(ctx, ticket.Person.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		ticket.Person = &person
	}
	if ticket.Event != nil && ticket.Event.ID != uuid.Nil {
		event, err := s.events.GetByID(ctx, ticket.Event.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		ticket.Event = &event
	}
	if ticket.Venue != nil && ticket.Venue.ID != uuid.Nil {
		venue, err := s.venues.GetByID(ctx, ticket.Venue.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		ticket.Venue = &venue
	}
	return &ticket, nil
}
