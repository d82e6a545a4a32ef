// Package service resolves professionals' decisions on their assignments.
//
// Accept is the only place a lead changes hands. It runs as one store
// transaction that locks the lead, then the assignment, then the winner's
// balance, so of any number of concurrent accepts for one lead exactly one
// commits as the winner and pays; every other PENDING assignment of that lead
// becomes MISSED in the same commit.
package service

import (
	"context"
	"time"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/events"
	ledger "leadmarket_backend/internal/ledger/service"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	opAccept = "assignments.accept"
	opReject = "assignments.reject"

	defaultAcceptTimeout = 10 * time.Second

	reasonAccepted      = "accepted by professional"
	reasonRejected      = "rejected by professional"
	reasonLostToWinner  = "another professional accepted the lead"
	reasonLeadNotOpen   = "lead no longer open"
	actionAccept        = "accept"
	actionReject        = "reject"
	outcomeAccepted     = "accepted"
	outcomeTaken        = "lead_already_taken"
	outcomeLeadNotOpen  = "lead_not_open"
	outcomeRejected     = "rejected"
	outcomeErrorPrefix  = "error:"
	defaultOutcomeLabel = "none"
)

// Ledger charges the winner inside the accept transaction.
type Ledger interface {
	TryDebit(ctx context.Context, q store.Queries, d ledger.Debit) (domain.CreditEntry, error)
}

// AcceptResult is what the winner gets back.
type AcceptResult struct {
	Assignment     domain.Assignment
	Contact        domain.ContactDetails
	CreditsCharged int64
	BalanceAfter   int64
}

// Service is the assignment resolver.
type Service struct {
	store         store.Store
	ledger        Ledger
	bus           events.Bus
	log           *logger.Logger
	acceptTimeout time.Duration
	now           func() time.Time
}

// New creates the resolver.
func New(st store.Store, ledgerSvc Ledger, bus events.Bus, cfg config.ResolverConfig, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	timeout := defaultAcceptTimeout
	if cfg != nil && cfg.GetAcceptTimeout() > 0 {
		timeout = cfg.GetAcceptTimeout()
	}
	return &Service{
		store:         st,
		ledger:        ledgerSvc,
		bus:           bus,
		log:           log,
		acceptTimeout: timeout,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Accept lets professionalID claim the lead behind assignmentID.
//
// Failures carry a stable code: NotFound, Forbidden, AssignmentNotPending,
// LeadAlreadyTaken, InsufficientCredits, TransientStoreError or
// OutcomeUnknown. On OutcomeUnknown the caller must re-read the assignment;
// calling Accept again is safe because a decided assignment is never
// decided twice.
func (s *Service) Accept(ctx context.Context, assignmentID, professionalID uuid.UUID) (AcceptResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.acceptTimeout)
	defer cancel()

	var (
		result     AcceptResult
		outcome    string
		missed     []uuid.UUID
		losers     []uuid.UUID
		customerID uuid.UUID
	)
	err := s.store.WithinTx(ctx, opAccept, func(q store.Queries) error {
		result, outcome, missed, losers, customerID = AcceptResult{}, defaultOutcomeLabel, nil, nil, uuid.Nil

		a, err := s.loadOwned(ctx, q, assignmentID, professionalID)
		if err != nil {
			return err
		}
		lead, err := q.LockLead(ctx, a.LeadID)
		if err != nil {
			return err
		}
		if a, err = q.LockAssignment(ctx, assignmentID); err != nil {
			return err
		}
		taken, err := q.HasAcceptedAssignment(ctx, lead.ID)
		if err != nil {
			return err
		}

		if a.Status != domain.AssignmentPending {
			if a.Status == domain.AssignmentMissed && taken {
				return domain.ErrLeadAlreadyTaken().WithOp(opAccept)
			}
			return domain.ErrAssignmentNotPending(a.Status).WithOp(opAccept)
		}

		now := s.now()
		if taken || lead.Status != domain.LeadOpen {
			reason := reasonLostToWinner
			outcome = outcomeTaken
			if !taken {
				reason, outcome = reasonLeadNotOpen, outcomeLeadNotOpen
			}
			missed, _, err = s.markMissed(ctx, q, lead.ID, uuid.Nil, reason, now)
			return err
		}

		service, err := q.GetService(ctx, lead.ServiceID)
		if err != nil {
			return err
		}
		entry, err := s.ledger.TryDebit(ctx, q, ledger.Debit{
			ProfessionalID: professionalID,
			Amount:         service.CreditCost,
			LeadID:         lead.ID,
			AssignmentID:   a.ID,
		})
		if err != nil {
			return err
		}
		balanceAfter := entry.BalanceAfter
		if entry.ID == uuid.Nil {
			if balanceAfter, err = q.GetBalance(ctx, professionalID); err != nil {
				return err
			}
		}

		if err := q.SetAssignmentStatus(ctx, a.ID, domain.AssignmentAccepted, &now, now); err != nil {
			return err
		}
		actor := professionalID
		if err := q.InsertAssignmentTransition(ctx, domain.AssignmentTransition{
			ID:           uuid.New(),
			AssignmentID: a.ID,
			From:         domain.AssignmentPending,
			To:           domain.AssignmentAccepted,
			ActorID:      &actor,
			Reason:       reasonAccepted,
			CreatedAt:    now,
		}); err != nil {
			return err
		}
		if err := q.UpdateLeadStatus(ctx, lead.ID, domain.LeadAssigned, now); err != nil {
			return err
		}
		if missed, losers, err = s.markMissed(ctx, q, lead.ID, a.ID, reasonLostToWinner, now); err != nil {
			return err
		}

		a.Status = domain.AssignmentAccepted
		a.DecidedAt = &now
		a.UpdatedAt = now
		result = AcceptResult{
			Assignment:     a,
			Contact:        lead.Contact,
			CreditsCharged: service.CreditCost,
			BalanceAfter:   balanceAfter,
		}
		customerID = lead.CustomerID
		outcome = outcomeAccepted
		return nil
	})

	log := s.log.WithContext(ctx)
	if err != nil {
		log.AssignmentDecision(actionAccept, assignmentID.String(), professionalID.String(), outcomeErrorPrefix+codeOf(err))
		return AcceptResult{}, err
	}
	log.AssignmentDecision(actionAccept, assignmentID.String(), professionalID.String(), outcome)

	switch outcome {
	case outcomeTaken:
		return AcceptResult{}, domain.ErrLeadAlreadyTaken().WithOp(opAccept)
	case outcomeLeadNotOpen:
		return AcceptResult{}, domain.ErrAssignmentNotPending(domain.AssignmentMissed).WithOp(opAccept)
	}

	s.publish(ctx, events.LeadAccepted{
		BaseEvent:           events.NewBaseEvent(),
		AssignmentID:        result.Assignment.ID,
		LeadID:              result.Assignment.LeadID,
		ProfessionalID:      professionalID,
		CustomerID:          customerID,
		CreditsCharged:      result.CreditsCharged,
		Missed:              missed,
		MissedProfessionals: losers,
	})
	return result, nil
}

// Reject declines a PENDING assignment. No credits move and the lead is untouched.
func (s *Service) Reject(ctx context.Context, assignmentID, professionalID uuid.UUID, reason string) (domain.Assignment, error) {
	var rejected domain.Assignment
	err := s.store.WithinTx(ctx, opReject, func(q store.Queries) error {
		a, err := s.loadOwned(ctx, q, assignmentID, professionalID)
		if err != nil {
			return err
		}
		if _, err := q.LockLead(ctx, a.LeadID); err != nil {
			return err
		}
		if a, err = q.LockAssignment(ctx, assignmentID); err != nil {
			return err
		}
		if a.Status != domain.AssignmentPending {
			return domain.ErrAssignmentNotPending(a.Status).WithOp(opReject)
		}

		now := s.now()
		if err := q.SetAssignmentStatus(ctx, a.ID, domain.AssignmentRejected, &now, now); err != nil {
			return err
		}
		actor := professionalID
		if reason == "" {
			reason = reasonRejected
		}
		if err := q.InsertAssignmentTransition(ctx, domain.AssignmentTransition{
			ID:           uuid.New(),
			AssignmentID: a.ID,
			From:         domain.AssignmentPending,
			To:           domain.AssignmentRejected,
			ActorID:      &actor,
			Reason:       reason,
			CreatedAt:    now,
		}); err != nil {
			return err
		}
		a.Status = domain.AssignmentRejected
		a.DecidedAt = &now
		a.UpdatedAt = now
		rejected = a
		return nil
	})

	log := s.log.WithContext(ctx)
	if err != nil {
		log.AssignmentDecision(actionReject, assignmentID.String(), professionalID.String(), outcomeErrorPrefix+codeOf(err))
		return domain.Assignment{}, err
	}
	log.AssignmentDecision(actionReject, assignmentID.String(), professionalID.String(), outcomeRejected)

	s.publish(ctx, events.AssignmentRejected{
		BaseEvent:      events.NewBaseEvent(),
		AssignmentID:   rejected.ID,
		LeadID:         rejected.LeadID,
		ProfessionalID: professionalID,
		Reason:         reason,
	})
	return rejected, nil
}

// ListForProfessional is the professional's inbox, optionally filtered by status.
// Contact details are never part of it.
func (s *Service) ListForProfessional(ctx context.Context, professionalID uuid.UUID, status *domain.AssignmentStatus) ([]domain.AssignmentWithLead, error) {
	return s.store.ListAssignmentsByProfessional(ctx, professionalID, status)
}

// Get returns one assignment with the lead's contact details when the
// caller has won it.
func (s *Service) Get(ctx context.Context, assignmentID, professionalID uuid.UUID) (domain.Assignment, *domain.ContactDetails, error) {
	a, err := s.loadOwned(ctx, s.store, assignmentID, professionalID)
	if err != nil {
		return domain.Assignment{}, nil, err
	}
	if a.Status != domain.AssignmentAccepted {
		return a, nil, nil
	}
	lead, err := s.store.GetLead(ctx, a.LeadID)
	if err != nil {
		return domain.Assignment{}, nil, err
	}
	return a, &lead.Contact, nil
}

func (s *Service) loadOwned(ctx context.Context, q store.Queries, assignmentID, professionalID uuid.UUID) (domain.Assignment, error) {
	a, err := q.GetAssignment(ctx, assignmentID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if a.ProfessionalID != professionalID {
		return domain.Assignment{}, domain.ErrForbidden("assignment belongs to another professional")
	}
	return a, nil
}

// markMissed flips every other PENDING assignment of the lead and returns the
// flipped ids with their owners.
func (s *Service) markMissed(ctx context.Context, q store.Queries, leadID, winnerID uuid.UUID, reason string, now time.Time) ([]uuid.UUID, []uuid.UUID, error) {
	missed, err := q.MarkPendingAssignmentsMissed(ctx, leadID, winnerID, now)
	if err != nil {
		return nil, nil, err
	}
	owners := make([]uuid.UUID, 0, len(missed))
	for _, id := range missed {
		a, err := q.GetAssignment(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		owners = append(owners, a.ProfessionalID)
		if err := q.InsertAssignmentTransition(ctx, domain.AssignmentTransition{
			ID:           uuid.New(),
			AssignmentID: id,
			From:         domain.AssignmentPending,
			To:           domain.AssignmentMissed,
			Reason:       reason,
			CreatedAt:    now,
		}); err != nil {
			return nil, nil, err
		}
	}
	return missed, owners, nil
}

func codeOf(err error) string {
	if code := apperr.CodeOf(err); code != "" {
		return code
	}
	return apperr.CodeInternal
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, event)
}
