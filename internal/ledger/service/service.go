// Package service implements the credit ledger: a professional's balance and
// the audit trail of every movement.
package service

import (
	"context"
	"time"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	opCredit      = "ledger.credit"
	opTryDebit    = "ledger.try_debit"
	opListEntries = "ledger.list_entries"
)

// Service owns credit balances.
type Service struct {
	store store.Store
	bus   events.Bus
	log   *logger.Logger
	now   func() time.Time
}

// New creates the ledger service.
func New(st store.Store, bus events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{store: st, bus: bus, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Debit describes one charge. LeadID and AssignmentID are recorded on the entry.
type Debit struct {
	ProfessionalID uuid.UUID
	Amount         int64
	LeadID         uuid.UUID
	AssignmentID   uuid.UUID
}

// CreditResult is the outcome of a top-up.
type CreditResult struct {
	Entry     domain.CreditEntry
	Balance   int64
	Duplicate bool
}

// GetBalance returns the current balance.
func (s *Service) GetBalance(ctx context.Context, professionalID uuid.UUID) (int64, error) {
	return s.store.GetBalance(ctx, professionalID)
}

// TryDebit charges d.Amount inside the caller's transaction. It never commits
// on its own, so an enclosing rollback undoes the charge. A zero amount is a
// no-op and returns a zero entry.
func (s *Service) TryDebit(ctx context.Context, q store.Queries, d Debit) (domain.CreditEntry, error) {
	if d.Amount < 0 {
		return domain.CreditEntry{}, domain.ErrValidation("debit amount must not be negative").WithOp(opTryDebit)
	}
	if d.Amount == 0 {
		return domain.CreditEntry{}, nil
	}

	balance, err := q.LockBalance(ctx, d.ProfessionalID)
	if err != nil {
		return domain.CreditEntry{}, err
	}
	if balance < d.Amount {
		return domain.CreditEntry{}, domain.ErrInsufficientCredits(balance, d.Amount).WithOp(opTryDebit)
	}

	now := s.now()
	after, ok, err := q.DebitBalance(ctx, d.ProfessionalID, d.Amount, now)
	if err != nil {
		return domain.CreditEntry{}, err
	}
	if !ok {
		return domain.CreditEntry{}, domain.ErrInsufficientCredits(balance, d.Amount).WithOp(opTryDebit)
	}

	entry := domain.CreditEntry{
		ID:             uuid.New(),
		ProfessionalID: d.ProfessionalID,
		Kind:           domain.EntryDebit,
		Amount:         d.Amount,
		BalanceAfter:   after,
		LeadID:         optionalID(d.LeadID),
		AssignmentID:   optionalID(d.AssignmentID),
		CreatedAt:      now,
	}
	if err := q.InsertCreditEntry(ctx, entry); err != nil {
		return domain.CreditEntry{}, err
	}
	return entry, nil
}

// Credit adds amount to the balance in its own transaction. A non-empty
// reference that was already applied returns the original entry instead of
// crediting twice.
func (s *Service) Credit(ctx context.Context, professionalID uuid.UUID, amount int64, reference string) (CreditResult, error) {
	if amount <= 0 {
		return CreditResult{}, domain.ErrValidation("credit amount must be positive").WithOp(opCredit)
	}

	var result CreditResult
	err := s.store.WithinTx(ctx, opCredit, func(q store.Queries) error {
		result = CreditResult{}

		if reference != "" {
			existing, err := q.GetCreditEntryByReference(ctx, professionalID, reference)
			switch {
			case err == nil:
				result = CreditResult{Entry: existing, Balance: existing.BalanceAfter, Duplicate: true}
				return nil
			case !apperr.Is(err, apperr.KindNotFound):
				return err
			}
		}

		if _, err := q.LockBalance(ctx, professionalID); err != nil {
			return err
		}
		now := s.now()
		balance, err := q.CreditBalance(ctx, professionalID, amount, now)
		if err != nil {
			return err
		}
		entry := domain.CreditEntry{
			ID:             uuid.New(),
			ProfessionalID: professionalID,
			Kind:           domain.EntryCredit,
			Amount:         amount,
			BalanceAfter:   balance,
			Reference:      reference,
			CreatedAt:      now,
		}
		if err := q.InsertCreditEntry(ctx, entry); err != nil {
			return err
		}
		result = CreditResult{Entry: entry, Balance: balance}
		return nil
	})
	if err != nil {
		return CreditResult{}, err
	}

	if !result.Duplicate && s.bus != nil {
		s.bus.Publish(ctx, events.CreditsAdded{
			BaseEvent:      events.NewBaseEvent(),
			ProfessionalID: professionalID,
			Amount:         amount,
			Balance:        result.Balance,
			Reference:      reference,
		})
	}
	s.log.Info("credits added",
		"professional_id", professionalID.String(),
		"amount", amount,
		"balance", result.Balance,
		"duplicate", result.Duplicate,
	)
	return result, nil
}

// ListEntries returns the professional's ledger history, newest first.
func (s *Service) ListEntries(ctx context.Context, professionalID uuid.UUID, page store.Page) ([]domain.CreditEntry, int, error) {
	if _, err := s.store.GetBalance(ctx, professionalID); err != nil {
		return nil, 0, err
	}
	items, total, err := s.store.ListCreditEntries(ctx, professionalID, page)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, "list credit entries", err).WithOp(opListEntries)
	}
	return items, total, nil
}

func optionalID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
