// Package store defines the transactional persistence contract shared by the
// lead, assignment, ledger and notification modules.
//
// All business state lives behind Queries. Anything that must be atomic runs
// inside Store.WithinTx; adapters choose an isolation level strong enough that
// a read-check-write inside one transaction cannot interleave with another.
package store

import (
	"context"
	"time"

	"leadmarket_backend/internal/domain"

	"github.com/google/uuid"
)

// Queries is the full set of reads and writes. Lock* methods take row locks
// where the backend supports them and must be used inside WithinTx.
type Queries interface {
	CreateService(ctx context.Context, svc domain.Service) error
	GetService(ctx context.Context, id uuid.UUID) (domain.Service, error)
	ListServices(ctx context.Context) ([]domain.Service, error)

	CreateProfessional(ctx context.Context, p domain.Professional) error
	GetProfessional(ctx context.Context, id uuid.UUID) (domain.Professional, error)
	UpdateProfessionalProfile(ctx context.Context, p ProfileUpdate) error
	ReplaceProfessionalServices(ctx context.Context, professionalID uuid.UUID, serviceIDs []uuid.UUID) error
	// ListProfessionalIDsByService returns active professionals registered for the service, oldest first.
	ListProfessionalIDsByService(ctx context.Context, serviceID uuid.UUID) ([]uuid.UUID, error)

	GetBalance(ctx context.Context, professionalID uuid.UUID) (int64, error)
	LockBalance(ctx context.Context, professionalID uuid.UUID) (int64, error)
	// DebitBalance decrements only when the balance covers amount; ok reports whether it did.
	DebitBalance(ctx context.Context, professionalID uuid.UUID, amount int64, at time.Time) (balance int64, ok bool, err error)
	CreditBalance(ctx context.Context, professionalID uuid.UUID, amount int64, at time.Time) (int64, error)
	InsertCreditEntry(ctx context.Context, e domain.CreditEntry) error
	GetCreditEntryByReference(ctx context.Context, professionalID uuid.UUID, reference string) (domain.CreditEntry, error)
	ListCreditEntries(ctx context.Context, professionalID uuid.UUID, page Page) ([]domain.CreditEntry, int, error)

	InsertLead(ctx context.Context, lead domain.Lead) error
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	LockLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	UpdateLeadStatus(ctx context.Context, id uuid.UUID, status domain.LeadStatus, at time.Time) error

	// InsertAssignment is a no-op when the (lead, professional) pair exists; created reports which.
	InsertAssignment(ctx context.Context, a domain.Assignment) (created bool, err error)
	GetAssignment(ctx context.Context, id uuid.UUID) (domain.Assignment, error)
	LockAssignment(ctx context.Context, id uuid.UUID) (domain.Assignment, error)
	GetAssignmentByPair(ctx context.Context, leadID, professionalID uuid.UUID) (domain.Assignment, error)
	ListAssignmentsByLead(ctx context.Context, leadID uuid.UUID) ([]domain.Assignment, error)
	ListAssignmentsByProfessional(ctx context.Context, professionalID uuid.UUID, status *domain.AssignmentStatus) ([]domain.AssignmentWithLead, error)
	HasAcceptedAssignment(ctx context.Context, leadID uuid.UUID) (bool, error)
	SetAssignmentStatus(ctx context.Context, id uuid.UUID, status domain.AssignmentStatus, decidedAt *time.Time, at time.Time) error
	// MarkPendingAssignmentsMissed flips every PENDING assignment of the lead except
	// exceptID (uuid.Nil for none) and returns the flipped ids.
	MarkPendingAssignmentsMissed(ctx context.Context, leadID, exceptID uuid.UUID, at time.Time) ([]uuid.UUID, error)
	InsertAssignmentTransition(ctx context.Context, t domain.AssignmentTransition) error
	ListAssignmentTransitions(ctx context.Context, assignmentID uuid.UUID) ([]domain.AssignmentTransition, error)

	// InsertNotification ignores a second row for the same (outbox, recipient).
	InsertNotification(ctx context.Context, n domain.Notification) (bool, error)
	ListNotifications(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, page Page) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id, recipientID uuid.UUID) error

	InsertOutbox(ctx context.Context, rec domain.OutboxRecord) error
	GetOutbox(ctx context.Context, id uuid.UUID) (domain.OutboxRecord, error)
	// ClaimPendingOutbox moves due pending records to enqueued and returns them.
	ClaimPendingOutbox(ctx context.Context, now time.Time, limit int) ([]domain.OutboxRecord, error)
	MarkOutboxPending(ctx context.Context, id uuid.UUID, lastError string, at time.Time) error
	MarkOutboxProcessing(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkOutboxSucceeded(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkOutboxFailed(ctx context.Context, id uuid.UUID, lastError string, at time.Time) error
}

// TxFunc is the body of a transaction. It may run more than once when the
// backend reports a serialization conflict, so it must not leak state between runs.
type TxFunc func(q Queries) error

// Store is Queries outside a transaction plus the ability to open one.
type Store interface {
	Queries
	// WithinTx runs fn atomically. op names the operation in logs and errors.
	WithinTx(ctx context.Context, op string, fn TxFunc) error
	Ping(ctx context.Context) error
	Close() error
}

// ProfileUpdate carries the editable fields of a professional.
type ProfileUpdate struct {
	ID           uuid.UUID
	DisplayName  string
	CoverageArea string
	Active       bool
	UpdatedAt    time.Time
}

// Page is a limit/offset window.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the window to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit < 1 || p.Limit > 200 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
