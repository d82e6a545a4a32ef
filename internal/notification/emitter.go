package notification

import (
	"context"
	"time"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

const opEmit = "notification.emit"

// Emitter turns committed domain events into outbox records.
type Emitter struct {
	store store.Store
	retry store.RetryPolicy
	log   *logger.Logger
	now   func() time.Time
}

// NewEmitter creates an emitter writing to st.
func NewEmitter(st store.Store, log *logger.Logger) *Emitter {
	if log == nil {
		log = logger.Discard()
	}
	return &Emitter{
		store: st,
		retry: store.DefaultRetryPolicy(),
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Emit appends p to the outbox. The write is retried with backoff; once the
// attempts are spent the error is logged and returned for the bus to record.
// It never reaches the code that published the event.
func (e *Emitter) Emit(ctx context.Context, p Payload) error {
	data, err := Encode(p)
	if err != nil {
		e.log.Error("notification encode failed", "kind", p.Kind(), "error", err)
		return err
	}
	now := e.now()
	rec := domain.OutboxRecord{
		ID:        uuid.New(),
		Kind:      string(p.Kind()),
		Payload:   data,
		RunAt:     now,
		Status:    domain.OutboxPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = e.retry.Run(ctx, e.log, opEmit, retryOutboxWrite, func(ctx context.Context) error {
		return e.store.WithinTx(ctx, opEmit, func(q store.Queries) error {
			return q.InsertOutbox(ctx, rec)
		})
	})
	if err != nil {
		e.log.Error("notification outbox insert failed", "kind", rec.Kind, "outboxId", rec.ID.String(), "error", err)
		return err
	}
	e.log.Debug("notification queued", "outboxId", rec.ID.String(), "kind", rec.Kind)
	return nil
}

// retryOutboxWrite retries every untyped failure. Store conflicts are already
// retried inside WithinTx; this covers the rest, such as dropped connections.
func retryOutboxWrite(error) bool { return true }

// Handle maps bus events onto payloads.
func (e *Emitter) Handle(ctx context.Context, event events.Event) error {
	switch ev := event.(type) {
	case events.AssignmentCreated:
		return e.Emit(ctx, AssignmentCreated{
			AssignmentID:   ev.AssignmentID,
			LeadID:         ev.LeadID,
			ProfessionalID: ev.ProfessionalID,
			ServiceName:    ev.ServiceName,
			Location:       ev.Location,
			CreditCost:     ev.CreditCost,
		})
	case events.AssignmentRejected:
		return e.Emit(ctx, AssignmentRejected{
			AssignmentID:   ev.AssignmentID,
			LeadID:         ev.LeadID,
			ProfessionalID: ev.ProfessionalID,
			Reason:         ev.Reason,
		})
	case events.LeadAccepted:
		return e.Emit(ctx, LeadAccepted{
			AssignmentID:   ev.AssignmentID,
			LeadID:         ev.LeadID,
			ProfessionalID: ev.ProfessionalID,
			CustomerID:     ev.CustomerID,
			CreditsCharged: ev.CreditsCharged,
			Missed:         ev.MissedProfessionals,
		})
	case events.ProfessionalRegistered:
		return e.Emit(ctx, ProfessionalRegistered{
			ProfessionalID: ev.ProfessionalID,
			DisplayName:    ev.DisplayName,
		})
	default:
		return nil
	}
}
