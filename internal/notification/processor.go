package notification

import (
	"context"
	"fmt"
	"time"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/notification/live"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

const invalidOutboxPayloadPrefix = "invalid_payload: "

// Processor delivers one outbox record as notification rows.
type Processor struct {
	store  store.Store
	admins []uuid.UUID
	live   live.Publisher
	log    *logger.Logger
	now    func() time.Time
}

// NewProcessor creates a processor. cfg supplies the administrator recipients.
func NewProcessor(st store.Store, cfg config.NotificationConfig, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.Discard()
	}
	var admins []uuid.UUID
	if cfg != nil {
		admins = cfg.GetAdminRecipients()
	}
	return &Processor{store: st, admins: admins, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// SetLive sets where newly written rows are pushed after the record succeeds.
func (p *Processor) SetLive(pub live.Publisher) { p.live = pub }

// Process renders the record and writes one row per recipient. A record that
// already succeeded is skipped; rows are unique per (record, recipient), so a
// retry after a partial write does not duplicate anything.
func (p *Processor) Process(ctx context.Context, outboxID uuid.UUID) error {
	rec, process, err := p.prepare(ctx, outboxID)
	if err != nil || !process {
		return err
	}

	payload, err := Decode(rec.Kind, rec.Payload)
	if err != nil {
		p.markFailed(ctx, rec, invalidOutboxPayloadPrefix+err.Error())
		return nil
	}
	messages, err := Render(payload, p.admins)
	if err != nil {
		p.markFailed(ctx, rec, err.Error())
		return nil
	}

	now := p.now()
	outboxRef := rec.ID
	written := make([]domain.Notification, 0, len(messages))
	for _, msg := range messages {
		n := domain.Notification{
			ID:          uuid.New(),
			Type:        string(msg.Kind),
			RecipientID: msg.RecipientID,
			Message:     msg.Text,
			RelatedIDs:  msg.RelatedIDs,
			OutboxID:    &outboxRef,
			CreatedAt:   now,
		}
		inserted, err := p.store.InsertNotification(ctx, n)
		if err != nil {
			p.markFailed(ctx, rec, err.Error())
			return fmt.Errorf("insert notification for %s: %w", msg.RecipientID, err)
		}
		if inserted {
			written = append(written, n)
		}
	}

	if err := p.store.MarkOutboxSucceeded(ctx, rec.ID, p.now()); err != nil {
		return err
	}
	p.push(ctx, written)
	p.log.Info("outbox record processed successfully", "outboxId", rec.ID.String(), "kind", rec.Kind, "recipients", len(messages))
	return nil
}

// push is best effort: the rows are already durable.
func (p *Processor) push(ctx context.Context, written []domain.Notification) {
	if p.live == nil {
		return
	}
	for _, n := range written {
		if err := p.live.Publish(ctx, n); err != nil {
			p.log.Warn("live notification push failed", "notificationId", n.ID.String(), "error", err)
		}
	}
}

func (p *Processor) prepare(ctx context.Context, outboxID uuid.UUID) (domain.OutboxRecord, bool, error) {
	rec, err := p.store.GetOutbox(ctx, outboxID)
	if err != nil {
		return domain.OutboxRecord{}, false, err
	}
	if rec.Status == domain.OutboxSucceeded {
		p.log.Debug("outbox record already succeeded; skipping", "outboxId", rec.ID.String())
		return rec, false, nil
	}
	if err := p.store.MarkOutboxProcessing(ctx, rec.ID, p.now()); err != nil {
		return domain.OutboxRecord{}, false, err
	}
	return rec, true, nil
}

func (p *Processor) markFailed(ctx context.Context, rec domain.OutboxRecord, reason string) {
	if err := p.store.MarkOutboxFailed(ctx, rec.ID, reason, p.now()); err != nil {
		p.log.Error("failed to mark outbox record failed", "outboxId", rec.ID.String(), "error", err)
		return
	}
	p.log.Warn("notification outbox record failed", "outboxId", rec.ID.String(), "kind", rec.Kind, "error", reason)
}
