package scheduler

import (
	"context"
	"time"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultPollInterval = 2 * time.Second
	outboxClaimBatch    = 50
)

// OutboxSink receives claimed outbox records.
type OutboxSink interface {
	Dispatch(ctx context.Context, rec domain.OutboxRecord) error
}

// OutboxProcessor turns one outbox record into notification rows.
type OutboxProcessor interface {
	ProcessOutbox(ctx context.Context, outboxID uuid.UUID) error
}

// InlineSink processes records in the relay goroutine. It is used when no
// Redis is configured.
type InlineSink struct {
	Processor OutboxProcessor
}

func (s InlineSink) Dispatch(ctx context.Context, rec domain.OutboxRecord) error {
	return s.Processor.ProcessOutbox(ctx, rec.ID)
}

type NotificationOutboxDispatcher struct {
	store    store.Store
	sink     OutboxSink
	interval time.Duration
	log      *logger.Logger
	now      func() time.Time
}

func NewNotificationOutboxDispatcher(st store.Store, sink OutboxSink, interval time.Duration, log *logger.Logger) *NotificationOutboxDispatcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if log == nil {
		log = logger.Discard()
	}
	return &NotificationOutboxDispatcher{
		store:    st,
		sink:     sink,
		interval: interval,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (d *NotificationOutboxDispatcher) Run(ctx context.Context) {
	if d == nil || d.sink == nil || d.store == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if _, err := d.DispatchDue(ctx); err != nil {
			d.log.Warn("outbox claim failed", "error", err)
		}
	}
}

// DispatchDue claims due records and hands each to the sink. A record the
// sink refuses goes back to pending with the error.
func (d *NotificationOutboxDispatcher) DispatchDue(ctx context.Context) (int, error) {
	records, err := d.store.ClaimPendingOutbox(ctx, d.now(), outboxClaimBatch)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, rec := range records {
		if err := d.sink.Dispatch(ctx, rec); err != nil {
			if markErr := d.store.MarkOutboxPending(ctx, rec.ID, err.Error(), d.now()); markErr != nil {
				d.log.Error("outbox requeue failed", "outboxId", rec.ID.String(), "error", markErr)
			}
			d.log.Warn("outbox dispatch failed", "outboxId", rec.ID.String(), "kind", rec.Kind, "error", err)
			continue
		}
		dispatched++
	}
	return dispatched, nil
}
