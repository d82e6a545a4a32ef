package postgres

import (
	"context"
	"errors"
	"time"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	outboxColumns = `id, kind, payload, run_at, status, attempts, last_error, created_at, updated_at`
	claimOutbox   = `WITH cte AS (
		SELECT id
		FROM notification_outbox
		WHERE status = 'pending' AND run_at <= $1
		ORDER BY run_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	)
	UPDATE notification_outbox o
	SET status = 'enqueued', updated_at = $1
	FROM cte
	WHERE o.id = cte.id
	RETURNING o.id, o.kind, o.payload, o.run_at, o.status, o.attempts, o.last_error, o.created_at, o.updated_at`
)

func (q *queries) InsertNotification(ctx context.Context, n domain.Notification) (bool, error) {
	related := n.RelatedIDs
	if related == nil {
		related = map[string]string{}
	}
	tag, err := q.db.Exec(ctx,
		`INSERT INTO notifications (id, type, recipient_id, message, related_ids, read, outbox_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT DO NOTHING`,
		n.ID, n.Type, n.RecipientID, n.Message, related, n.Read, n.OutboxID, n.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (q *queries) ListNotifications(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, page store.Page) ([]domain.Notification, error) {
	page = page.Normalize()
	rows, err := q.db.Query(ctx,
		`SELECT id, type, recipient_id, message, related_ids, read, outbox_id, created_at
		 FROM notifications
		 WHERE recipient_id = $1 AND (NOT $2 OR NOT read)
		 ORDER BY created_at DESC, id
		 LIMIT $3 OFFSET $4`,
		recipientID, unreadOnly, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.Type, &n.RecipientID, &n.Message, &n.RelatedIDs, &n.Read, &n.OutboxID, &n.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (q *queries) MarkNotificationRead(ctx context.Context, id, recipientID uuid.UUID) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("notification")
	}
	return nil
}

func scanOutbox(row pgx.Row) (domain.OutboxRecord, error) {
	var (
		rec       domain.OutboxRecord
		status    string
		lastError *string
	)
	if err := row.Scan(&rec.ID, &rec.Kind, &rec.Payload, &rec.RunAt, &status, &rec.Attempts, &lastError, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return domain.OutboxRecord{}, err
	}
	rec.Status = domain.OutboxStatus(status)
	if lastError != nil {
		rec.LastError = *lastError
	}
	return rec, nil
}

func (q *queries) InsertOutbox(ctx context.Context, rec domain.OutboxRecord) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO notification_outbox (`+outboxColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.Kind, rec.Payload, rec.RunAt, string(rec.Status), rec.Attempts, nullString(rec.LastError), rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

func (q *queries) GetOutbox(ctx context.Context, id uuid.UUID) (domain.OutboxRecord, error) {
	rec, err := scanOutbox(q.db.QueryRow(ctx, `SELECT `+outboxColumns+` FROM notification_outbox WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.OutboxRecord{}, domain.ErrNotFound("outbox record")
	}
	return rec, err
}

func (q *queries) ClaimPendingOutbox(ctx context.Context, now time.Time, limit int) ([]domain.OutboxRecord, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := q.db.Query(ctx, claimOutbox, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OutboxRecord
	for rows.Next() {
		rec, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (q *queries) MarkOutboxPending(ctx context.Context, id uuid.UUID, lastError string, at time.Time) error {
	_, err := q.db.Exec(ctx,
		`UPDATE notification_outbox SET status = 'pending', last_error = $2, updated_at = $3 WHERE id = $1`,
		id, nullString(lastError), at)
	return err
}

func (q *queries) MarkOutboxProcessing(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := q.db.Exec(ctx,
		`UPDATE notification_outbox SET status = 'processing', attempts = attempts + 1, updated_at = $2 WHERE id = $1`,
		id, at)
	return err
}

func (q *queries) MarkOutboxSucceeded(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := q.db.Exec(ctx,
		`UPDATE notification_outbox SET status = 'succeeded', last_error = NULL, updated_at = $2 WHERE id = $1`,
		id, at)
	return err
}

func (q *queries) MarkOutboxFailed(ctx context.Context, id uuid.UUID, lastError string, at time.Time) error {
	_, err := q.db.Exec(ctx,
		`UPDATE notification_outbox SET status = 'failed', last_error = $2, updated_at = $3 WHERE id = $1`,
		id, lastError, at)
	return err
}
