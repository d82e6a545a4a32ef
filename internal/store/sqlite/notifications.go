package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/store"

	"github.com/google/uuid"
)

const outboxColumns = `id, kind, payload, run_at, status, attempts, last_error, created_at, updated_at`

func (q *queries) InsertNotification(ctx context.Context, n domain.Notification) (bool, error) {
	related := n.RelatedIDs
	if related == nil {
		related = map[string]string{}
	}
	relatedJSON, err := json.Marshal(related)
	if err != nil {
		return false, fmt.Errorf("marshal related ids: %w", err)
	}

	res, err := q.db.ExecContext(ctx,
		`INSERT INTO notifications (id, type, recipient_id, message, related_ids, read, outbox_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		n.ID, n.Type, n.RecipientID, n.Message, string(relatedJSON), n.Read, n.OutboxID, formatTime(n.CreatedAt),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (q *queries) ListNotifications(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, page store.Page) ([]domain.Notification, error) {
	page = page.Normalize()
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, type, recipient_id, message, related_ids, read, outbox_id, created_at
		 FROM notifications
		 WHERE recipient_id = ? AND (? = 0 OR read = 0)
		 ORDER BY created_at DESC, id
		 LIMIT ? OFFSET ?`,
		recipientID, unreadOnly, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Notification
	for rows.Next() {
		var (
			n                  domain.Notification
			related, createdAt string
			outboxID           uuid.NullUUID
		)
		if err := rows.Scan(&n.ID, &n.Type, &n.RecipientID, &n.Message, &related, &n.Read, &outboxID, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(related), &n.RelatedIDs); err != nil {
			return nil, fmt.Errorf("decode related ids: %w", err)
		}
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		n.OutboxID = nullUUIDPtr(outboxID)
		items = append(items, n)
	}
	return items, rows.Err()
}

func (q *queries) MarkNotificationRead(ctx context.Context, id, recipientID uuid.UUID) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ? AND recipient_id = ?`, id, recipientID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return domain.ErrNotFound("notification")
	}
	return nil
}

func scanOutbox(row scanner) (domain.OutboxRecord, error) {
	var (
		rec                         domain.OutboxRecord
		payload, status             string
		runAt, createdAt, updatedAt string
		lastError                   sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.Kind, &payload, &runAt, &status, &rec.Attempts, &lastError, &createdAt, &updatedAt); err != nil {
		return domain.OutboxRecord{}, err
	}
	var err error
	if rec.RunAt, err = parseTime(runAt); err != nil {
		return domain.OutboxRecord{}, err
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.OutboxRecord{}, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.OutboxRecord{}, err
	}
	rec.Payload = []byte(payload)
	rec.Status = domain.OutboxStatus(status)
	rec.LastError = lastError.String
	return rec, nil
}

func (q *queries) InsertOutbox(ctx context.Context, rec domain.OutboxRecord) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO notification_outbox (`+outboxColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, string(rec.Payload), formatTime(rec.RunAt), string(rec.Status), rec.Attempts,
		nullString(rec.LastError), formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	return err
}

func (q *queries) GetOutbox(ctx context.Context, id uuid.UUID) (domain.OutboxRecord, error) {
	rec, err := scanOutbox(q.db.QueryRowContext(ctx, `SELECT `+outboxColumns+` FROM notification_outbox WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.OutboxRecord{}, domain.ErrNotFound("outbox record")
	}
	return rec, err
}

// ClaimPendingOutbox is a single UPDATE, which SQLite runs under the database write lock.
func (q *queries) ClaimPendingOutbox(ctx context.Context, now time.Time, limit int) ([]domain.OutboxRecord, error) {
	if limit < 1 {
		limit = 50
	}
	stamp := formatTime(now)
	rows, err := q.db.QueryContext(ctx,
		`UPDATE notification_outbox
		 SET status = 'enqueued', updated_at = ?
		 WHERE id IN (
			SELECT id FROM notification_outbox
			WHERE status = 'pending' AND run_at <= ?
			ORDER BY run_at ASC
			LIMIT ?
		 )
		 RETURNING `+outboxColumns,
		stamp, stamp, limit)
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
	_, err := q.db.ExecContext(ctx,
		`UPDATE notification_outbox SET status = 'pending', last_error = ?, updated_at = ? WHERE id = ?`,
		nullString(lastError), formatTime(at), id)
	return err
}

func (q *queries) MarkOutboxProcessing(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE notification_outbox SET status = 'processing', attempts = attempts + 1, updated_at = ? WHERE id = ?`,
		formatTime(at), id)
	return err
}

func (q *queries) MarkOutboxSucceeded(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE notification_outbox SET status = 'succeeded', last_error = NULL, updated_at = ? WHERE id = ?`,
		formatTime(at), id)
	return err
}

func (q *queries) MarkOutboxFailed(ctx context.Context, id uuid.UUID, lastError string, at time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE notification_outbox SET status = 'failed', last_error = ?, updated_at = ? WHERE id = ?`,
		lastError, formatTime(at), id)
	return err
}
