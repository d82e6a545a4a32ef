package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/store"

	"github.com/google/uuid"
)

const creditEntryColumns = `id, professional_id, kind, amount, balance_after, lead_id, assignment_id, reference, created_at`

func (q *queries) GetBalance(ctx context.Context, professionalID uuid.UUID) (int64, error) {
	var balance int64
	err := q.db.QueryRowContext(ctx, `SELECT credit_balance FROM professionals WHERE id = ?`, professionalID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound("professional")
	}
	return balance, err
}

func (q *queries) LockBalance(ctx context.Context, professionalID uuid.UUID) (int64, error) {
	return q.GetBalance(ctx, professionalID)
}

func (q *queries) DebitBalance(ctx context.Context, professionalID uuid.UUID, amount int64, at time.Time) (int64, bool, error) {
	var balance int64
	err := q.db.QueryRowContext(ctx,
		`UPDATE professionals
		 SET credit_balance = credit_balance - ?, updated_at = ?
		 WHERE id = ? AND credit_balance >= ?
		 RETURNING credit_balance`,
		amount, formatTime(at), professionalID, amount,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

func (q *queries) CreditBalance(ctx context.Context, professionalID uuid.UUID, amount int64, at time.Time) (int64, error) {
	var balance int64
	err := q.db.QueryRowContext(ctx,
		`UPDATE professionals
		 SET credit_balance = credit_balance + ?, updated_at = ?
		 WHERE id = ?
		 RETURNING credit_balance`,
		amount, formatTime(at), professionalID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound("professional")
	}
	return balance, err
}

func (q *queries) InsertCreditEntry(ctx context.Context, e domain.CreditEntry) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO credit_entries (`+creditEntryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProfessionalID, string(e.Kind), e.Amount, e.BalanceAfter, e.LeadID, e.AssignmentID, nullString(e.Reference), formatTime(e.CreatedAt),
	)
	return err
}

func (q *queries) GetCreditEntryByReference(ctx context.Context, professionalID uuid.UUID, reference string) (domain.CreditEntry, error) {
	e, err := scanCreditEntry(q.db.QueryRowContext(ctx,
		`SELECT `+creditEntryColumns+` FROM credit_entries
		 WHERE professional_id = ? AND reference = ? AND kind = 'credit'`,
		professionalID, reference))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CreditEntry{}, domain.ErrNotFound("credit entry")
	}
	return e, err
}

func (q *queries) ListCreditEntries(ctx context.Context, professionalID uuid.UUID, page store.Page) ([]domain.CreditEntry, int, error) {
	page = page.Normalize()

	var total int
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM credit_entries WHERE professional_id = ?`, professionalID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT `+creditEntryColumns+` FROM credit_entries
		 WHERE professional_id = ?
		 ORDER BY created_at DESC, id
		 LIMIT ? OFFSET ?`,
		professionalID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []domain.CreditEntry
	for rows.Next() {
		e, err := scanCreditEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

func scanCreditEntry(row scanner) (domain.CreditEntry, error) {
	var (
		e                    domain.CreditEntry
		kind, createdAt      string
		leadID, assignmentID uuid.NullUUID
		reference            sql.NullString
	)
	if err := row.Scan(&e.ID, &e.ProfessionalID, &kind, &e.Amount, &e.BalanceAfter, &leadID, &assignmentID, &reference, &createdAt); err != nil {
		return domain.CreditEntry{}, err
	}
	var err error
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.CreditEntry{}, err
	}
	e.Kind = domain.CreditEntryKind(kind)
	e.LeadID = nullUUIDPtr(leadID)
	e.AssignmentID = nullUUIDPtr(assignmentID)
	e.Reference = reference.String
	return e, nil
}
