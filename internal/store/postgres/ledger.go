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
	selectBalance = `SELECT credit_balance FROM professionals WHERE id = $1`
	lockBalance   = selectBalance + ` FOR UPDATE`
	debitBalance  = `UPDATE professionals
		 SET credit_balance = credit_balance - $2, updated_at = $3
		 WHERE id = $1 AND credit_balance >= $2
		 RETURNING credit_balance`
	creditBalance = `UPDATE professionals
		 SET credit_balance = credit_balance + $2, updated_at = $3
		 WHERE id = $1
		 RETURNING credit_balance`
	creditEntryColumns = `id, professional_id, kind, amount, balance_after, lead_id, assignment_id, reference, created_at`
)

func (q *queries) GetBalance(ctx context.Context, professionalID uuid.UUID) (int64, error) {
	return q.balance(ctx, selectBalance, professionalID)
}

func (q *queries) LockBalance(ctx context.Context, professionalID uuid.UUID) (int64, error) {
	return q.balance(ctx, lockBalance, professionalID)
}

func (q *queries) balance(ctx context.Context, query string, professionalID uuid.UUID) (int64, error) {
	var balance int64
	err := q.db.QueryRow(ctx, query, professionalID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound("professional")
	}
	return balance, err
}

func (q *queries) DebitBalance(ctx context.Context, professionalID uuid.UUID, amount int64, at time.Time) (int64, bool, error) {
	var balance int64
	err := q.db.QueryRow(ctx, debitBalance, professionalID, amount, at).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

func (q *queries) CreditBalance(ctx context.Context, professionalID uuid.UUID, amount int64, at time.Time) (int64, error) {
	var balance int64
	err := q.db.QueryRow(ctx, creditBalance, professionalID, amount, at).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound("professional")
	}
	return balance, err
}

func (q *queries) InsertCreditEntry(ctx context.Context, e domain.CreditEntry) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO credit_entries (`+creditEntryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.ProfessionalID, string(e.Kind), e.Amount, e.BalanceAfter, e.LeadID, e.AssignmentID, nullString(e.Reference), e.CreatedAt,
	)
	return err
}

func (q *queries) GetCreditEntryByReference(ctx context.Context, professionalID uuid.UUID, reference string) (domain.CreditEntry, error) {
	e, err := scanCreditEntry(q.db.QueryRow(ctx,
		`SELECT `+creditEntryColumns+` FROM credit_entries
		 WHERE professional_id = $1 AND reference = $2 AND kind = 'credit'`,
		professionalID, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CreditEntry{}, domain.ErrNotFound("credit entry")
	}
	return e, err
}

func (q *queries) ListCreditEntries(ctx context.Context, professionalID uuid.UUID, page store.Page) ([]domain.CreditEntry, int, error) {
	page = page.Normalize()

	var total int
	if err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM credit_entries WHERE professional_id = $1`, professionalID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := q.db.Query(ctx,
		`SELECT `+creditEntryColumns+` FROM credit_entries
		 WHERE professional_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2 OFFSET $3`,
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

func scanCreditEntry(row pgx.Row) (domain.CreditEntry, error) {
	var (
		e         domain.CreditEntry
		kind      string
		reference *string
	)
	if err := row.Scan(&e.ID, &e.ProfessionalID, &kind, &e.Amount, &e.BalanceAfter, &e.LeadID, &e.AssignmentID, &reference, &e.CreatedAt); err != nil {
		return domain.CreditEntry{}, err
	}
	e.Kind = domain.CreditEntryKind(kind)
	if reference != nil {
		e.Reference = *reference
	}
	return e, nil
}

func nullString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
