package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"leadmarket_backend/internal/domain"

	"github.com/google/uuid"
)

const leadColumns = `id, customer_id, service_id, status, location, budget_cents, urgency, description,
	contact_name, contact_phone, contact_email, contact_address, created_at, updated_at`

func (q *queries) InsertLead(ctx context.Context, l domain.Lead) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO leads (`+leadColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.CustomerID, l.ServiceID, string(l.Status), l.Location, l.BudgetCents, string(l.Urgency), l.Description,
		l.Contact.Name, l.Contact.Phone, l.Contact.Email, l.Contact.Address, formatTime(l.CreatedAt), formatTime(l.UpdatedAt),
	)
	if isForeignKeyViolation(err) {
		return domain.ErrNotFound("service")
	}
	return err
}

func (q *queries) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	var (
		l                                     domain.Lead
		status, urgency, createdAt, updatedAt string
		budget                                sql.NullInt64
	)
	err := q.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id).Scan(
		&l.ID, &l.CustomerID, &l.ServiceID, &status, &l.Location, &budget, &urgency, &l.Description,
		&l.Contact.Name, &l.Contact.Phone, &l.Contact.Email, &l.Contact.Address, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Lead{}, domain.ErrNotFound("lead")
	}
	if err != nil {
		return domain.Lead{}, err
	}
	if l.Status, err = domain.ParseLeadStatus(status); err != nil {
		return domain.Lead{}, err
	}
	if l.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Lead{}, err
	}
	if l.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Lead{}, err
	}
	l.Urgency = domain.Urgency(urgency)
	l.BudgetCents = nullInt64Ptr(budget)
	return l, nil
}

func (q *queries) LockLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return q.GetLead(ctx, id)
}

func (q *queries) UpdateLeadStatus(ctx context.Context, id uuid.UUID, status domain.LeadStatus, at time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE leads SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(at), id,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return domain.ErrNotFound("lead")
	}
	return nil
}
