package postgres

import (
	"context"
	"errors"
	"time"

	"leadmarket_backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	leadColumns = `id, customer_id, service_id, status, location, budget_cents, urgency, description,
		contact_name, contact_phone, contact_email, contact_address, created_at, updated_at`
	selectLead = `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	lockLead   = selectLead + ` FOR UPDATE`
)

func (q *queries) InsertLead(ctx context.Context, l domain.Lead) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO leads (`+leadColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		l.ID, l.CustomerID, l.ServiceID, string(l.Status), l.Location, l.BudgetCents, string(l.Urgency), l.Description,
		l.Contact.Name, l.Contact.Phone, l.Contact.Email, l.Contact.Address, l.CreatedAt, l.UpdatedAt,
	)
	if isForeignKeyViolation(err) {
		return domain.ErrNotFound("service")
	}
	return err
}

func (q *queries) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return q.lead(ctx, selectLead, id)
}

func (q *queries) LockLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return q.lead(ctx, lockLead, id)
}

func (q *queries) lead(ctx context.Context, query string, id uuid.UUID) (domain.Lead, error) {
	var (
		l               domain.Lead
		status, urgency string
	)
	err := q.db.QueryRow(ctx, query, id).Scan(
		&l.ID, &l.CustomerID, &l.ServiceID, &status, &l.Location, &l.BudgetCents, &urgency, &l.Description,
		&l.Contact.Name, &l.Contact.Phone, &l.Contact.Email, &l.Contact.Address, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, domain.ErrNotFound("lead")
	}
	if err != nil {
		return domain.Lead{}, err
	}
	if l.Status, err = domain.ParseLeadStatus(status); err != nil {
		return domain.Lead{}, err
	}
	l.Urgency = domain.Urgency(urgency)
	return l, nil
}

func (q *queries) UpdateLeadStatus(ctx context.Context, id uuid.UUID, status domain.LeadStatus, at time.Time) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE leads SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("lead")
	}
	return nil
}
