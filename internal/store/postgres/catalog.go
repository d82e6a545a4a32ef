package postgres

import (
	"context"
	"errors"
	"fmt"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (q *queries) CreateService(ctx context.Context, svc domain.Service) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO services (id, name, credit_cost, created_at) VALUES ($1, $2, $3, $4)`,
		svc.ID, svc.Name, svc.CreditCost, svc.CreatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.Conflict("service name already exists")
	}
	return err
}

func (q *queries) GetService(ctx context.Context, id uuid.UUID) (domain.Service, error) {
	var svc domain.Service
	err := q.db.QueryRow(ctx,
		`SELECT id, name, credit_cost, created_at FROM services WHERE id = $1`, id,
	).Scan(&svc.ID, &svc.Name, &svc.CreditCost, &svc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Service{}, domain.ErrNotFound("service")
	}
	return svc, err
}

func (q *queries) ListServices(ctx context.Context) ([]domain.Service, error) {
	rows, err := q.db.Query(ctx, `SELECT id, name, credit_cost, created_at FROM services ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Service
	for rows.Next() {
		var svc domain.Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.CreditCost, &svc.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, svc)
	}
	return items, rows.Err()
}

const professionalColumns = `p.id, p.display_name, p.email, p.coverage_area, p.active, p.credit_balance, p.created_at, p.updated_at`

func scanProfessional(row pgx.Row) (domain.Professional, error) {
	var p domain.Professional
	err := row.Scan(&p.ID, &p.DisplayName, &p.Email, &p.CoverageArea, &p.Active, &p.CreditBalance, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (q *queries) CreateProfessional(ctx context.Context, p domain.Professional) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO professionals (id, display_name, email, coverage_area, active, credit_balance, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.DisplayName, p.Email, p.CoverageArea, p.Active, p.CreditBalance, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.Conflict("professional already registered")
	}
	if err != nil {
		return err
	}
	return q.ReplaceProfessionalServices(ctx, p.ID, p.ServiceIDs)
}

func (q *queries) GetProfessional(ctx context.Context, id uuid.UUID) (domain.Professional, error) {
	p, err := scanProfessional(q.db.QueryRow(ctx,
		`SELECT `+professionalColumns+` FROM professionals p WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Professional{}, domain.ErrNotFound("professional")
	}
	if err != nil {
		return domain.Professional{}, err
	}

	rows, err := q.db.Query(ctx,
		`SELECT service_id FROM professional_services WHERE professional_id = $1 ORDER BY service_id`, id)
	if err != nil {
		return domain.Professional{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var serviceID uuid.UUID
		if err := rows.Scan(&serviceID); err != nil {
			return domain.Professional{}, err
		}
		p.ServiceIDs = append(p.ServiceIDs, serviceID)
	}
	return p, rows.Err()
}

func (q *queries) UpdateProfessionalProfile(ctx context.Context, u store.ProfileUpdate) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE professionals SET display_name = $2, coverage_area = $3, active = $4, updated_at = $5 WHERE id = $1`,
		u.ID, u.DisplayName, u.CoverageArea, u.Active, u.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("professional")
	}
	return nil
}

func (q *queries) ReplaceProfessionalServices(ctx context.Context, professionalID uuid.UUID, serviceIDs []uuid.UUID) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM professional_services WHERE professional_id = $1`, professionalID); err != nil {
		return err
	}
	for _, serviceID := range serviceIDs {
		_, err := q.db.Exec(ctx,
			`INSERT INTO professional_services (professional_id, service_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			professionalID, serviceID,
		)
		if isForeignKeyViolation(err) {
			return domain.ErrNotFound(fmt.Sprintf("service %s", serviceID))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ListProfessionalIDsByService returns the ids of active professionals
// registered for the service.
func (q *queries) ListProfessionalIDsByService(ctx context.Context, serviceID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx,
		`SELECT p.id
		 FROM professionals p
		 JOIN professional_services ps ON ps.professional_id = p.id
		 WHERE ps.service_id = $1 AND p.active
		 ORDER BY p.created_at, p.id`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
