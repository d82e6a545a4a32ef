package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/platform/apperr"

	"github.com/google/uuid"
)

func scanService(row scanner) (domain.Service, error) {
	var (
		svc       domain.Service
		createdAt string
	)
	if err := row.Scan(&svc.ID, &svc.Name, &svc.CreditCost, &createdAt); err != nil {
		return domain.Service{}, err
	}
	var err error
	svc.CreatedAt, err = parseTime(createdAt)
	return svc, err
}

func (q *queries) CreateService(ctx context.Context, svc domain.Service) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO services (id, name, credit_cost, created_at) VALUES (?, ?, ?, ?)`,
		svc.ID, svc.Name, svc.CreditCost, formatTime(svc.CreatedAt),
	)
	if isUniqueViolation(err) {
		return apperr.Conflict("service name already exists")
	}
	return err
}

func (q *queries) GetService(ctx context.Context, id uuid.UUID) (domain.Service, error) {
	svc, err := scanService(q.db.QueryRowContext(ctx,
		`SELECT id, name, credit_cost, created_at FROM services WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Service{}, domain.ErrNotFound("service")
	}
	return svc, err
}

func (q *queries) ListServices(ctx context.Context) ([]domain.Service, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name, credit_cost, created_at FROM services ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, svc)
	}
	return items, rows.Err()
}

const professionalColumns = `p.id, p.display_name, p.email, p.coverage_area, p.active, p.credit_balance, p.created_at, p.updated_at`

func scanProfessional(row scanner) (domain.Professional, error) {
	var (
		p                    domain.Professional
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.ID, &p.DisplayName, &p.Email, &p.CoverageArea, &p.Active, &p.CreditBalance, &createdAt, &updatedAt); err != nil {
		return domain.Professional{}, err
	}
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Professional{}, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Professional{}, err
	}
	return p, nil
}

func (q *queries) CreateProfessional(ctx context.Context, p domain.Professional) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO professionals (id, display_name, email, coverage_area, active, credit_balance, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.DisplayName, p.Email, p.CoverageArea, p.Active, p.CreditBalance, formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
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
	p, err := scanProfessional(q.db.QueryRowContext(ctx,
		`SELECT `+professionalColumns+` FROM professionals p WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Professional{}, domain.ErrNotFound("professional")
	}
	if err != nil {
		return domain.Professional{}, err
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT service_id FROM professional_services WHERE professional_id = ? ORDER BY service_id`, id)
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
	res, err := q.db.ExecContext(ctx,
		`UPDATE professionals SET display_name = ?, coverage_area = ?, active = ?, updated_at = ? WHERE id = ?`,
		u.DisplayName, u.CoverageArea, u.Active, formatTime(u.UpdatedAt), u.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return domain.ErrNotFound("professional")
	}
	return nil
}

func (q *queries) ReplaceProfessionalServices(ctx context.Context, professionalID uuid.UUID, serviceIDs []uuid.UUID) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM professional_services WHERE professional_id = ?`, professionalID); err != nil {
		return err
	}
	for _, serviceID := range serviceIDs {
		_, err := q.db.ExecContext(ctx,
			`INSERT INTO professional_services (professional_id, service_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
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
	rows, err := q.db.QueryContext(ctx,
		`SELECT p.id
		 FROM professionals p
		 JOIN professional_services ps ON ps.professional_id = p.id
		 WHERE ps.service_id = ? AND p.active = 1
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
