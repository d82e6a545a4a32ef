package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"leadmarket_backend/internal/domain"

	"github.com/google/uuid"
)

const assignmentColumns = `id, lead_id, professional_id, status, source, decided_at, created_at, updated_at`

type assignmentRaw struct {
	status, source       string
	decidedAt            sql.NullString
	createdAt, updatedAt string
}

func (r *assignmentRaw) dest(a *domain.Assignment) []any {
	return []any{&a.ID, &a.LeadID, &a.ProfessionalID, &r.status, &r.source, &r.decidedAt, &r.createdAt, &r.updatedAt}
}

func (r *assignmentRaw) apply(a *domain.Assignment) error {
	var err error
	if a.Status, err = domain.ParseAssignmentStatus(r.status); err != nil {
		return err
	}
	a.Source = domain.AssignmentSource(r.source)
	if a.DecidedAt, err = parseNullTime(r.decidedAt); err != nil {
		return err
	}
	if a.CreatedAt, err = parseTime(r.createdAt); err != nil {
		return err
	}
	a.UpdatedAt, err = parseTime(r.updatedAt)
	return err
}

func scanAssignment(row scanner) (domain.Assignment, error) {
	var (
		a   domain.Assignment
		raw assignmentRaw
	)
	if err := row.Scan(raw.dest(&a)...); err != nil {
		return domain.Assignment{}, err
	}
	if err := raw.apply(&a); err != nil {
		return domain.Assignment{}, err
	}
	return a, nil
}

func (q *queries) InsertAssignment(ctx context.Context, a domain.Assignment) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO lead_assignments (`+assignmentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (lead_id, professional_id) DO NOTHING`,
		a.ID, a.LeadID, a.ProfessionalID, string(a.Status), string(a.Source), formatTimePtr(a.DecidedAt),
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if isForeignKeyViolation(err) {
		return false, domain.ErrNotFound("lead or professional")
	}
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (q *queries) GetAssignment(ctx context.Context, id uuid.UUID) (domain.Assignment, error) {
	return q.assignment(ctx, `SELECT `+assignmentColumns+` FROM lead_assignments WHERE id = ?`, id)
}

func (q *queries) LockAssignment(ctx context.Context, id uuid.UUID) (domain.Assignment, error) {
	return q.GetAssignment(ctx, id)
}

func (q *queries) GetAssignmentByPair(ctx context.Context, leadID, professionalID uuid.UUID) (domain.Assignment, error) {
	return q.assignment(ctx,
		`SELECT `+assignmentColumns+` FROM lead_assignments WHERE lead_id = ? AND professional_id = ?`,
		leadID, professionalID)
}

func (q *queries) assignment(ctx context.Context, query string, args ...any) (domain.Assignment, error) {
	a, err := scanAssignment(q.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Assignment{}, domain.ErrNotFound("assignment")
	}
	return a, err
}

func (q *queries) ListAssignmentsByLead(ctx context.Context, leadID uuid.UUID) ([]domain.Assignment, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM lead_assignments WHERE lead_id = ? ORDER BY created_at, id`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (q *queries) ListAssignmentsByProfessional(ctx context.Context, professionalID uuid.UUID, status *domain.AssignmentStatus) ([]domain.AssignmentWithLead, error) {
	var filter any
	if status != nil {
		filter = string(*status)
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT a.id, a.lead_id, a.professional_id, a.status, a.source, a.decided_at, a.created_at, a.updated_at,
		        l.service_id, s.name, s.credit_cost, l.status, l.location, l.budget_cents, l.urgency, l.description, l.created_at
		 FROM lead_assignments a
		 JOIN leads l ON l.id = a.lead_id
		 JOIN services s ON s.id = l.service_id
		 WHERE a.professional_id = ? AND (? IS NULL OR a.status = ?)
		 ORDER BY a.created_at DESC, a.id`,
		professionalID, filter, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.AssignmentWithLead
	for rows.Next() {
		var (
			item                             domain.AssignmentWithLead
			raw                              assignmentRaw
			leadStatus, urgency, leadCreated string
			budget                           sql.NullInt64
		)
		dest := append(raw.dest(&item.Assignment),
			&item.Lead.ServiceID, &item.Lead.ServiceName, &item.Lead.CreditCost, &leadStatus, &item.Lead.Location,
			&budget, &urgency, &item.Lead.Description, &leadCreated,
		)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if err := raw.apply(&item.Assignment); err != nil {
			return nil, err
		}
		if item.Lead.Status, err = domain.ParseLeadStatus(leadStatus); err != nil {
			return nil, err
		}
		if item.Lead.CreatedAt, err = parseTime(leadCreated); err != nil {
			return nil, err
		}
		item.Lead.Urgency = domain.Urgency(urgency)
		item.Lead.BudgetCents = nullInt64Ptr(budget)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (q *queries) HasAcceptedAssignment(ctx context.Context, leadID uuid.UUID) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM lead_assignments WHERE lead_id = ? AND status = 'ACCEPTED')`, leadID,
	).Scan(&exists)
	return exists, err
}

func (q *queries) SetAssignmentStatus(ctx context.Context, id uuid.UUID, status domain.AssignmentStatus, decidedAt *time.Time, at time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE lead_assignments SET status = ?, decided_at = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTimePtr(decidedAt), formatTime(at), id,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return domain.ErrNotFound("assignment")
	}
	return nil
}

func (q *queries) MarkPendingAssignmentsMissed(ctx context.Context, leadID, exceptID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	stamp := formatTime(at)
	rows, err := q.db.QueryContext(ctx,
		`UPDATE lead_assignments
		 SET status = 'MISSED', decided_at = ?, updated_at = ?
		 WHERE lead_id = ? AND status = 'PENDING' AND id <> ?
		 RETURNING id`,
		stamp, stamp, leadID, exceptID)
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

func (q *queries) InsertAssignmentTransition(ctx context.Context, t domain.AssignmentTransition) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO assignment_transitions (id, assignment_id, from_status, to_status, actor_id, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AssignmentID, string(t.From), string(t.To), t.ActorID, t.Reason, formatTime(t.CreatedAt),
	)
	return err
}

func (q *queries) ListAssignmentTransitions(ctx context.Context, assignmentID uuid.UUID) ([]domain.AssignmentTransition, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, assignment_id, from_status, to_status, actor_id, reason, created_at
		 FROM assignment_transitions WHERE assignment_id = ? ORDER BY created_at, id`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.AssignmentTransition
	for rows.Next() {
		var (
			t                   domain.AssignmentTransition
			from, to, createdAt string
			actorID             uuid.NullUUID
		)
		if err := rows.Scan(&t.ID, &t.AssignmentID, &from, &to, &actorID, &t.Reason, &createdAt); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		t.From, t.To = domain.AssignmentStatus(from), domain.AssignmentStatus(to)
		t.ActorID = nullUUIDPtr(actorID)
		items = append(items, t)
	}
	return items, rows.Err()
}
