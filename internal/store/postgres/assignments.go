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
	assignmentColumns = `id, lead_id, professional_id, status, source, decided_at, created_at, updated_at`
	selectAssignment  = `SELECT ` + assignmentColumns + ` FROM lead_assignments WHERE id = $1`
	lockAssignment    = selectAssignment + ` FOR UPDATE`
	insertAssignment  = `INSERT INTO lead_assignments (` + assignmentColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (lead_id, professional_id) DO NOTHING`
	markPendingMissed = `UPDATE lead_assignments
		 SET status = 'MISSED', decided_at = $3, updated_at = $3
		 WHERE lead_id = $1 AND status = 'PENDING' AND id <> $2
		 RETURNING id`
)

func scanAssignment(row pgx.Row) (domain.Assignment, error) {
	var (
		a              domain.Assignment
		status, source string
	)
	if err := row.Scan(&a.ID, &a.LeadID, &a.ProfessionalID, &status, &source, &a.DecidedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Assignment{}, err
	}
	var err error
	if a.Status, err = domain.ParseAssignmentStatus(status); err != nil {
		return domain.Assignment{}, err
	}
	a.Source = domain.AssignmentSource(source)
	return a, nil
}

func (q *queries) InsertAssignment(ctx context.Context, a domain.Assignment) (bool, error) {
	tag, err := q.db.Exec(ctx, insertAssignment,
		a.ID, a.LeadID, a.ProfessionalID, string(a.Status), string(a.Source), a.DecidedAt, a.CreatedAt, a.UpdatedAt,
	)
	if isForeignKeyViolation(err) {
		return false, domain.ErrNotFound("lead or professional")
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (q *queries) GetAssignment(ctx context.Context, id uuid.UUID) (domain.Assignment, error) {
	return q.assignment(ctx, selectAssignment, id)
}

func (q *queries) LockAssignment(ctx context.Context, id uuid.UUID) (domain.Assignment, error) {
	return q.assignment(ctx, lockAssignment, id)
}

func (q *queries) assignment(ctx context.Context, query string, args ...any) (domain.Assignment, error) {
	a, err := scanAssignment(q.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assignment{}, domain.ErrNotFound("assignment")
	}
	return a, err
}

func (q *queries) GetAssignmentByPair(ctx context.Context, leadID, professionalID uuid.UUID) (domain.Assignment, error) {
	return q.assignment(ctx,
		`SELECT `+assignmentColumns+` FROM lead_assignments WHERE lead_id = $1 AND professional_id = $2`,
		leadID, professionalID)
}

func (q *queries) ListAssignmentsByLead(ctx context.Context, leadID uuid.UUID) ([]domain.Assignment, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+assignmentColumns+` FROM lead_assignments WHERE lead_id = $1 ORDER BY created_at, id`, leadID)
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
	var filter *string
	if status != nil {
		s := string(*status)
		filter = &s
	}

	rows, err := q.db.Query(ctx,
		`SELECT a.id, a.lead_id, a.professional_id, a.status, a.source, a.decided_at, a.created_at, a.updated_at,
		        l.service_id, s.name, s.credit_cost, l.status, l.location, l.budget_cents, l.urgency, l.description, l.created_at
		 FROM lead_assignments a
		 JOIN leads l ON l.id = a.lead_id
		 JOIN services s ON s.id = l.service_id
		 WHERE a.professional_id = $1 AND ($2::text IS NULL OR a.status = $2)
		 ORDER BY a.created_at DESC, a.id`,
		professionalID, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.AssignmentWithLead
	for rows.Next() {
		var (
			item                                domain.AssignmentWithLead
			status, source, leadStatus, urgency string
		)
		if err := rows.Scan(
			&item.ID, &item.LeadID, &item.ProfessionalID, &status, &source, &item.DecidedAt, &item.CreatedAt, &item.UpdatedAt,
			&item.Lead.ServiceID, &item.Lead.ServiceName, &item.Lead.CreditCost, &leadStatus, &item.Lead.Location,
			&item.Lead.BudgetCents, &urgency, &item.Lead.Description, &item.Lead.CreatedAt,
		); err != nil {
			return nil, err
		}
		if item.Status, err = domain.ParseAssignmentStatus(status); err != nil {
			return nil, err
		}
		if item.Lead.Status, err = domain.ParseLeadStatus(leadStatus); err != nil {
			return nil, err
		}
		item.Source = domain.AssignmentSource(source)
		item.Lead.Urgency = domain.Urgency(urgency)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (q *queries) HasAcceptedAssignment(ctx context.Context, leadID uuid.UUID) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM lead_assignments WHERE lead_id = $1 AND status = 'ACCEPTED')`, leadID,
	).Scan(&exists)
	return exists, err
}

func (q *queries) SetAssignmentStatus(ctx context.Context, id uuid.UUID, status domain.AssignmentStatus, decidedAt *time.Time, at time.Time) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE lead_assignments SET status = $2, decided_at = $3, updated_at = $4 WHERE id = $1`,
		id, string(status), decidedAt, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("assignment")
	}
	return nil
}

func (q *queries) MarkPendingAssignmentsMissed(ctx context.Context, leadID, exceptID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, markPendingMissed, leadID, exceptID, at)
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
	_, err := q.db.Exec(ctx,
		`INSERT INTO assignment_transitions (id, assignment_id, from_status, to_status, actor_id, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.AssignmentID, string(t.From), string(t.To), t.ActorID, t.Reason, t.CreatedAt,
	)
	return err
}

func (q *queries) ListAssignmentTransitions(ctx context.Context, assignmentID uuid.UUID) ([]domain.AssignmentTransition, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, assignment_id, from_status, to_status, actor_id, reason, created_at
		 FROM assignment_transitions WHERE assignment_id = $1 ORDER BY created_at, id`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.AssignmentTransition
	for rows.Next() {
		var (
			t        domain.AssignmentTransition
			from, to string
		)
		if err := rows.Scan(&t.ID, &t.AssignmentID, &from, &to, &t.ActorID, &t.Reason, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.From, t.To = domain.AssignmentStatus(from), domain.AssignmentStatus(to)
		items = append(items, t)
	}
	return items, rows.Err()
}
