// Package service fans leads out to matching professionals and lets
// administrators assign a lead by hand.
package service

import (
	"context"
	"errors"
	"time"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	opFanOut       = "matching.fan_out"
	opManualAssign = "matching.manual_assign"

	reasonMatched        = "matched by coverage"
	reasonManual         = "assigned by administrator"
	reasonManualOverride = "revived by administrator override"
)

// errLeadClosed stops a fan-out whose lead left OPEN mid-way.
var errLeadClosed = errors.New("lead is no longer open")

// ManualAssignParams describes an administrator's assignment.
type ManualAssignParams struct {
	LeadID         uuid.UUID
	ProfessionalID uuid.UUID
	AdminID        uuid.UUID
	// Override revives a REJECTED assignment for the same pair.
	Override bool
}

// Service creates assignments.
type Service struct {
	store  store.Store
	bus    events.Bus
	policy *CoveragePolicy
	log    *logger.Logger
	now    func() time.Time
}

// New creates the matching service. A nil policy matches on places only.
func New(st store.Store, bus events.Bus, policy *CoveragePolicy, log *logger.Logger) *Service {
	if policy == nil {
		policy = NewCoveragePolicy(nil)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		store:  st,
		bus:    bus,
		policy: policy,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// FanOutAssignments creates a PENDING assignment for every active professional
// registered for the lead's service whose coverage reaches the lead. It returns
// only the assignments created by this call, so repeating it is harmless.
// A lead that is not OPEN yields nothing. Each candidate is read and inserted
// on its own; a candidate that cannot be read or inserted is logged and skipped.
func (s *Service) FanOutAssignments(ctx context.Context, leadID uuid.UUID) ([]domain.Assignment, error) {
	log := s.log.WithContext(ctx)

	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.Status != domain.LeadOpen {
		log.Info("fan-out skipped for closed lead", "lead_id", leadID.String(), "status", string(lead.Status))
		return nil, nil
	}
	service, err := s.store.GetService(ctx, lead.ServiceID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.store.ListProfessionalIDsByService(ctx, lead.ServiceID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list candidates", err).WithOp(opFanOut)
	}

	var created []domain.Assignment
	for _, id := range candidates {
		pro, err := s.store.GetProfessional(ctx, id)
		if err != nil {
			log.Error("fan-out candidate unreadable", "lead_id", leadID.String(), "professional_id", id.String(), "error", err)
			continue
		}
		if !s.policy.Covers(pro.CoverageArea, lead.Location) {
			if pro.CoverageArea == "" {
				log.Warn("candidate has no coverage area", "professional_id", pro.ID.String())
			}
			continue
		}

		a, ok, err := s.insertCandidate(ctx, leadID, pro.ID)
		if errors.Is(err, errLeadClosed) {
			log.Info("fan-out stopped: lead closed", "lead_id", leadID.String())
			break
		}
		if err != nil {
			log.Error("fan-out candidate failed", "lead_id", leadID.String(), "professional_id", pro.ID.String(), "error", err)
			continue
		}
		if !ok {
			continue
		}

		created = append(created, a)
		s.publish(ctx, events.AssignmentCreated{
			BaseEvent:      events.NewBaseEvent(),
			AssignmentID:   a.ID,
			LeadID:         leadID,
			ProfessionalID: pro.ID,
			ServiceName:    service.Name,
			Location:       lead.Location,
			CreditCost:     service.CreditCost,
		})
	}

	log.Info("fan-out complete", "lead_id", leadID.String(), "candidates", len(candidates), "created", len(created))
	return created, nil
}

func (s *Service) insertCandidate(ctx context.Context, leadID, professionalID uuid.UUID) (domain.Assignment, bool, error) {
	var (
		a       domain.Assignment
		created bool
	)
	err := s.store.WithinTx(ctx, opFanOut, func(q store.Queries) error {
		created = false

		lead, err := q.LockLead(ctx, leadID)
		if err != nil {
			return err
		}
		if lead.Status != domain.LeadOpen {
			return errLeadClosed
		}

		now := s.now()
		a = domain.Assignment{
			ID:             uuid.New(),
			LeadID:         leadID,
			ProfessionalID: professionalID,
			Status:         domain.AssignmentPending,
			Source:         domain.SourceMatching,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		created, err = q.InsertAssignment(ctx, a)
		if err != nil || !created {
			return err
		}
		return q.InsertAssignmentTransition(ctx, domain.AssignmentTransition{
			ID:           uuid.New(),
			AssignmentID: a.ID,
			To:           domain.AssignmentPending,
			Reason:       reasonMatched,
			CreatedAt:    now,
		})
	})
	return a, created, err
}

// ManualAssign gives one professional a PENDING assignment on an OPEN lead.
// An existing pair is a DuplicateAssignment unless Override is set and the
// pair was REJECTED, in which case it is revived.
func (s *Service) ManualAssign(ctx context.Context, p ManualAssignParams) (domain.Assignment, error) {
	var (
		result      domain.Assignment
		serviceName string
		location    string
		creditCost  int64
	)
	err := s.store.WithinTx(ctx, opManualAssign, func(q store.Queries) error {
		lead, err := q.LockLead(ctx, p.LeadID)
		if err != nil {
			return err
		}
		if lead.Status != domain.LeadOpen {
			return domain.ErrLeadNotOpen(lead.Status).WithOp(opManualAssign)
		}
		if _, err := q.GetProfessional(ctx, p.ProfessionalID); err != nil {
			return err
		}
		service, err := q.GetService(ctx, lead.ServiceID)
		if err != nil {
			return err
		}
		serviceName, location, creditCost = service.Name, lead.Location, service.CreditCost

		now := s.now()
		actor := p.AdminID

		existing, err := q.GetAssignmentByPair(ctx, p.LeadID, p.ProfessionalID)
		switch {
		case err == nil:
			if !p.Override || existing.Status != domain.AssignmentRejected {
				return domain.ErrDuplicateAssignment().WithOp(opManualAssign)
			}
			if err := q.SetAssignmentStatus(ctx, existing.ID, domain.AssignmentPending, nil, now); err != nil {
				return err
			}
			if err := q.InsertAssignmentTransition(ctx, domain.AssignmentTransition{
				ID:           uuid.New(),
				AssignmentID: existing.ID,
				From:         domain.AssignmentRejected,
				To:           domain.AssignmentPending,
				ActorID:      &actor,
				Reason:       reasonManualOverride,
				CreatedAt:    now,
			}); err != nil {
				return err
			}
			existing.Status = domain.AssignmentPending
			existing.DecidedAt = nil
			existing.UpdatedAt = now
			result = existing
			return nil
		case !apperr.Is(err, apperr.KindNotFound):
			return err
		}

		a := domain.Assignment{
			ID:             uuid.New(),
			LeadID:         p.LeadID,
			ProfessionalID: p.ProfessionalID,
			Status:         domain.AssignmentPending,
			Source:         domain.SourceManual,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		created, err := q.InsertAssignment(ctx, a)
		if err != nil {
			return err
		}
		if !created {
			return domain.ErrDuplicateAssignment().WithOp(opManualAssign)
		}
		if err := q.InsertAssignmentTransition(ctx, domain.AssignmentTransition{
			ID:           uuid.New(),
			AssignmentID: a.ID,
			To:           domain.AssignmentPending,
			ActorID:      &actor,
			Reason:       reasonManual,
			CreatedAt:    now,
		}); err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return domain.Assignment{}, err
	}

	s.publish(ctx, events.AssignmentCreated{
		BaseEvent:      events.NewBaseEvent(),
		AssignmentID:   result.ID,
		LeadID:         result.LeadID,
		ProfessionalID: result.ProfessionalID,
		ServiceName:    serviceName,
		Location:       location,
		CreditCost:     creditCost,
		Manual:         true,
	})
	s.log.WithContext(ctx).Info("manual assignment",
		"lead_id", p.LeadID.String(),
		"professional_id", p.ProfessionalID.String(),
		"override", p.Override,
	)
	return result, nil
}

// ListLeadAssignments returns every assignment of a lead for administrators.
func (s *Service) ListLeadAssignments(ctx context.Context, leadID uuid.UUID) ([]domain.Assignment, error) {
	if _, err := s.store.GetLead(ctx, leadID); err != nil {
		return nil, err
	}
	return s.store.ListAssignmentsByLead(ctx, leadID)
}

// History returns the audit trail of one assignment.
func (s *Service) History(ctx context.Context, assignmentID uuid.UUID) ([]domain.AssignmentTransition, error) {
	if _, err := s.store.GetAssignment(ctx, assignmentID); err != nil {
		return nil, err
	}
	return s.store.ListAssignmentTransitions(ctx, assignmentID)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, event)
}
