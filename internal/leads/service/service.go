// Package service implements the lead directory: intake, the owner and admin
// read views, and the customer's cancel / complete / report-issue feedback.
package service

import (
	"context"
	"strings"
	"time"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/leads/transport"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/phone"
	"leadmarket_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	opCreate      = "leads.create"
	opCancel      = "leads.cancel"
	opComplete    = "leads.complete"
	opReportIssue = "leads.report_issue"

	reasonLeadCancelled = "lead cancelled by customer"
)

// Matcher fans a freshly created lead out to matching professionals.
type Matcher interface {
	FanOutAssignments(ctx context.Context, leadID uuid.UUID) ([]domain.Assignment, error)
}

// Viewer is whoever asks to read a lead.
type Viewer struct {
	ID    uuid.UUID
	Admin bool
}

// LeadView is a lead as shown to its owner or an administrator.
type LeadView struct {
	Lead        domain.Lead
	Assignments []domain.Assignment
}

// CreateResult is a new lead plus how many professionals it reached.
type CreateResult struct {
	Lead    domain.Lead
	Matched int
}

// Service handles lead operations.
type Service struct {
	store       store.Store
	bus         events.Bus
	log         *logger.Logger
	matcher     Matcher
	phoneRegion string
	now         func() time.Time
}

// New creates the lead directory service.
func New(st store.Store, bus events.Bus, cfg config.LeadsConfig, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	region := phone.DefaultRegion
	if cfg != nil && cfg.GetPhoneDefaultRegion() != "" {
		region = cfg.GetPhoneDefaultRegion()
	}
	return &Service{
		store:       st,
		bus:         bus,
		log:         log,
		phoneRegion: region,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetMatcher injects the fan-out step run after a lead is created.
func (s *Service) SetMatcher(m Matcher) {
	s.matcher = m
}

// Create stores a new OPEN lead for customerID and fans it out. A fan-out
// failure is logged; the lead itself is already committed.
func (s *Service) Create(ctx context.Context, customerID uuid.UUID, req transport.CreateLeadRequest) (CreateResult, error) {
	normalizedPhone, err := phone.ToE164(req.Contact.Phone, s.phoneRegion)
	if err != nil {
		return CreateResult{}, domain.ErrValidation("contact phone is not a valid phone number").
			WithDetails(map[string]string{"contact.phone": "e164"}).
			WithOp(opCreate)
	}

	urgency := domain.Urgency(strings.ToLower(req.Urgency))
	if urgency == "" {
		urgency = domain.UrgencyMedium
	}

	now := s.now()
	lead := domain.Lead{
		ID:          uuid.New(),
		CustomerID:  customerID,
		ServiceID:   req.ServiceID,
		Status:      domain.LeadOpen,
		Location:    sanitize.Line(req.Location),
		BudgetCents: req.BudgetCents,
		Urgency:     urgency,
		Description: sanitize.Text(req.Description),
		Contact: domain.ContactDetails{
			Name:    sanitize.Line(req.Contact.Name),
			Phone:   normalizedPhone,
			Email:   strings.ToLower(strings.TrimSpace(req.Contact.Email)),
			Address: sanitize.Line(req.Contact.Address),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if lead.Description == "" || lead.Location == "" {
		return CreateResult{}, domain.ErrValidation("description and location must contain text").WithOp(opCreate)
	}

	err = s.store.WithinTx(ctx, opCreate, func(q store.Queries) error {
		if _, err := q.GetService(ctx, lead.ServiceID); err != nil {
			return err
		}
		return q.InsertLead(ctx, lead)
	})
	if err != nil {
		return CreateResult{}, err
	}

	s.publish(ctx, events.LeadCreated{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     lead.ID,
		CustomerID: lead.CustomerID,
		ServiceID:  lead.ServiceID,
	})

	result := CreateResult{Lead: lead}
	if s.matcher != nil {
		created, err := s.matcher.FanOutAssignments(ctx, lead.ID)
		if err != nil {
			s.log.WithContext(ctx).Error("fan-out after lead creation failed", "lead_id", lead.ID.String(), "error", err)
		}
		result.Matched = len(created)
	}
	return result, nil
}

// Get returns the lead to its customer or an administrator. Administrators
// also see every assignment.
func (s *Service) Get(ctx context.Context, leadID uuid.UUID, viewer Viewer) (LeadView, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return LeadView{}, err
	}
	if !viewer.Admin && lead.CustomerID != viewer.ID {
		return LeadView{}, domain.ErrForbidden("lead belongs to another customer")
	}

	view := LeadView{Lead: lead}
	if viewer.Admin {
		view.Assignments, err = s.store.ListAssignmentsByLead(ctx, leadID)
		if err != nil {
			return LeadView{}, err
		}
	}
	return view, nil
}

// Cancel withdraws the lead. Every PENDING assignment becomes MISSED in the
// same transaction. Credits already spent on an accepted assignment stay spent.
func (s *Service) Cancel(ctx context.Context, leadID, customerID uuid.UUID) (domain.Lead, error) {
	var (
		lead   domain.Lead
		missed []uuid.UUID
	)
	err := s.store.WithinTx(ctx, opCancel, func(q store.Queries) error {
		missed = nil

		var err error
		lead, err = s.lockOwnedLead(ctx, q, leadID, customerID)
		if err != nil {
			return err
		}
		if !lead.Status.CanTransitionTo(domain.LeadCancelled) {
			return domain.ErrInvalidLeadTransition(lead.Status, domain.LeadCancelled).WithOp(opCancel)
		}

		now := s.now()
		if err := q.UpdateLeadStatus(ctx, leadID, domain.LeadCancelled, now); err != nil {
			return err
		}
		missed, err = q.MarkPendingAssignmentsMissed(ctx, leadID, uuid.Nil, now)
		if err != nil {
			return err
		}
		actor := customerID
		for _, id := range missed {
			if err := q.InsertAssignmentTransition(ctx, domain.AssignmentTransition{
				ID:           uuid.New(),
				AssignmentID: id,
				From:         domain.AssignmentPending,
				To:           domain.AssignmentMissed,
				ActorID:      &actor,
				Reason:       reasonLeadCancelled,
				CreatedAt:    now,
			}); err != nil {
				return err
			}
		}
		lead.Status = domain.LeadCancelled
		lead.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Lead{}, err
	}

	s.publish(ctx, events.LeadCancelled{
		BaseEvent:     events.NewBaseEvent(),
		LeadID:        leadID,
		CustomerID:    customerID,
		MissedPending: missed,
	})
	s.log.WithContext(ctx).Info("lead cancelled", "lead_id", leadID.String(), "missed_pending", len(missed))
	return lead, nil
}

// Complete records that the accepted professional finished the job.
func (s *Service) Complete(ctx context.Context, leadID, customerID uuid.UUID) (domain.Lead, error) {
	return s.closeAssigned(ctx, opComplete, leadID, customerID, domain.LeadCompleted, "")
}

// ReportIssue records a problem with the accepted professional.
func (s *Service) ReportIssue(ctx context.Context, leadID, customerID uuid.UUID, reason string) (domain.Lead, error) {
	return s.closeAssigned(ctx, opReportIssue, leadID, customerID, domain.LeadIssueReported, sanitize.Text(reason))
}

func (s *Service) closeAssigned(ctx context.Context, op string, leadID, customerID uuid.UUID, next domain.LeadStatus, reason string) (domain.Lead, error) {
	var lead domain.Lead
	err := s.store.WithinTx(ctx, op, func(q store.Queries) error {
		var err error
		lead, err = s.lockOwnedLead(ctx, q, leadID, customerID)
		if err != nil {
			return err
		}
		if !lead.Status.CanTransitionTo(next) {
			return domain.ErrInvalidLeadTransition(lead.Status, next).WithOp(op)
		}
		accepted, err := q.HasAcceptedAssignment(ctx, leadID)
		if err != nil {
			return err
		}
		if !accepted {
			return domain.ErrInvalidLeadTransition(lead.Status, next).WithOp(op)
		}

		now := s.now()
		if err := q.UpdateLeadStatus(ctx, leadID, next, now); err != nil {
			return err
		}
		lead.Status = next
		lead.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Lead{}, err
	}

	s.log.WithContext(ctx).Info("lead closed by customer", "lead_id", leadID.String(), "status", string(next), "reason", reason)
	return lead, nil
}

func (s *Service) lockOwnedLead(ctx context.Context, q store.Queries, leadID, customerID uuid.UUID) (domain.Lead, error) {
	lead, err := q.LockLead(ctx, leadID)
	if err != nil {
		return domain.Lead{}, err
	}
	if lead.CustomerID != customerID {
		return domain.Lead{}, domain.ErrForbidden("lead belongs to another customer")
	}
	return lead, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, event)
}
