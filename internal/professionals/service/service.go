// Package service manages professional profiles and the service catalog
// professionals register for.
package service

import (
	"context"
	"strings"
	"time"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/professionals/transport"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	opRegister    = "professionals.register"
	opUpdate      = "professionals.update_profile"
	opSetServices = "professionals.set_services"
)

// Service handles professional profile operations.
type Service struct {
	store store.Store
	bus   events.Bus
	log   *logger.Logger
	now   func() time.Time
}

// New creates a new professionals service.
func New(st store.Store, bus events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{store: st, bus: bus, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Register creates the profile for an authenticated professional. The
// professional id is the caller's user id. New profiles start with zero credits.
func (s *Service) Register(ctx context.Context, professionalID uuid.UUID, req transport.RegisterRequest) (domain.Professional, error) {
	now := s.now()
	p := domain.Professional{
		ID:           professionalID,
		DisplayName:  sanitize.Line(req.DisplayName),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		CoverageArea: normalizeCoverage(req.CoverageArea),
		Active:       true,
		ServiceIDs:   dedupe(req.ServiceIDs),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.store.WithinTx(ctx, opRegister, func(q store.Queries) error {
		return q.CreateProfessional(ctx, p)
	})
	if err != nil {
		return domain.Professional{}, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.ProfessionalRegistered{
			BaseEvent:      events.NewBaseEvent(),
			ProfessionalID: p.ID,
			DisplayName:    p.DisplayName,
		})
	}
	s.log.WithContext(ctx).Info("professional registered", "professional_id", p.ID.String(), "services", len(p.ServiceIDs))
	return p, nil
}

// Get returns the profile including its registered services.
func (s *Service) Get(ctx context.Context, professionalID uuid.UUID) (domain.Professional, error) {
	return s.store.GetProfessional(ctx, professionalID)
}

// UpdateProfile changes the display name, coverage area or active flag.
// Omitted fields keep their value.
func (s *Service) UpdateProfile(ctx context.Context, professionalID uuid.UUID, req transport.UpdateProfileRequest) (domain.Professional, error) {
	var updated domain.Professional
	err := s.store.WithinTx(ctx, opUpdate, func(q store.Queries) error {
		current, err := q.GetProfessional(ctx, professionalID)
		if err != nil {
			return err
		}
		if req.DisplayName != nil {
			current.DisplayName = sanitize.Line(*req.DisplayName)
		}
		if req.CoverageArea != nil {
			current.CoverageArea = normalizeCoverage(*req.CoverageArea)
		}
		if req.Active != nil {
			current.Active = *req.Active
		}
		current.UpdatedAt = s.now()

		if err := q.UpdateProfessionalProfile(ctx, store.ProfileUpdate{
			ID:           current.ID,
			DisplayName:  current.DisplayName,
			CoverageArea: current.CoverageArea,
			Active:       current.Active,
			UpdatedAt:    current.UpdatedAt,
		}); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return domain.Professional{}, err
	}
	return updated, nil
}

// SetServices replaces the registered service set. Unknown services are NotFound.
func (s *Service) SetServices(ctx context.Context, professionalID uuid.UUID, serviceIDs []uuid.UUID) (domain.Professional, error) {
	var updated domain.Professional
	err := s.store.WithinTx(ctx, opSetServices, func(q store.Queries) error {
		if _, err := q.GetProfessional(ctx, professionalID); err != nil {
			return err
		}
		if err := q.ReplaceProfessionalServices(ctx, professionalID, dedupe(serviceIDs)); err != nil {
			return err
		}
		p, err := q.GetProfessional(ctx, professionalID)
		updated = p
		return err
	})
	if err != nil {
		return domain.Professional{}, err
	}
	return updated, nil
}

// CreateService adds a service to the catalog.
func (s *Service) CreateService(ctx context.Context, req transport.CreateServiceRequest) (domain.Service, error) {
	if req.CreditCost < 0 {
		return domain.Service{}, domain.ErrValidation("credit cost must not be negative")
	}
	svc := domain.Service{
		ID:         uuid.New(),
		Name:       sanitize.Line(req.Name),
		CreditCost: req.CreditCost,
		CreatedAt:  s.now(),
	}
	if err := s.store.CreateService(ctx, svc); err != nil {
		return domain.Service{}, err
	}
	return svc, nil
}

// ListServices returns the catalog ordered by name.
func (s *Service) ListServices(ctx context.Context) ([]domain.Service, error) {
	return s.store.ListServices(ctx)
}

// normalizeCoverage trims each comma separated area and drops empty ones.
func normalizeCoverage(raw string) string {
	parts := strings.Split(sanitize.Line(raw), ",")
	areas := make([]string, 0, len(parts))
	for _, part := range parts {
		if area := strings.TrimSpace(part); area != "" {
			areas = append(areas, area)
		}
	}
	return strings.Join(areas, ", ")
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
