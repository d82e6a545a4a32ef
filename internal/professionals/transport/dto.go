package transport

import (
	"time"

	"leadmarket_backend/internal/domain"

	"github.com/google/uuid"
)

type RegisterRequest struct {
	DisplayName  string      `json:"displayName" validate:"required,notblank,max=120"`
	Email        string      `json:"email" validate:"required,email,max=254"`
	CoverageArea string      `json:"coverageArea" validate:"required,notblank,max=500"`
	ServiceIDs   []uuid.UUID `json:"serviceIds" validate:"omitempty,max=50"`
}

type UpdateProfileRequest struct {
	DisplayName  *string `json:"displayName" validate:"omitempty,notblank,max=120"`
	CoverageArea *string `json:"coverageArea" validate:"omitempty,notblank,max=500"`
	Active       *bool   `json:"active"`
}

type SetServicesRequest struct {
	ServiceIDs []uuid.UUID `json:"serviceIds" validate:"max=50"`
}

type CreateServiceRequest struct {
	Name       string `json:"name" validate:"required,notblank,max=120"`
	CreditCost int64  `json:"creditCost" validate:"min=0"`
}

type ProfessionalResponse struct {
	ID            uuid.UUID   `json:"id"`
	DisplayName   string      `json:"displayName"`
	Email         string      `json:"email"`
	CoverageArea  string      `json:"coverageArea"`
	Active        bool        `json:"active"`
	CreditBalance int64       `json:"creditBalance"`
	ServiceIDs    []uuid.UUID `json:"serviceIds"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

type ServiceResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	CreditCost int64     `json:"creditCost"`
}

func ToProfessionalResponse(p domain.Professional) ProfessionalResponse {
	serviceIDs := p.ServiceIDs
	if serviceIDs == nil {
		serviceIDs = []uuid.UUID{}
	}
	return ProfessionalResponse{
		ID:            p.ID,
		DisplayName:   p.DisplayName,
		Email:         p.Email,
		CoverageArea:  p.CoverageArea,
		Active:        p.Active,
		CreditBalance: p.CreditBalance,
		ServiceIDs:    serviceIDs,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func ToServiceResponse(s domain.Service) ServiceResponse {
	return ServiceResponse{ID: s.ID, Name: s.Name, CreditCost: s.CreditCost}
}
