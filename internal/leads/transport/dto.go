package transport

import (
	"time"

	"leadmarket_backend/internal/domain"

	"github.com/google/uuid"
)

type ContactRequest struct {
	Name    string `json:"name" validate:"required,notblank,max=120"`
	Phone   string `json:"phone" validate:"required,max=32"`
	Email   string `json:"email" validate:"omitempty,email,max=254"`
	Address string `json:"address" validate:"omitempty,max=300"`
}

type CreateLeadRequest struct {
	ServiceID   uuid.UUID      `json:"serviceId" validate:"required"`
	Location    string         `json:"location" validate:"required,notblank,max=200"`
	BudgetCents *int64         `json:"budgetCents" validate:"omitempty,min=0"`
	Urgency     string         `json:"urgency" validate:"omitempty,oneof=low medium high"`
	Description string         `json:"description" validate:"required,notblank,max=5000"`
	Contact     ContactRequest `json:"contact"`
}

type ReportIssueRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=1000"`
}

type ContactResponse struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

type LeadResponse struct {
	ID          uuid.UUID       `json:"id"`
	CustomerID  uuid.UUID       `json:"customerId"`
	ServiceID   uuid.UUID       `json:"serviceId"`
	Status      string          `json:"status"`
	Location    string          `json:"location"`
	BudgetCents *int64          `json:"budgetCents,omitempty"`
	Urgency     string          `json:"urgency"`
	Description string          `json:"description"`
	Contact     ContactResponse `json:"contact"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`

	// Assignments is only filled for administrators.
	Assignments []AssignmentSummary `json:"assignments,omitempty"`
}

type AssignmentSummary struct {
	ID             uuid.UUID  `json:"id"`
	ProfessionalID uuid.UUID  `json:"professionalId"`
	Status         string     `json:"status"`
	Source         string     `json:"source"`
	DecidedAt      *time.Time `json:"decidedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type CreateLeadResponse struct {
	LeadResponse
	MatchedProfessionals int `json:"matchedProfessionals"`
}

func ToContactResponse(c domain.ContactDetails) ContactResponse {
	return ContactResponse{Name: c.Name, Phone: c.Phone, Email: c.Email, Address: c.Address}
}

func ToLeadResponse(l domain.Lead) LeadResponse {
	return LeadResponse{
		ID:          l.ID,
		CustomerID:  l.CustomerID,
		ServiceID:   l.ServiceID,
		Status:      string(l.Status),
		Location:    l.Location,
		BudgetCents: l.BudgetCents,
		Urgency:     string(l.Urgency),
		Description: l.Description,
		Contact:     ToContactResponse(l.Contact),
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func ToAssignmentSummary(a domain.Assignment) AssignmentSummary {
	return AssignmentSummary{
		ID:             a.ID,
		ProfessionalID: a.ProfessionalID,
		Status:         string(a.Status),
		Source:         string(a.Source),
		DecidedAt:      a.DecidedAt,
		CreatedAt:      a.CreatedAt,
	}
}
