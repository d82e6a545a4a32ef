package transport

import (
	"time"

	"leadmarket_backend/internal/assignments/service"
	"leadmarket_backend/internal/domain"

	"github.com/google/uuid"
)

type ListAssignmentsRequest struct {
	Status string `form:"status" validate:"omitempty,oneof=PENDING ACCEPTED REJECTED MISSED"`
}

type RejectAssignmentRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type ContactResponse struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

type LeadTeaserResponse struct {
	ServiceID   uuid.UUID `json:"serviceId"`
	ServiceName string    `json:"serviceName"`
	CreditCost  int64     `json:"creditCost"`
	Status      string    `json:"status"`
	Location    string    `json:"location"`
	BudgetCents *int64    `json:"budgetCents,omitempty"`
	Urgency     string    `json:"urgency"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type AssignmentResponse struct {
	ID        uuid.UUID           `json:"id"`
	LeadID    uuid.UUID           `json:"leadId"`
	Status    string              `json:"status"`
	Source    string              `json:"source"`
	DecidedAt *time.Time          `json:"decidedAt,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
	Lead      *LeadTeaserResponse `json:"lead,omitempty"`
	Contact   *ContactResponse    `json:"contact,omitempty"`
}

type AssignmentListResponse struct {
	Items []AssignmentResponse `json:"items"`
	Count int                  `json:"count"`
}

type AcceptAssignmentResponse struct {
	Assignment     AssignmentResponse `json:"assignment"`
	Contact        ContactResponse    `json:"contact"`
	CreditsCharged int64              `json:"creditsCharged"`
	BalanceAfter   int64              `json:"balanceAfter"`
}

func ToAssignmentResponse(a domain.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:        a.ID,
		LeadID:    a.LeadID,
		Status:    string(a.Status),
		Source:    string(a.Source),
		DecidedAt: a.DecidedAt,
		CreatedAt: a.CreatedAt,
	}
}

func ToContactResponse(c domain.ContactDetails) ContactResponse {
	return ContactResponse{Name: c.Name, Phone: c.Phone, Email: c.Email, Address: c.Address}
}

func ToAssignmentList(items []domain.AssignmentWithLead) AssignmentListResponse {
	out := make([]AssignmentResponse, 0, len(items))
	for _, item := range items {
		resp := ToAssignmentResponse(item.Assignment)
		resp.Lead = &LeadTeaserResponse{
			ServiceID:   item.Lead.ServiceID,
			ServiceName: item.Lead.ServiceName,
			CreditCost:  item.Lead.CreditCost,
			Status:      string(item.Lead.Status),
			Location:    item.Lead.Location,
			BudgetCents: item.Lead.BudgetCents,
			Urgency:     string(item.Lead.Urgency),
			Description: item.Lead.Description,
			CreatedAt:   item.Lead.CreatedAt,
		}
		out = append(out, resp)
	}
	return AssignmentListResponse{Items: out, Count: len(out)}
}

func ToAcceptResponse(r service.AcceptResult) AcceptAssignmentResponse {
	return AcceptAssignmentResponse{
		Assignment:     ToAssignmentResponse(r.Assignment),
		Contact:        ToContactResponse(r.Contact),
		CreditsCharged: r.CreditsCharged,
		BalanceAfter:   r.BalanceAfter,
	}
}
