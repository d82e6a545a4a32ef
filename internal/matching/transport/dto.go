package transport

import (
	"time"

	"leadmarket_backend/internal/domain"

	"github.com/google/uuid"
)

type ManualAssignRequest struct {
	ProfessionalID uuid.UUID `json:"professionalId" validate:"required"`
	Override       bool      `json:"override"`
}

type AssignmentResponse struct {
	ID             uuid.UUID  `json:"id"`
	LeadID         uuid.UUID  `json:"leadId"`
	ProfessionalID uuid.UUID  `json:"professionalId"`
	Status         string     `json:"status"`
	Source         string     `json:"source"`
	DecidedAt      *time.Time `json:"decidedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type AssignmentListResponse struct {
	Items []AssignmentResponse `json:"items"`
	Count int                  `json:"count"`
}

type TransitionResponse struct {
	From      string     `json:"from,omitempty"`
	To        string     `json:"to"`
	ActorID   *uuid.UUID `json:"actorId,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func ToAssignmentResponse(a domain.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:             a.ID,
		LeadID:         a.LeadID,
		ProfessionalID: a.ProfessionalID,
		Status:         string(a.Status),
		Source:         string(a.Source),
		DecidedAt:      a.DecidedAt,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func ToAssignmentList(items []domain.Assignment) AssignmentListResponse {
	out := make([]AssignmentResponse, 0, len(items))
	for _, a := range items {
		out = append(out, ToAssignmentResponse(a))
	}
	return AssignmentListResponse{Items: out, Count: len(out)}
}

func ToTransitionResponse(t domain.AssignmentTransition) TransitionResponse {
	return TransitionResponse{
		From:      string(t.From),
		To:        string(t.To),
		ActorID:   t.ActorID,
		Reason:    t.Reason,
		CreatedAt: t.CreatedAt,
	}
}
