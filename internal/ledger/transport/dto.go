package transport

import (
	"time"

	"leadmarket_backend/internal/domain"

	"github.com/google/uuid"
)

type BalanceResponse struct {
	ProfessionalID uuid.UUID `json:"professionalId"`
	Balance        int64     `json:"balance"`
}

type ListEntriesRequest struct {
	Page     int `form:"page" validate:"omitempty,min=1"`
	PageSize int `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type CreditEntryResponse struct {
	ID           uuid.UUID  `json:"id"`
	Kind         string     `json:"kind"`
	Amount       int64      `json:"amount"`
	BalanceAfter int64      `json:"balanceAfter"`
	LeadID       *uuid.UUID `json:"leadId,omitempty"`
	AssignmentID *uuid.UUID `json:"assignmentId,omitempty"`
	Reference    string     `json:"reference,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type CreditEntryListResponse struct {
	Items    []CreditEntryResponse `json:"items"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"pageSize"`
}

// AddCreditsRequest is sent by the wallet collaborator after an external
// payment is confirmed. Reference makes retries idempotent.
type AddCreditsRequest struct {
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Reference string `json:"reference" validate:"omitempty,max=128"`
}

type AddCreditsResponse struct {
	EntryID   uuid.UUID `json:"entryId"`
	Balance   int64     `json:"balance"`
	Duplicate bool      `json:"duplicate"`
}

func ToCreditEntryResponse(e domain.CreditEntry) CreditEntryResponse {
	return CreditEntryResponse{
		ID:           e.ID,
		Kind:         string(e.Kind),
		Amount:       e.Amount,
		BalanceAfter: e.BalanceAfter,
		LeadID:       e.LeadID,
		AssignmentID: e.AssignmentID,
		Reference:    e.Reference,
		CreatedAt:    e.CreatedAt,
	}
}
