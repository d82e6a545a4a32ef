// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
//
// Every event here is published only after the transaction that produced it
// has committed.
package events

import (
	"leadmarket_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadCreated is published when a customer posts a new lead.
type LeadCreated struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	CustomerID uuid.UUID `json:"customerId"`
	ServiceID  uuid.UUID `json:"serviceId"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadCancelled is published when a customer withdraws a lead.
type LeadCancelled struct {
	BaseEvent
	LeadID        uuid.UUID   `json:"leadId"`
	CustomerID    uuid.UUID   `json:"customerId"`
	MissedPending []uuid.UUID `json:"missedPending"`
}

func (e LeadCancelled) EventName() string { return "leads.lead.cancelled" }

// =============================================================================
// Assignment Domain Events
// =============================================================================

// AssignmentCreated is published for every newly created PENDING assignment.
type AssignmentCreated struct {
	BaseEvent
	AssignmentID   uuid.UUID `json:"assignmentId"`
	LeadID         uuid.UUID `json:"leadId"`
	ProfessionalID uuid.UUID `json:"professionalId"`
	ServiceName    string    `json:"serviceName"`
	Location       string    `json:"location"`
	CreditCost     int64     `json:"creditCost"`
	Manual         bool      `json:"manual"`
}

func (e AssignmentCreated) EventName() string { return "assignments.assignment.created" }

// AssignmentRejected is published when a professional declines a lead.
type AssignmentRejected struct {
	BaseEvent
	AssignmentID   uuid.UUID `json:"assignmentId"`
	LeadID         uuid.UUID `json:"leadId"`
	ProfessionalID uuid.UUID `json:"professionalId"`
	Reason         string    `json:"reason,omitempty"`
}

func (e AssignmentRejected) EventName() string { return "assignments.assignment.rejected" }

// LeadAccepted is published when a professional wins a lead.
type LeadAccepted struct {
	BaseEvent
	AssignmentID   uuid.UUID `json:"assignmentId"`
	LeadID         uuid.UUID `json:"leadId"`
	ProfessionalID uuid.UUID `json:"professionalId"`
	CustomerID     uuid.UUID `json:"customerId"`
	CreditsCharged int64     `json:"creditsCharged"`
	// Missed lists the assignments flipped to MISSED; MissedProfessionals their owners.
	Missed              []uuid.UUID `json:"missed"`
	MissedProfessionals []uuid.UUID `json:"missedProfessionals"`
}

func (e LeadAccepted) EventName() string { return "assignments.lead.accepted" }

// =============================================================================
// Professional Domain Events
// =============================================================================

// ProfessionalRegistered is published when a professional signs up.
type ProfessionalRegistered struct {
	BaseEvent
	ProfessionalID uuid.UUID `json:"professionalId"`
	DisplayName    string    `json:"displayName"`
}

func (e ProfessionalRegistered) EventName() string { return "professionals.professional.registered" }

// CreditsAdded is published after a wallet top-up is applied.
type CreditsAdded struct {
	BaseEvent
	ProfessionalID uuid.UUID `json:"professionalId"`
	Amount         int64     `json:"amount"`
	Balance        int64     `json:"balance"`
	Reference      string    `json:"reference,omitempty"`
}

func (e CreditsAdded) EventName() string { return "ledger.credits.added" }
