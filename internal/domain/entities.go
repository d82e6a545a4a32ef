// Package domain holds the entities, lifecycle rules and result codes shared
// by the lead assignment and credit settlement modules.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Service is a bookable kind of work; its credit cost prices every lead for it.
type Service struct {
	ID         uuid.UUID
	Name       string
	CreditCost int64
	CreatedAt  time.Time
}

// Professional is a service provider who spends credits to unlock leads.
type Professional struct {
	ID            uuid.UUID
	DisplayName   string
	Email         string
	CoverageArea  string
	Active        bool
	CreditBalance int64
	ServiceIDs    []uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ContactDetails are hidden from professionals until they accept the lead.
type ContactDetails struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

// Lead is a customer's job request.
type Lead struct {
	ID          uuid.UUID
	CustomerID  uuid.UUID
	ServiceID   uuid.UUID
	Status      LeadStatus
	Location    string
	BudgetCents *int64
	Urgency     Urgency
	Description string
	Contact     ContactDetails
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Assignment is one professional's candidacy for one lead.
type Assignment struct {
	ID             uuid.UUID
	LeadID         uuid.UUID
	ProfessionalID uuid.UUID
	Status         AssignmentStatus
	Source         AssignmentSource
	DecidedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AssignmentTransition is an append-only audit row. From is empty for creation.
type AssignmentTransition struct {
	ID           uuid.UUID
	AssignmentID uuid.UUID
	From         AssignmentStatus
	To           AssignmentStatus
	ActorID      *uuid.UUID
	Reason       string
	CreatedAt    time.Time
}

// CreditEntry records one balance movement and the balance it left behind.
type CreditEntry struct {
	ID             uuid.UUID
	ProfessionalID uuid.UUID
	Kind           CreditEntryKind
	Amount         int64
	BalanceAfter   int64
	LeadID         *uuid.UUID
	AssignmentID   *uuid.UUID
	Reference      string
	CreatedAt      time.Time
}

// Notification is an immutable event record; only Read changes.
type Notification struct {
	ID          uuid.UUID
	Type        string
	RecipientID uuid.UUID
	Message     string
	RelatedIDs  map[string]string
	Read        bool
	OutboxID    *uuid.UUID
	CreatedAt   time.Time
}

// OutboxRecord is a queued notification trigger awaiting delivery.
type OutboxRecord struct {
	ID        uuid.UUID
	Kind      string
	Payload   []byte
	RunAt     time.Time
	Status    OutboxStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LeadTeaser is the part of a lead a professional sees before accepting it.
type LeadTeaser struct {
	ServiceID   uuid.UUID
	ServiceName string
	CreditCost  int64
	Status      LeadStatus
	Location    string
	BudgetCents *int64
	Urgency     Urgency
	Description string
	CreatedAt   time.Time
}

// AssignmentWithLead is one row of a professional's assignment inbox.
type AssignmentWithLead struct {
	Assignment
	Lead LeadTeaser
}
