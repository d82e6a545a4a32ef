package domain

import "fmt"

// LeadStatus is the lifecycle state of a lead.
type LeadStatus string

const (
	LeadOpen          LeadStatus = "OPEN"
	LeadAssigned      LeadStatus = "ASSIGNED"
	LeadCompleted     LeadStatus = "COMPLETED"
	LeadIssueReported LeadStatus = "ISSUE_REPORTED"
	LeadCancelled     LeadStatus = "CANCELLED"
)

var leadTransitions = map[LeadStatus][]LeadStatus{
	LeadOpen:     {LeadAssigned, LeadCancelled},
	LeadAssigned: {LeadCompleted, LeadIssueReported, LeadCancelled},
}

// ParseLeadStatus converts a stored value into a LeadStatus.
func ParseLeadStatus(value string) (LeadStatus, error) {
	switch s := LeadStatus(value); s {
	case LeadOpen, LeadAssigned, LeadCompleted, LeadIssueReported, LeadCancelled:
		return s, nil
	}
	return "", fmt.Errorf("unknown lead status %q", value)
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s LeadStatus) CanTransitionTo(next LeadStatus) bool {
	for _, allowed := range leadTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsFinal reports whether no further transition is possible.
func (s LeadStatus) IsFinal() bool {
	return len(leadTransitions[s]) == 0
}

// AssignmentStatus is the decision state of one professional's candidacy.
type AssignmentStatus string

const (
	AssignmentPending  AssignmentStatus = "PENDING"
	AssignmentAccepted AssignmentStatus = "ACCEPTED"
	AssignmentRejected AssignmentStatus = "REJECTED"
	AssignmentMissed   AssignmentStatus = "MISSED"
)

// REJECTED -> PENDING exists only for the administrative override.
var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentPending:  {AssignmentAccepted, AssignmentRejected, AssignmentMissed},
	AssignmentRejected: {AssignmentPending},
}

// ParseAssignmentStatus converts a stored value into an AssignmentStatus.
func ParseAssignmentStatus(value string) (AssignmentStatus, error) {
	switch s := AssignmentStatus(value); s {
	case AssignmentPending, AssignmentAccepted, AssignmentRejected, AssignmentMissed:
		return s, nil
	}
	return "", fmt.Errorf("unknown assignment status %q", value)
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	for _, allowed := range assignmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AssignmentSource records how an assignment came to exist.
type AssignmentSource string

const (
	SourceMatching AssignmentSource = "matching"
	SourceManual   AssignmentSource = "manual"
)

// Urgency is the customer's stated timeline for a lead.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// CreditEntryKind distinguishes ledger debits from credits.
type CreditEntryKind string

const (
	EntryDebit  CreditEntryKind = "debit"
	EntryCredit CreditEntryKind = "credit"
)

// OutboxStatus tracks a notification outbox record through delivery.
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxEnqueued   OutboxStatus = "enqueued"
	OutboxProcessing OutboxStatus = "processing"
	OutboxSucceeded  OutboxStatus = "succeeded"
	OutboxFailed     OutboxStatus = "failed"
)
