package notification

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Kind names a notification trigger. It is stored on outbox records and
// notification rows.
type Kind string

const (
	KindAssignmentCreated      Kind = "assignment_created"
	KindAssignmentRejected     Kind = "assignment_rejected"
	KindLeadAccepted           Kind = "lead_accepted"
	KindLeadMissed             Kind = "lead_missed"
	KindProfessionalRegistered Kind = "professional_registered"
)

// Payload is the closed set of notification triggers. Only types in this
// package implement it.
type Payload interface {
	Kind() Kind
	sealed()
}

// AssignmentCreated tells a professional a new lead is waiting for them.
type AssignmentCreated struct {
	AssignmentID   uuid.UUID `json:"assignmentId"`
	LeadID         uuid.UUID `json:"leadId"`
	ProfessionalID uuid.UUID `json:"professionalId"`
	ServiceName    string    `json:"serviceName"`
	Location       string    `json:"location"`
	CreditCost     int64     `json:"creditCost"`
}

// AssignmentRejected tells administrators a lead may need re-matching.
type AssignmentRejected struct {
	AssignmentID   uuid.UUID `json:"assignmentId"`
	LeadID         uuid.UUID `json:"leadId"`
	ProfessionalID uuid.UUID `json:"professionalId"`
	Reason         string    `json:"reason,omitempty"`
}

// LeadAccepted tells the customer and the winner the lead changed hands, and
// the losing professionals that it is gone.
type LeadAccepted struct {
	AssignmentID   uuid.UUID `json:"assignmentId"`
	LeadID         uuid.UUID `json:"leadId"`
	ProfessionalID uuid.UUID `json:"professionalId"`
	CustomerID     uuid.UUID `json:"customerId"`
	CreditsCharged int64     `json:"creditsCharged"`
	// Missed holds the professionals who lost the lead.
	Missed []uuid.UUID `json:"missed,omitempty"`
}

// ProfessionalRegistered tells administrators about a signup.
type ProfessionalRegistered struct {
	ProfessionalID uuid.UUID `json:"professionalId"`
	DisplayName    string    `json:"displayName"`
}

func (AssignmentCreated) Kind() Kind      { return KindAssignmentCreated }
func (AssignmentRejected) Kind() Kind     { return KindAssignmentRejected }
func (LeadAccepted) Kind() Kind           { return KindLeadAccepted }
func (ProfessionalRegistered) Kind() Kind { return KindProfessionalRegistered }

func (AssignmentCreated) sealed()      {}
func (AssignmentRejected) sealed()     {}
func (LeadAccepted) sealed()           {}
func (ProfessionalRegistered) sealed() {}

// Encode serialises p for the outbox.
func Encode(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.Kind(), err)
	}
	return data, nil
}

// Decode is the inverse of Encode. Unknown kinds are an error.
func Decode(kind string, data []byte) (Payload, error) {
	switch Kind(kind) {
	case KindAssignmentCreated:
		return decodeAs[AssignmentCreated](kind, data)
	case KindAssignmentRejected:
		return decodeAs[AssignmentRejected](kind, data)
	case KindLeadAccepted:
		return decodeAs[LeadAccepted](kind, data)
	case KindProfessionalRegistered:
		return decodeAs[ProfessionalRegistered](kind, data)
	default:
		return nil, fmt.Errorf("unknown notification kind %q", kind)
	}
}

func decodeAs[T Payload](kind string, data []byte) (Payload, error) {
	var p T
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return p, nil
}

// Message is one rendered notification for one recipient.
type Message struct {
	Kind        Kind
	RecipientID uuid.UUID
	Text        string
	RelatedIDs  map[string]string
}

// Render turns p into messages. admins receives the administrator-facing kinds.
func Render(p Payload, admins []uuid.UUID) ([]Message, error) {
	switch v := p.(type) {
	case AssignmentCreated:
		return []Message{{
			Kind:        KindAssignmentCreated,
			RecipientID: v.ProfessionalID,
			Text:        fmt.Sprintf("New %s lead in %s (%d credits)", v.ServiceName, v.Location, v.CreditCost),
			RelatedIDs:  related("assignmentId", v.AssignmentID, "leadId", v.LeadID),
		}}, nil

	case AssignmentRejected:
		text := fmt.Sprintf("Professional %s rejected lead %s", v.ProfessionalID, v.LeadID)
		if v.Reason != "" {
			text += ": " + v.Reason
		}
		return toEach(admins, KindAssignmentRejected, text,
			related("assignmentId", v.AssignmentID, "leadId", v.LeadID, "professionalId", v.ProfessionalID)), nil

	case LeadAccepted:
		ids := related("assignmentId", v.AssignmentID, "leadId", v.LeadID)
		out := []Message{
			{
				Kind:        KindLeadAccepted,
				RecipientID: v.CustomerID,
				Text:        "A professional accepted your request and will contact you",
				RelatedIDs:  related("leadId", v.LeadID, "professionalId", v.ProfessionalID),
			},
			{
				Kind:        KindLeadAccepted,
				RecipientID: v.ProfessionalID,
				Text:        fmt.Sprintf("You accepted the lead; %d credits were charged", v.CreditsCharged),
				RelatedIDs:  ids,
			},
		}
		for _, id := range v.Missed {
			out = append(out, Message{
				Kind:        KindLeadMissed,
				RecipientID: id,
				Text:        "Another professional accepted this lead first",
				RelatedIDs:  related("leadId", v.LeadID),
			})
		}
		return out, nil

	case ProfessionalRegistered:
		return toEach(admins, KindProfessionalRegistered,
			fmt.Sprintf("New professional registered: %s", v.DisplayName),
			related("professionalId", v.ProfessionalID)), nil

	default:
		return nil, fmt.Errorf("unknown notification payload %T", p)
	}
}

func toEach(recipients []uuid.UUID, kind Kind, text string, ids map[string]string) []Message {
	out := make([]Message, 0, len(recipients))
	for _, r := range recipients {
		out = append(out, Message{Kind: kind, RecipientID: r, Text: text, RelatedIDs: ids})
	}
	return out
}

func related(pairs ...any) map[string]string {
	out := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out[pairs[i].(string)] = pairs[i+1].(uuid.UUID).String()
	}
	return out
}
