package notification

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRoundTripsEveryKind(t *testing.T) {
	payloads := []Payload{
		AssignmentCreated{AssignmentID: uuid.New(), LeadID: uuid.New(), ProfessionalID: uuid.New(), ServiceName: "Roofing", Location: "Delft", CreditCost: 4},
		AssignmentRejected{AssignmentID: uuid.New(), LeadID: uuid.New(), ProfessionalID: uuid.New(), Reason: "busy"},
		LeadAccepted{AssignmentID: uuid.New(), LeadID: uuid.New(), ProfessionalID: uuid.New(), CustomerID: uuid.New(), CreditsCharged: 4, Missed: []uuid.UUID{uuid.New()}},
		ProfessionalRegistered{ProfessionalID: uuid.New(), DisplayName: "Jansen Dakwerken"},
	}
	for _, p := range payloads {
		data, err := Encode(p)
		require.NoError(t, err)
		got, err := Decode(string(p.Kind()), data)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := Decode("lead_missed", []byte(`{}`))
	require.Error(t, err)
}

func TestRenderWithoutAdministratorsProducesNothingForAdminKinds(t *testing.T) {
	msgs, err := Render(AssignmentRejected{AssignmentID: uuid.New(), LeadID: uuid.New(), ProfessionalID: uuid.New()}, nil)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	admins := []uuid.UUID{uuid.New(), uuid.New()}
	msgs, err = Render(ProfessionalRegistered{ProfessionalID: uuid.New(), DisplayName: "X"}, admins)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, admins[1], msgs[1].RecipientID)
}
