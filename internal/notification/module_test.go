package notification

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/internal/store/storetest"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNotificationConfig struct {
	admins []uuid.UUID
}

func (c testNotificationConfig) GetAdminRecipients() []uuid.UUID { return c.admins }

func newTestModule(t *testing.T, admins ...uuid.UUID) (*Module, store.Store, *events.InMemoryBus) {
	t.Helper()
	st := storetest.NewSQLite(t)
	bus := events.NewInMemoryBus(logger.Discard())
	m := New(st, testNotificationConfig{admins: admins}, validator.New(), logger.Discard())
	m.RegisterHandlers(bus)
	return m, st, bus
}

// drain relays every pending outbox record through the processor.
func drain(t *testing.T, m *Module, st store.Store) int {
	t.Helper()
	ctx := context.Background()
	recs, err := st.ClaimPendingOutbox(ctx, time.Now().UTC().Add(time.Second), 100)
	require.NoError(t, err)
	for _, rec := range recs {
		require.NoError(t, m.ProcessOutbox(ctx, rec.ID))
	}
	return len(recs)
}

func TestLeadAcceptedNotifiesCustomerWinnerAndLosers(t *testing.T) {
	m, st, bus := newTestModule(t)
	ctx := context.Background()
	customer, winner, loser := uuid.New(), uuid.New(), uuid.New()
	leadID := uuid.New()

	bus.Publish(ctx, events.LeadAccepted{
		BaseEvent:           events.NewBaseEvent(),
		AssignmentID:        uuid.New(),
		LeadID:              leadID,
		ProfessionalID:      winner,
		CustomerID:          customer,
		CreditsCharged:      5,
		Missed:              []uuid.UUID{uuid.New()},
		MissedProfessionals: []uuid.UUID{loser},
	})
	bus.Wait()
	require.Equal(t, 1, drain(t, m, st))

	for recipient, kind := range map[uuid.UUID]Kind{customer: KindLeadAccepted, winner: KindLeadAccepted, loser: KindLeadMissed} {
		items, err := st.ListNotifications(ctx, recipient, false, store.Page{})
		require.NoError(t, err)
		require.Len(t, items, 1, "recipient %s", recipient)
		assert.Equal(t, string(kind), items[0].Type)
		assert.Equal(t, leadID.String(), items[0].RelatedIDs["leadId"])
		assert.False(t, items[0].Read)
	}
}

func TestRejectionAndSignupGoToAdministrators(t *testing.T) {
	admin := uuid.New()
	m, st, bus := newTestModule(t, admin)
	ctx := context.Background()

	bus.Publish(ctx, events.AssignmentRejected{BaseEvent: events.NewBaseEvent(), AssignmentID: uuid.New(), LeadID: uuid.New(), ProfessionalID: uuid.New(), Reason: "too far"})
	bus.Publish(ctx, events.ProfessionalRegistered{BaseEvent: events.NewBaseEvent(), ProfessionalID: uuid.New(), DisplayName: "Bakker Loodgieters"})
	bus.Wait()
	require.Equal(t, 2, drain(t, m, st))

	items, err := st.ListNotifications(ctx, admin, true, store.Page{})
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.NoError(t, st.MarkNotificationRead(ctx, items[0].ID, admin))
	unread, err := st.ListNotifications(ctx, admin, true, store.Page{})
	require.NoError(t, err)
	assert.Len(t, unread, 1)
}

func TestProcessIsIdempotent(t *testing.T) {
	m, st, _ := newTestModule(t)
	ctx := context.Background()
	pro := uuid.New()

	require.NoError(t, m.Emitter().Emit(ctx, AssignmentCreated{
		AssignmentID: uuid.New(), LeadID: uuid.New(), ProfessionalID: pro,
		ServiceName: "Plumbing", Location: "Utrecht", CreditCost: 3,
	}))
	recs, err := st.ClaimPendingOutbox(ctx, time.Now().UTC().Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	require.NoError(t, m.ProcessOutbox(ctx, recs[0].ID))
	require.NoError(t, m.ProcessOutbox(ctx, recs[0].ID))

	items, err := st.ListNotifications(ctx, pro, false, store.Page{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0].Message, "Plumbing")

	rec, err := st.GetOutbox(ctx, recs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxSucceeded, rec.Status)
	assert.Equal(t, 1, rec.Attempts)
}

func TestUnknownKindMarksRecordFailed(t *testing.T) {
	m, st, _ := newTestModule(t)
	ctx := context.Background()
	now := time.Now().UTC()
	rec := domain.OutboxRecord{
		ID: uuid.New(), Kind: "carrier_pigeon", Payload: []byte(`{}`),
		RunAt: now, Status: domain.OutboxPending, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, st.InsertOutbox(ctx, rec))

	require.NoError(t, m.ProcessOutbox(ctx, rec.ID))

	got, err := st.GetOutbox(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxFailed, got.Status)
	assert.Contains(t, got.LastError, "unknown notification kind")
}

func TestEventsOutsideTheSetAreIgnored(t *testing.T) {
	m, st, _ := newTestModule(t)
	require.NoError(t, m.Emitter().Handle(context.Background(), events.CreditsAdded{ProfessionalID: uuid.New(), Amount: 5}))
	assert.Zero(t, drain(t, m, st))
}

type recordingPublisher struct {
	pushed []domain.Notification
}

func (r *recordingPublisher) Publish(_ context.Context, n domain.Notification) error {
	r.pushed = append(r.pushed, n)
	return nil
}

func TestProcessPushesNewRowsOnce(t *testing.T) {
	m, st, _ := newTestModule(t)
	pub := &recordingPublisher{}
	m.SetLivePublisher(pub)
	ctx := context.Background()
	pro := uuid.New()

	require.NoError(t, m.Emitter().Emit(ctx, AssignmentCreated{
		AssignmentID: uuid.New(), LeadID: uuid.New(), ProfessionalID: pro,
		ServiceName: "Roofing", Location: "Leiden", CreditCost: 2,
	}))
	recs, err := st.ClaimPendingOutbox(ctx, time.Now().UTC().Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	require.NoError(t, m.ProcessOutbox(ctx, recs[0].ID))
	require.NoError(t, m.ProcessOutbox(ctx, recs[0].ID))

	require.Len(t, pub.pushed, 1)
	assert.Equal(t, pro, pub.pushed[0].RecipientID)
	assert.Equal(t, string(KindAssignmentCreated), pub.pushed[0].Type)
}

var errOutboxUnavailable = errors.New("connection reset by peer")

// flakyOutboxStore fails the first failures outbox writes made inside a
// transaction.
type flakyOutboxStore struct {
	store.Store
	failures atomic.Int32
}

func (f *flakyOutboxStore) WithinTx(ctx context.Context, op string, fn store.TxFunc) error {
	return f.Store.WithinTx(ctx, op, func(q store.Queries) error {
		return fn(flakyOutboxQueries{Queries: q, owner: f})
	})
}

type flakyOutboxQueries struct {
	store.Queries
	owner *flakyOutboxStore
}

func (q flakyOutboxQueries) InsertOutbox(ctx context.Context, rec domain.OutboxRecord) error {
	if q.owner.failures.Add(-1) >= 0 {
		return errOutboxUnavailable
	}
	return q.Queries.InsertOutbox(ctx, rec)
}

func TestEmitRetriesTransientOutboxFailures(t *testing.T) {
	st := storetest.NewSQLite(t)
	flaky := &flakyOutboxStore{Store: st}
	flaky.failures.Store(2)

	bus := events.NewInMemoryBus(logger.Discard())
	m := New(flaky, testNotificationConfig{}, validator.New(), logger.Discard())
	m.RegisterHandlers(bus)
	ctx := context.Background()
	customer, winner := uuid.New(), uuid.New()

	bus.Publish(ctx, events.LeadAccepted{
		BaseEvent:      events.NewBaseEvent(),
		AssignmentID:   uuid.New(),
		LeadID:         uuid.New(),
		ProfessionalID: winner,
		CustomerID:     customer,
		CreditsCharged: 5,
	})
	bus.Wait()

	require.Equal(t, 1, drain(t, m, st))
	items, err := st.ListNotifications(ctx, customer, false, store.Page{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, string(KindLeadAccepted), items[0].Type)
	assert.Equal(t, int32(-1), flaky.failures.Load())
}

func TestEmitGivesUpAfterBoundedAttempts(t *testing.T) {
	st := storetest.NewSQLite(t)
	flaky := &flakyOutboxStore{Store: st}
	flaky.failures.Store(100)

	m := New(flaky, testNotificationConfig{}, validator.New(), logger.Discard())
	m.Emitter().retry = store.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	err := m.Emitter().Emit(context.Background(), ProfessionalRegistered{ProfessionalID: uuid.New(), DisplayName: "Pro"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errOutboxUnavailable))
	assert.Equal(t, int32(97), flaky.failures.Load())
	assert.Equal(t, 0, drain(t, m, st))
}
