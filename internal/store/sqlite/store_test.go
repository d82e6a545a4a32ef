package sqlite_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/internal/store/storetest"
	"leadmarket_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadRoundTrip(t *testing.T) {
	s := storetest.NewSQLite(t)
	seed := storetest.NewSeed(t, s)
	svc := seed.Service("plumbing", 5)
	lead := seed.Lead(svc.ID, "Amsterdam Noord")

	got, err := s.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.ID, got.ID)
	assert.Equal(t, domain.LeadOpen, got.Status)
	assert.Equal(t, "+31612345678", got.Contact.Phone)
	assert.Nil(t, got.BudgetCents)
	assert.WithinDuration(t, lead.CreatedAt, got.CreatedAt, time.Microsecond)

	_, err = s.GetLead(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestInsertAssignmentIsIdempotentPerPair(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewSQLite(t)
	seed := storetest.NewSeed(t, s)
	svc := seed.Service("plumbing", 5)
	pro := seed.Professional("Amsterdam", 10, svc.ID)
	lead := seed.Lead(svc.ID, "Amsterdam")
	first := seed.Assignment(lead.ID, pro.ID)

	created, err := s.InsertAssignment(ctx, domain.Assignment{
		ID: uuid.New(), LeadID: lead.ID, ProfessionalID: pro.ID,
		Status: domain.AssignmentPending, Source: domain.SourceManual,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, created)

	items, err := s.ListAssignmentsByLead(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, first.ID, items[0].ID)
}

func TestDebitNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewSQLite(t)
	seed := storetest.NewSeed(t, s)
	pro := seed.Professional("Utrecht", 4)

	balance, ok, err := s.DebitBalance(ctx, pro.ID, 5, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, balance)

	balance, ok, err = s.DebitBalance(ctx, pro.ID, 4, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(0), balance)
}

func TestOnlyOneAcceptedAssignmentPerLead(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewSQLite(t)
	seed := storetest.NewSeed(t, s)
	svc := seed.Service("plumbing", 5)
	lead := seed.Lead(svc.ID, "Utrecht")
	a1 := seed.Assignment(lead.ID, seed.Professional("Utrecht", 10, svc.ID).ID)
	a2 := seed.Assignment(lead.ID, seed.Professional("Utrecht", 10, svc.ID).ID)

	now := time.Now()
	require.NoError(t, s.SetAssignmentStatus(ctx, a1.ID, domain.AssignmentAccepted, &now, now))
	err := s.SetAssignmentStatus(ctx, a2.ID, domain.AssignmentAccepted, &now, now)
	require.Error(t, err, "the database itself must reject a second winner")
}

func TestMarkPendingMissedSkipsWinnerAndDecided(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewSQLite(t)
	seed := storetest.NewSeed(t, s)
	svc := seed.Service("plumbing", 5)
	lead := seed.Lead(svc.ID, "Utrecht")
	winner := seed.Assignment(lead.ID, seed.Professional("Utrecht", 10, svc.ID).ID)
	loser := seed.Assignment(lead.ID, seed.Professional("Utrecht", 10, svc.ID).ID)
	rejected := seed.Assignment(lead.ID, seed.Professional("Utrecht", 10, svc.ID).ID)

	now := time.Now()
	require.NoError(t, s.SetAssignmentStatus(ctx, rejected.ID, domain.AssignmentRejected, &now, now))

	flipped, err := s.MarkPendingAssignmentsMissed(ctx, lead.ID, winner.ID, now)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{loser.ID}, flipped)

	got, err := s.GetAssignment(ctx, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentRejected, got.Status)
}

func TestClaimPendingOutboxOnlyReturnsDueRecords(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewSQLite(t)
	now := time.Now().UTC()

	due := domain.OutboxRecord{ID: uuid.New(), Kind: "k", Payload: []byte(`{}`), RunAt: now.Add(-time.Second), Status: domain.OutboxPending, CreatedAt: now, UpdatedAt: now}
	later := domain.OutboxRecord{ID: uuid.New(), Kind: "k", Payload: []byte(`{}`), RunAt: now.Add(time.Hour), Status: domain.OutboxPending, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.InsertOutbox(ctx, due))
	require.NoError(t, s.InsertOutbox(ctx, later))

	claimed, err := s.ClaimPendingOutbox(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)
	assert.Equal(t, domain.OutboxEnqueued, claimed[0].Status)

	again, err := s.ClaimPendingOutbox(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestConcurrentCreditsAreNotLost(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewSQLite(t)
	pro := storetest.NewSeed(t, s).Professional("Utrecht", 0)

	const writers = 10
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.WithinTx(ctx, "test.credit", func(q store.Queries) error {
				if _, err := q.LockBalance(ctx, pro.ID); err != nil {
					return err
				}
				_, err := q.CreditBalance(ctx, pro.ID, 3, time.Now())
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	balance, err := s.GetBalance(ctx, pro.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(writers*3), balance)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewSQLite(t)
	pro := storetest.NewSeed(t, s).Professional("Utrecht", 7)

	err := s.WithinTx(ctx, "test.rollback", func(q store.Queries) error {
		if _, err := q.CreditBalance(ctx, pro.ID, 100, time.Now()); err != nil {
			return err
		}
		return domain.ErrInsufficientCredits(7, 9)
	})
	require.True(t, apperr.HasCode(err, domain.CodeInsufficientCredits))

	balance, err := s.GetBalance(ctx, pro.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), balance)
}
