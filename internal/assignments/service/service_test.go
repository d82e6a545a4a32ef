package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leadmarket_backend/internal/assignments/service"
	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/events"
	ledger "leadmarket_backend/internal/ledger/service"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/internal/store/storetest"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type acceptedRecorder struct {
	mu       sync.Mutex
	accepted []events.LeadAccepted
	rejected []events.AssignmentRejected
}

func (r *acceptedRecorder) Handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch ev := e.(type) {
	case events.LeadAccepted:
		r.accepted = append(r.accepted, ev)
	case events.AssignmentRejected:
		r.rejected = append(r.rejected, ev)
	}
	return nil
}

type fixture struct {
	svc   *service.Service
	store store.Store
	seed  *storetest.Seed
	bus   *events.InMemoryBus
	rec   *acceptedRecorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	return newFixtureOn(t, storetest.NewSQLite(t))
}

func newFixtureOn(t *testing.T, st store.Store) fixture {
	t.Helper()
	bus := events.NewInMemoryBus(logger.Discard())
	rec := &acceptedRecorder{}
	bus.Subscribe(events.LeadAccepted{}.EventName(), rec)
	bus.Subscribe(events.AssignmentRejected{}.EventName(), rec)
	ledgerSvc := ledger.New(st, bus, logger.Discard())
	return fixture{
		svc:   service.New(st, ledgerSvc, bus, nil, logger.Discard()),
		store: st,
		seed:  storetest.NewSeed(t, st),
		bus:   bus,
		rec:   rec,
	}
}

// forEachBackend runs fn against every store adapter; Postgres needs
// TEST_DATABASE_URL.
func forEachBackend(t *testing.T, fn func(t *testing.T, f fixture)) {
	for _, b := range storetest.Backends() {
		t.Run(b.Name, func(t *testing.T) {
			fn(t, newFixtureOn(t, b.Open(t)))
		})
	}
}

func (f fixture) status(t *testing.T, id uuid.UUID) domain.AssignmentStatus {
	t.Helper()
	a, err := f.store.GetAssignment(context.Background(), id)
	require.NoError(t, err)
	return a.Status
}

func (f fixture) balance(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	b, err := f.store.GetBalance(context.Background(), id)
	require.NoError(t, err)
	return b
}

func TestAcceptFirstWinsSecondIsTaken(t *testing.T) {
	forEachBackend(t, acceptFirstWinsSecondIsTaken)
}

func acceptFirstWinsSecondIsTaken(t *testing.T, f fixture) {
	ctx := context.Background()
	svc := f.seed.Service("Plumbing", 5)
	first := f.seed.Professional("Utrecht", 10, svc.ID)
	second := f.seed.Professional("Utrecht", 10, svc.ID)
	lead := f.seed.Lead(svc.ID, "Utrecht")
	a1 := f.seed.Assignment(lead.ID, first.ID)
	a2 := f.seed.Assignment(lead.ID, second.ID)

	result, err := f.svc.Accept(ctx, a1.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentAccepted, result.Assignment.Status)
	assert.Equal(t, int64(5), result.CreditsCharged)
	assert.Equal(t, int64(5), result.BalanceAfter)
	assert.Equal(t, lead.Contact, result.Contact)
	require.NotNil(t, result.Assignment.DecidedAt)

	_, err = f.svc.Accept(ctx, a2.ID, second.ID)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, domain.CodeLeadAlreadyTaken))

	assert.Equal(t, domain.AssignmentAccepted, f.status(t, a1.ID))
	assert.Equal(t, domain.AssignmentMissed, f.status(t, a2.ID))
	assert.Equal(t, int64(5), f.balance(t, first.ID))
	assert.Equal(t, int64(10), f.balance(t, second.ID))

	stored, err := f.store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeadAssigned, stored.Status)

	f.bus.Wait()
	require.Len(t, f.rec.accepted, 1)
	assert.Equal(t, []uuid.UUID{a2.ID}, f.rec.accepted[0].Missed)
	assert.Equal(t, lead.CustomerID, f.rec.accepted[0].CustomerID)
}

func TestAcceptInsufficientCreditsLeavesEverythingUntouched(t *testing.T) {
	forEachBackend(t, acceptInsufficientCreditsLeavesEverythingUntouched)
}

func acceptInsufficientCreditsLeavesEverythingUntouched(t *testing.T, f fixture) {
	ctx := context.Background()
	svc := f.seed.Service("Roofing", 5)
	poor := f.seed.Professional("Utrecht", 3, svc.ID)
	lead := f.seed.Lead(svc.ID, "Utrecht")
	a := f.seed.Assignment(lead.ID, poor.ID)

	_, err := f.svc.Accept(ctx, a.ID, poor.ID)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, domain.CodeInsufficientCredits))

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, domain.InsufficientCreditsDetails{Balance: 3, Required: 5}, appErr.Details)

	assert.Equal(t, domain.AssignmentPending, f.status(t, a.ID))
	assert.Equal(t, int64(3), f.balance(t, poor.ID))
	stored, err := f.store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeadOpen, stored.Status)

	entries, total, err := f.store.ListCreditEntries(ctx, poor.ID, store.Page{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, entries)
}

func TestRejectThenAcceptIsNotPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.seed.Service("Painting", 2)
	pro := f.seed.Professional("Utrecht", 10, svc.ID)
	lead := f.seed.Lead(svc.ID, "Utrecht")
	a := f.seed.Assignment(lead.ID, pro.ID)

	rejected, err := f.svc.Reject(ctx, a.ID, pro.ID, "too far")
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentRejected, rejected.Status)

	_, err = f.svc.Accept(ctx, a.ID, pro.ID)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, domain.CodeAssignmentNotPending))
	assert.Equal(t, int64(10), f.balance(t, pro.ID))

	_, err = f.svc.Reject(ctx, a.ID, pro.ID, "")
	assert.True(t, apperr.HasCode(err, domain.CodeAssignmentNotPending))

	history, err := f.store.ListAssignmentTransitions(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.AssignmentRejected, history[0].To)
	assert.Equal(t, "too far", history[0].Reason)

	f.bus.Wait()
	require.Len(t, f.rec.rejected, 1)
	assert.Equal(t, "too far", f.rec.rejected[0].Reason)
}

func TestAcceptOwnershipAndExistence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.seed.Service("Plumbing", 1)
	owner := f.seed.Professional("Utrecht", 10, svc.ID)
	intruder := f.seed.Professional("Utrecht", 10, svc.ID)
	lead := f.seed.Lead(svc.ID, "Utrecht")
	a := f.seed.Assignment(lead.ID, owner.ID)

	_, err := f.svc.Accept(ctx, a.ID, intruder.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.Accept(ctx, uuid.New(), owner.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.Reject(ctx, a.ID, intruder.ID, "")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	assert.Equal(t, domain.AssignmentPending, f.status(t, a.ID))
}

func TestAcceptOnCancelledLeadMarksMissed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.seed.Service("Plumbing", 1)
	pro := f.seed.Professional("Utrecht", 10, svc.ID)
	lead := f.seed.Lead(svc.ID, "Utrecht")
	a := f.seed.Assignment(lead.ID, pro.ID)
	require.NoError(t, f.store.UpdateLeadStatus(ctx, lead.ID, domain.LeadCancelled, time.Now().UTC()))

	_, err := f.svc.Accept(ctx, a.ID, pro.ID)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, domain.CodeAssignmentNotPending))
	assert.Equal(t, domain.AssignmentMissed, f.status(t, a.ID))
	assert.Equal(t, int64(10), f.balance(t, pro.ID))
}

func TestAcceptFreeLeadSkipsDebit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.seed.Service("Advice", 0)
	pro := f.seed.Professional("Utrecht", 0, svc.ID)
	lead := f.seed.Lead(svc.ID, "Utrecht")
	a := f.seed.Assignment(lead.ID, pro.ID)

	result, err := f.svc.Accept(ctx, a.ID, pro.ID)
	require.NoError(t, err)
	assert.Zero(t, result.CreditsCharged)
	assert.Zero(t, result.BalanceAfter)

	_, total, err := f.store.ListCreditEntries(ctx, pro.ID, store.Page{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestConcurrentAcceptsHaveSingleWinner(t *testing.T) {
	forEachBackend(t, concurrentAcceptsHaveSingleWinner)
}

func concurrentAcceptsHaveSingleWinner(t *testing.T, f fixture) {
	ctx := context.Background()
	const (
		workers = 8
		cost    = 4
		start   = 10
	)
	svc := f.seed.Service("Plumbing", cost)
	lead := f.seed.Lead(svc.ID, "Utrecht")

	pros := make([]domain.Professional, workers)
	assignments := make([]domain.Assignment, workers)
	for i := range pros {
		pros[i] = f.seed.Professional("Utrecht", start, svc.ID)
		assignments[i] = f.seed.Assignment(lead.ID, pros[i].ID)
	}

	var (
		mu      sync.Mutex
		winners []int
		taken   int
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := range pros {
		i := i
		g.Go(func() error {
			_, err := f.svc.Accept(gctx, assignments[i].ID, pros[i].ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, i)
			case apperr.HasCode(err, domain.CodeLeadAlreadyTaken):
				taken++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Len(t, winners, 1)
	assert.Equal(t, workers-1, taken)

	var total int64
	for i, p := range pros {
		b := f.balance(t, p.ID)
		total += b
		if i == winners[0] {
			assert.Equal(t, int64(start-cost), b)
			assert.Equal(t, domain.AssignmentAccepted, f.status(t, assignments[i].ID))
		} else {
			assert.Equal(t, int64(start), b)
			assert.Equal(t, domain.AssignmentMissed, f.status(t, assignments[i].ID))
		}
	}
	assert.Equal(t, int64(workers*start-cost), total)

	f.bus.Wait()
	require.Len(t, f.rec.accepted, 1)
	assert.Len(t, f.rec.accepted[0].Missed, workers-1)
}

func TestListForProfessionalFiltersByStatus(t *testing.T) {
	forEachBackend(t, listForProfessionalFiltersByStatus)
}

func listForProfessionalFiltersByStatus(t *testing.T, f fixture) {
	ctx := context.Background()
	svc := f.seed.Service("Plumbing", 1)
	pro := f.seed.Professional("Utrecht", 10, svc.ID)
	open := f.seed.Assignment(f.seed.Lead(svc.ID, "Utrecht").ID, pro.ID)
	declined := f.seed.Assignment(f.seed.Lead(svc.ID, "Utrecht").ID, pro.ID)
	_, err := f.svc.Reject(ctx, declined.ID, pro.ID, "")
	require.NoError(t, err)

	all, err := f.svc.ListForProfessional(ctx, pro.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending := domain.AssignmentPending
	onlyPending, err := f.svc.ListForProfessional(ctx, pro.ID, &pending)
	require.NoError(t, err)
	require.Len(t, onlyPending, 1)
	assert.Equal(t, open.ID, onlyPending[0].ID)
	assert.Equal(t, "Plumbing", onlyPending[0].Lead.ServiceName)
}

func TestGetRevealsContactOnlyToWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.seed.Service("Plumbing", 1)
	pro := f.seed.Professional("Utrecht", 10, svc.ID)
	lead := f.seed.Lead(svc.ID, "Utrecht")
	a := f.seed.Assignment(lead.ID, pro.ID)

	_, contact, err := f.svc.Get(ctx, a.ID, pro.ID)
	require.NoError(t, err)
	assert.Nil(t, contact)

	_, err = f.svc.Accept(ctx, a.ID, pro.ID)
	require.NoError(t, err)

	_, contact, err = f.svc.Get(ctx, a.ID, pro.ID)
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, lead.Contact.Phone, contact.Phone)
}
