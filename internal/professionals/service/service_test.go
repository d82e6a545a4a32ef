package service_test

import (
	"context"
	"testing"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/professionals/service"
	"leadmarket_backend/internal/professionals/transport"
	"leadmarket_backend/internal/store/storetest"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterNormalizesProfile(t *testing.T) {
	st := storetest.NewSQLite(t)
	seed := storetest.NewSeed(t, st)
	plumbing := seed.Service("Plumbing", 5)
	bus := events.NewInMemoryBus(logger.Discard())
	svc := service.New(st, bus, logger.Discard())

	registered := make(chan events.ProfessionalRegistered, 1)
	bus.Subscribe(events.ProfessionalRegistered{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		registered <- e.(events.ProfessionalRegistered)
		return nil
	}))

	id := uuid.New()
	p, err := svc.Register(context.Background(), id, transport.RegisterRequest{
		DisplayName:  "  <b>Piet</b> Plumbing ",
		Email:        "Piet@Example.TEST",
		CoverageArea: " Utrecht ,, Amersfoort ",
		ServiceIDs:   []uuid.UUID{plumbing.ID, plumbing.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, "Piet Plumbing", p.DisplayName)
	assert.Equal(t, "piet@example.test", p.Email)
	assert.Equal(t, "Utrecht, Amersfoort", p.CoverageArea)
	assert.Zero(t, p.CreditBalance)

	stored, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{plumbing.ID}, stored.ServiceIDs)

	bus.Wait()
	assert.Equal(t, id, (<-registered).ProfessionalID)
}

func TestRegisterTwiceConflicts(t *testing.T) {
	st := storetest.NewSQLite(t)
	svc := service.New(st, nil, logger.Discard())
	id := uuid.New()
	req := transport.RegisterRequest{DisplayName: "Anna", Email: "anna@example.test", CoverageArea: "Delft"}

	_, err := svc.Register(context.Background(), id, req)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), id, req)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestSetServicesRejectsUnknownService(t *testing.T) {
	st := storetest.NewSQLite(t)
	seed := storetest.NewSeed(t, st)
	pro := seed.Professional("Delft", 0)
	svc := service.New(st, nil, logger.Discard())

	_, err := svc.SetServices(context.Background(), pro.ID, []uuid.UUID{uuid.New()})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateProfileKeepsOmittedFields(t *testing.T) {
	st := storetest.NewSQLite(t)
	seed := storetest.NewSeed(t, st)
	pro := seed.Professional("Delft", 0)
	svc := service.New(st, nil, logger.Discard())

	inactive := false
	p, err := svc.UpdateProfile(context.Background(), pro.ID, transport.UpdateProfileRequest{Active: &inactive})
	require.NoError(t, err)
	assert.False(t, p.Active)
	assert.Equal(t, "Delft", p.CoverageArea)
	assert.Equal(t, pro.DisplayName, p.DisplayName)
}

func TestCreateServiceRejectsDuplicateName(t *testing.T) {
	st := storetest.NewSQLite(t)
	svc := service.New(st, nil, logger.Discard())

	_, err := svc.CreateService(context.Background(), transport.CreateServiceRequest{Name: "Roofing", CreditCost: 3})
	require.NoError(t, err)
	_, err = svc.CreateService(context.Background(), transport.CreateServiceRequest{Name: "Roofing", CreditCost: 4})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	services, err := svc.ListServices(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, int64(3), services[0].CreditCost)
}
