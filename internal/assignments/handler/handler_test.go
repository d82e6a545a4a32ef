package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"leadmarket_backend/internal/assignments/handler"
	"leadmarket_backend/internal/assignments/service"
	"leadmarket_backend/internal/assignments/transport"
	"leadmarket_backend/internal/events"
	ledger "leadmarket_backend/internal/ledger/service"
	"leadmarket_backend/internal/store/storetest"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRouter authenticates every request as *caller.
func newRouter(t *testing.T, caller *uuid.UUID) (*gin.Engine, *storetest.Seed) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := storetest.NewSQLite(t)
	bus := events.NewInMemoryBus(logger.Discard())
	svc := service.New(st, ledger.New(st, bus, logger.Discard()), bus, nil, logger.Discard())
	h := handler.New(svc, validator.New())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, *caller)
		c.Set(httpkit.ContextRolesKey, []string{httpkit.RoleProfessional})
	})
	h.RegisterRoutes(r.Group("/assignments"))
	return r, storetest.NewSeed(t, st)
}

func post(r *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	return rec
}

func TestAcceptReturnsContactToWinner(t *testing.T) {
	var caller uuid.UUID
	r, seed := newRouter(t, &caller)
	svc := seed.Service("Plumbing", 3)
	winner := seed.Professional("Utrecht", 5, svc.ID)
	loser := seed.Professional("Utrecht", 5, svc.ID)
	lead := seed.Lead(svc.ID, "Utrecht")
	won := seed.Assignment(lead.ID, winner.ID)
	lost := seed.Assignment(lead.ID, loser.ID)

	caller = winner.ID
	rec := post(r, "/assignments/"+won.ID.String()+"/accept")
	require.Equal(t, http.StatusOK, rec.Code)

	var body transport.AcceptAssignmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ACCEPTED", body.Assignment.Status)
	assert.Equal(t, lead.Contact.Phone, body.Contact.Phone)
	assert.Equal(t, int64(3), body.CreditsCharged)
	assert.Equal(t, int64(2), body.BalanceAfter)

	caller = loser.ID
	rec = post(r, "/assignments/"+lost.ID.String()+"/accept")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"LeadAlreadyTaken"`)
}

func TestAcceptWithoutCreditsIsPaymentRequired(t *testing.T) {
	var caller uuid.UUID
	r, seed := newRouter(t, &caller)
	svc := seed.Service("Roofing", 5)
	pro := seed.Professional("Utrecht", 1, svc.ID)
	a := seed.Assignment(seed.Lead(svc.ID, "Utrecht").ID, pro.ID)
	caller = pro.ID

	rec := post(r, "/assignments/"+a.ID.String()+"/accept")
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"InsufficientCredits"`)
}

func TestListHidesContactDetails(t *testing.T) {
	var caller uuid.UUID
	r, seed := newRouter(t, &caller)
	svc := seed.Service("Plumbing", 1)
	pro := seed.Professional("Utrecht", 5, svc.ID)
	lead := seed.Lead(svc.ID, "Utrecht")
	seed.Assignment(lead.ID, pro.ID)
	caller = pro.ID

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assignments?status=PENDING", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), lead.Contact.Phone)

	var body transport.AssignmentListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "Utrecht", body.Items[0].Lead.Location)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assignments?status=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRejectForeignAssignmentIsForbidden(t *testing.T) {
	var caller uuid.UUID
	r, seed := newRouter(t, &caller)
	svc := seed.Service("Plumbing", 1)
	owner := seed.Professional("Utrecht", 5, svc.ID)
	a := seed.Assignment(seed.Lead(svc.ID, "Utrecht").ID, owner.ID)
	caller = uuid.New()

	rec := post(r, "/assignments/"+a.ID.String()+"/reject")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
