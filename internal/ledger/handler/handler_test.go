package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/ledger/handler"
	"leadmarket_backend/internal/ledger/service"
	"leadmarket_backend/internal/ledger/transport"
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
func newRouter(t *testing.T, caller *uuid.UUID, roles ...string) (*gin.Engine, *storetest.Seed) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := storetest.NewSQLite(t)
	svc := service.New(st, events.NewInMemoryBus(logger.Discard()), logger.Discard())
	h := handler.New(svc, validator.New())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, *caller)
		c.Set(httpkit.ContextRolesKey, roles)
	})
	h.RegisterRoutes(r.Group("/credits"))
	h.RegisterAdminRoutes(r.Group("/admin"))
	return r, storetest.NewSeed(t, st)
}

func TestGetBalanceReturnsCallerBalance(t *testing.T) {
	var caller uuid.UUID
	r, seed := newRouter(t, &caller, httpkit.RoleProfessional)
	pro := seed.Professional("Utrecht", 12)
	caller = pro.ID

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/credits/balance", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body transport.BalanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(12), body.Balance)
}

func TestAddCreditsRejectsNonPositiveAmount(t *testing.T) {
	admin := uuid.New()
	r, seed := newRouter(t, &admin, httpkit.RoleAdmin)
	pro := seed.Professional("Utrecht", 0)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/professionals/"+pro.ID.String()+"/credits", strings.NewReader(`{"amount":0}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"ValidationError"`)
}

func TestAddCreditsIsIdempotent(t *testing.T) {
	admin := uuid.New()
	r, seed := newRouter(t, &admin, httpkit.RoleAdmin)
	pro := seed.Professional("Utrecht", 0)
	path := "/admin/professionals/" + pro.ID.String() + "/credits"

	var last transport.AddCreditsResponse
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"amount":40,"reference":"stripe-pi-1"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &last))
	}

	assert.True(t, last.Duplicate)
	assert.Equal(t, int64(40), last.Balance)
}

func TestAddCreditsUnknownProfessional(t *testing.T) {
	admin := uuid.New()
	r, _ := newRouter(t, &admin, httpkit.RoleAdmin)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/professionals/"+uuid.NewString()+"/credits", strings.NewReader(`{"amount":5}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
