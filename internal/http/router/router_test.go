package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadmarket_backend/internal/bootstrap"
	"leadmarket_backend/internal/events"
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/internal/http/router"
	"leadmarket_backend/internal/store/storetest"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret"

type api struct {
	t      *testing.T
	engine *gin.Engine
	bus    *events.InMemoryBus
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		JWTAccessSecret:    testSecret,
		CORSOrigins:        []string{"http://localhost:4200"},
		AcceptTimeout:      5 * time.Second,
		PhoneDefaultRegion: "NL",
	}
	st := storetest.NewSQLite(t)
	bus := events.NewInMemoryBus(logger.Discard())
	modules, err := bootstrap.NewModules(st, bus, cfg, logger.Discard())
	require.NoError(t, err)

	engine := router.New(&apphttp.App{
		Config:   cfg,
		Logger:   logger.Discard(),
		Health:   st,
		EventBus: bus,
		Modules:  modules.HTTP(),
	})
	return &api{t: t, engine: engine, bus: bus}
}

func token(t *testing.T, userID uuid.UUID, roles ...string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID.String(),
		"roles": roles,
		"type":  "access",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (a *api) do(method, path, bearer string, body any, out any) int {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestHealthAndAuthBoundaries(t *testing.T) {
	a := newAPI(t)

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/health", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/v1/assignments", "", nil, nil))

	pro := token(t, uuid.New(), httpkit.RoleProfessional)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/api/v1/admin/services", pro, map[string]any{"name": "X", "creditCost": 1}, nil))

	customer := token(t, uuid.New(), httpkit.RoleCustomer)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/v1/assignments", customer, nil, nil))
}

func TestLeadLifecycleOverHTTP(t *testing.T) {
	a := newAPI(t)

	admin := token(t, uuid.New(), httpkit.RoleAdmin)
	winnerID, loserID, customerID := uuid.New(), uuid.New(), uuid.New()
	winner := token(t, winnerID, httpkit.RoleProfessional)
	loser := token(t, loserID, httpkit.RoleProfessional)
	customer := token(t, customerID, httpkit.RoleCustomer)

	var service struct {
		ID uuid.UUID `json:"id"`
	}
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/v1/admin/services", admin,
		map[string]any{"name": "Plumbing", "creditCost": 4}, &service))

	for _, pro := range []struct {
		bearer string
		email  string
	}{{winner, "winner@example.test"}, {loser, "loser@example.test"}} {
		require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/v1/professionals", pro.bearer, map[string]any{
			"displayName":  "Loodgieter",
			"email":        pro.email,
			"coverageArea": "Utrecht",
			"serviceIds":   []uuid.UUID{service.ID},
		}, nil))
	}
	for _, id := range []uuid.UUID{winnerID, loserID} {
		require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/v1/admin/professionals/"+id.String()+"/credits", admin,
			map[string]any{"amount": 10, "reference": "topup-" + id.String()}, nil))
	}

	var lead struct {
		ID                   uuid.UUID `json:"id"`
		Status               string    `json:"status"`
		MatchedProfessionals int       `json:"matchedProfessionals"`
	}
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/v1/leads", customer, map[string]any{
		"serviceId":   service.ID,
		"location":    "Utrecht Centrum",
		"description": "Leaking kitchen tap",
		"contact":     map[string]any{"name": "Jan Jansen", "phone": "06 12345678"},
	}, &lead))
	assert.Equal(t, "OPEN", lead.Status)
	assert.Equal(t, 2, lead.MatchedProfessionals)

	var inbox struct {
		Items []struct {
			ID uuid.UUID `json:"id"`
		} `json:"items"`
	}
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/assignments?status=PENDING", winner, nil, &inbox))
	require.Len(t, inbox.Items, 1)
	winnerAssignment := inbox.Items[0].ID
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/assignments", loser, nil, &inbox))
	require.Len(t, inbox.Items, 1)
	loserAssignment := inbox.Items[0].ID

	var accepted struct {
		Contact struct {
			Phone string `json:"phone"`
		} `json:"contact"`
		BalanceAfter int64 `json:"balanceAfter"`
	}
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/v1/assignments/"+winnerAssignment.String()+"/accept", winner, nil, &accepted))
	assert.Equal(t, "+31612345678", accepted.Contact.Phone)
	assert.Equal(t, int64(6), accepted.BalanceAfter)

	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/api/v1/assignments/"+loserAssignment.String()+"/accept", loser, nil, nil))

	var balance struct {
		Balance int64 `json:"balance"`
	}
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/credits/balance", loser, nil, &balance))
	assert.Equal(t, int64(10), balance.Balance)

	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/leads/"+lead.ID.String(), customer, nil, &lead))
	assert.Equal(t, "ASSIGNED", lead.Status)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/v1/leads/"+lead.ID.String(), loser, nil, nil))

	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/v1/leads/"+lead.ID.String()+"/complete", customer, nil, &lead))
	assert.Equal(t, "COMPLETED", lead.Status)
}
