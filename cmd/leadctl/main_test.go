package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadmarket_backend/internal/bootstrap"
	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/internal/store/storetest"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"
)

func setupEnv(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "leadctl.db"))
	t.Setenv("CORS_ALLOW_CREDENTIALS", "false")
	t.Setenv("REDIS_URL", "")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func openStore(t *testing.T, cfg *config.Config) store.Store {
	t.Helper()
	st, err := bootstrap.OpenStore(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	return st
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrateReportsDriver(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "migrate", "--json=false")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite")
}

func TestServiceCreateAndCreditsFlow(t *testing.T) {
	cfg := setupEnv(t)

	out, err := run(t, "service", "create", "--name", "Plumbing", "--cost", "5", "--json")
	require.NoError(t, err)
	var created struct {
		ID         string `json:"id"`
		CreditCost int64  `json:"creditCost"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, int64(5), created.CreditCost)

	st := openStore(t, cfg)
	pro := storetest.NewSeed(t, st).Professional("Amsterdam", 0)
	require.NoError(t, st.Close())

	_, err = run(t, "credits", "add", pro.ID.String(), "12", "--reference", "pay-1", "--json=false")
	require.NoError(t, err)
	out, err = run(t, "credits", "add", pro.ID.String(), "12", "--reference", "pay-1", "--json=false")
	require.NoError(t, err)
	assert.Contains(t, out, "already applied")

	out, err = run(t, "credits", "balance", pro.ID.String(), "--json=false")
	require.NoError(t, err)
	assert.Equal(t, "12\n", out)
}

func TestManualAssignAndInbox(t *testing.T) {
	cfg := setupEnv(t)

	st := openStore(t, cfg)
	seed := storetest.NewSeed(t, st)
	svc := seed.Service("Roofing", 3)
	pro := seed.Professional("Utrecht", 10, svc.ID)
	lead := seed.Lead(svc.ID, "Rotterdam")
	require.NoError(t, st.Close())

	_, err := run(t, "leads", "assign", lead.ID.String(), pro.ID.String(), "--json=false")
	require.NoError(t, err)

	out, err := run(t, "assignments", "list", pro.ID.String(), "--status", "PENDING", "--json")
	require.NoError(t, err)
	var items []domain.AssignmentWithLead
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.Equal(t, lead.ID, items[0].LeadID)
	assert.Equal(t, domain.AssignmentPending, items[0].Status)
	assert.Equal(t, domain.SourceManual, items[0].Source)
}

func TestAssignmentsListRejectsUnknownStatus(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "assignments", "list", "00000000-0000-0000-0000-000000000001", "--status", "bogus")
	require.Error(t, err)
}
