package config

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSQLiteDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/leads.db")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.GetStoreDriver())
	assert.Equal(t, "/tmp/leads.db", cfg.GetSQLitePath())
	assert.Equal(t, 5, cfg.GetTxMaxAttempts())
	assert.Equal(t, 10*time.Second, cfg.GetAcceptTimeout())
	assert.Equal(t, "default", cfg.GetAsynqQueueName())
	assert.False(t, cfg.IsAsyncDispatchEnabled())
	assert.Equal(t, "NL", cfg.GetPhoneDefaultRegion())
}

func TestLoadRequiresDatabaseURLForPostgres(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadParsesAdminRecipients(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("ADMIN_NOTIFICATION_RECIPIENTS", first.String()+", "+second.String())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first, second}, cfg.GetAdminRecipients())
}

func TestLoadRejectsMalformedAdminRecipients(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("ADMIN_NOTIFICATION_RECIPIENTS", "not-a-uuid")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsWildcardCORSWithCredentials(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "true")

	_, err := Load()
	require.Error(t, err)
}

func TestRequireJWT(t *testing.T) {
	cfg := &Config{}
	require.Error(t, cfg.RequireJWT())

	cfg.JWTAccessSecret = "secret"
	require.NoError(t, cfg.RequireJWT())
}
