// Package storetest opens throwaway stores for package tests.
package storetest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/internal/store/postgres"
	"leadmarket_backend/internal/store/sqlite"
	"leadmarket_backend/platform/db"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// PostgresURLEnv names the database used by Postgres-backed tests. Those
// tests are skipped when it is unset.
const PostgresURLEnv = "TEST_DATABASE_URL"

// Backend opens a fresh, migrated store for one test.
type Backend struct {
	Name string
	Open func(t testing.TB) store.Store
}

// Backends lists every store adapter. Postgres skips itself without
// TEST_DATABASE_URL.
func Backends() []Backend {
	return []Backend{
		{Name: "sqlite", Open: NewSQLite},
		{Name: "postgres", Open: NewPostgres},
	}
}

func testRetryPolicy() store.RetryPolicy {
	return store.RetryPolicy{MaxAttempts: 20, BaseDelay: 2 * time.Millisecond, MaxDelay: 50 * time.Millisecond}
}

// NewSQLite returns a migrated store backed by a file in t's temp dir.
func NewSQLite(t testing.TB) store.Store {
	t.Helper()

	ctx := context.Background()
	conn, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "leads.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, err := db.RunMigrations(ctx, conn, db.DialectSQLite); err != nil {
		_ = conn.Close()
		t.Fatalf("migrate sqlite: %v", err)
	}

	s := sqlite.New(conn, testRetryPolicy(), logger.Discard())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// NewPostgres returns a migrated store in a throwaway schema of the database
// at TEST_DATABASE_URL. The schema is dropped when the test ends.
func NewPostgres(t testing.TB) store.Store {
	t.Helper()

	url := os.Getenv(PostgresURLEnv)
	if url == "" {
		t.Skipf("%s not set", PostgresURLEnv)
	}
	ctx := context.Background()
	schema := "lm_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	admin, err := pgx.Connect(ctx, url)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		_ = admin.Close(ctx)
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		_ = admin.Close(context.Background())
	})

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		t.Fatalf("parse %s: %v", PostgresURLEnv, err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	conn := stdlib.OpenDBFromPool(pool)
	_, err = db.RunMigrations(ctx, conn, db.DialectPostgres)
	_ = conn.Close()
	if err != nil {
		pool.Close()
		t.Fatalf("migrate postgres: %v", err)
	}

	// A waiter on a row lock fails with 40001 once the holder commits, so
	// contended tests need more attempts than SQLite's single writer.
	s := postgres.New(pool, testRetryPolicy().WithMaxAttempts(50), logger.Discard())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Seed creates fixtures directly through the store.
type Seed struct {
	t     testing.TB
	store store.Store
	now   time.Time
}

// NewSeed returns a fixture builder for s.
func NewSeed(t testing.TB, s store.Store) *Seed {
	return &Seed{t: t, store: s, now: time.Now().UTC()}
}

// Service creates a service with the given credit cost.
func (s *Seed) Service(name string, cost int64) domain.Service {
	s.t.Helper()
	svc := domain.Service{ID: uuid.New(), Name: name, CreditCost: cost, CreatedAt: s.now}
	if err := s.store.CreateService(context.Background(), svc); err != nil {
		s.t.Fatalf("seed service: %v", err)
	}
	return svc
}

// Professional creates an active professional registered for services.
func (s *Seed) Professional(coverage string, balance int64, services ...uuid.UUID) domain.Professional {
	s.t.Helper()
	id := uuid.New()
	p := domain.Professional{
		ID:            id,
		DisplayName:   "Pro " + id.String()[:8],
		Email:         id.String() + "@pros.test",
		CoverageArea:  coverage,
		Active:        true,
		CreditBalance: balance,
		ServiceIDs:    services,
		CreatedAt:     s.now,
		UpdatedAt:     s.now,
	}
	err := s.store.WithinTx(context.Background(), "seed.professional", func(q store.Queries) error {
		return q.CreateProfessional(context.Background(), p)
	})
	if err != nil {
		s.t.Fatalf("seed professional: %v", err)
	}
	return p
}

// Lead creates an OPEN lead for the service.
func (s *Seed) Lead(serviceID uuid.UUID, location string) domain.Lead {
	s.t.Helper()
	l := domain.Lead{
		ID:          uuid.New(),
		CustomerID:  uuid.New(),
		ServiceID:   serviceID,
		Status:      domain.LeadOpen,
		Location:    location,
		Urgency:     domain.UrgencyMedium,
		Description: "Leaking kitchen tap",
		Contact: domain.ContactDetails{
			Name:  "Jan Jansen",
			Phone: "+31612345678",
			Email: "jan@example.test",
		},
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	if err := s.store.InsertLead(context.Background(), l); err != nil {
		s.t.Fatalf("seed lead: %v", err)
	}
	return l
}

// Assignment creates a PENDING assignment for the pair.
func (s *Seed) Assignment(leadID, professionalID uuid.UUID) domain.Assignment {
	s.t.Helper()
	a := domain.Assignment{
		ID:             uuid.New(),
		LeadID:         leadID,
		ProfessionalID: professionalID,
		Status:         domain.AssignmentPending,
		Source:         domain.SourceMatching,
		CreatedAt:      s.now,
		UpdatedAt:      s.now,
	}
	created, err := s.store.InsertAssignment(context.Background(), a)
	if err != nil || !created {
		s.t.Fatalf("seed assignment: created=%v err=%v", created, err)
	}
	return a
}
