// Package bootstrap is the composition root shared by the api, scheduler and
// leadctl binaries: it opens the configured store and wires the modules.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadmarket_backend/internal/assignments"
	"leadmarket_backend/internal/events"
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/internal/leads"
	"leadmarket_backend/internal/ledger"
	"leadmarket_backend/internal/matching"
	matchingservice "leadmarket_backend/internal/matching/service"
	"leadmarket_backend/internal/notification"
	"leadmarket_backend/internal/professionals"
	"leadmarket_backend/internal/store"
	"leadmarket_backend/internal/store/postgres"
	"leadmarket_backend/internal/store/sqlite"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/db"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// ModuleConfig is everything the domain modules read from configuration.
type ModuleConfig interface {
	config.LeadsConfig
	config.ResolverConfig
	config.NotificationConfig
	config.MatchingConfig
}

// OpenStore connects to the configured backend and applies pending migrations.
func OpenStore(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (store.Store, error) {
	retry := store.DefaultRetryPolicy().WithMaxAttempts(cfg.GetTxMaxAttempts())

	switch cfg.GetStoreDriver() {
	case config.DriverPostgres:
		var pool *pgxpool.Pool
		if err := WithRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
			p, err := db.NewPool(ctx, cfg)
			if err != nil {
				return err
			}
			pool = p
			return nil
		}); err != nil {
			return nil, err
		}
		conn := stdlib.OpenDBFromPool(pool)
		applied, err := db.RunMigrations(ctx, conn, db.DialectPostgres)
		_ = conn.Close()
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("database migrations complete", "driver", config.DriverPostgres, "applied", len(applied))
		return postgres.New(pool, retry, log), nil

	case config.DriverSQLite:
		conn, err := db.OpenSQLite(ctx, cfg.GetSQLitePath())
		if err != nil {
			return nil, err
		}
		applied, err := db.RunMigrations(ctx, conn, db.DialectSQLite)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		log.Info("database migrations complete", "driver", config.DriverSQLite, "applied", len(applied))
		return sqlite.New(conn, retry, log), nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.GetStoreDriver())
	}
}

// Modules holds every wired domain module.
type Modules struct {
	Ledger        *ledger.Module
	Professionals *professionals.Module
	Matching      *matching.Module
	Leads         *leads.Module
	Assignments   *assignments.Module
	Notification  *notification.Module
}

// NewModules wires the modules around st and bus. The notification module
// subscribes to bus here.
func NewModules(st store.Store, bus events.Bus, cfg ModuleConfig, log *logger.Logger) (*Modules, error) {
	policy := matchingservice.NewCoveragePolicy(nil)
	if path := cfg.GetMatchingRegionsFile(); path != "" {
		loaded, err := matchingservice.LoadCoveragePolicy(path)
		if err != nil {
			return nil, fmt.Errorf("load matching regions: %w", err)
		}
		policy = loaded
	}

	val := validator.New()

	ledgerModule := ledger.NewModule(st, bus, val, log)
	matchingModule := matching.NewModule(st, bus, policy, val, log)
	m := &Modules{
		Ledger:        ledgerModule,
		Professionals: professionals.NewModule(st, bus, val, log),
		Matching:      matchingModule,
		Leads:         leads.NewModule(st, bus, cfg, matchingModule.Service(), val, log),
		Assignments:   assignments.NewModule(st, ledgerModule.Service(), bus, cfg, val, log),
		Notification:  notification.New(st, cfg, val, log),
	}
	m.Notification.RegisterHandlers(bus)
	return m, nil
}

// HTTP lists the modules in mount order.
func (m *Modules) HTTP() []apphttp.Module {
	return []apphttp.Module{
		m.Professionals,
		m.Ledger,
		m.Leads,
		m.Matching,
		m.Assignments,
		m.Notification,
	}
}

// WithRetry runs fn until it succeeds, backing off quadratically.
func WithRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
