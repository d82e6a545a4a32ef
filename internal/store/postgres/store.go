// Package postgres implements store.Store on PostgreSQL via pgx.
//
// Transactions run at SERIALIZABLE and additionally take row locks in a fixed
// order (lead, assignment, balance) so the common contention path blocks
// instead of aborting. Serialization failures and deadlocks are retried.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"leadmarket_backend/internal/store"
	"leadmarket_backend/platform/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"

	oneAcceptedPerLeadIndex = "uq_lead_assignments_one_accepted"
)

// Store is the Postgres-backed store.
type Store struct {
	*queries
	pool  *pgxpool.Pool
	retry store.RetryPolicy
	log   *logger.Logger
}

var _ store.Store = (*Store)(nil)

// New wraps pool. The pool is owned by the caller unless Close is called.
func New(pool *pgxpool.Pool, retry store.RetryPolicy, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Discard()
	}
	return &Store{queries: &queries{db: pool}, pool: pool, retry: retry, log: log}
}

// WithinTx runs fn in a SERIALIZABLE transaction, retrying on conflicts.
func (s *Store) WithinTx(ctx context.Context, op string, fn store.TxFunc) error {
	return s.retry.Run(ctx, s.log, op, IsRetryable, func(ctx context.Context) error {
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("begin %s: %w", op, err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := fn(&queries{db: tx}); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit %s: %w", op, err)
		}
		return nil
	})
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// IsRetryable reports whether err is a conflict the whole transaction can be re-run for.
// A unique violation on the one-accepted-per-lead index is how a concurrent winner
// can surface under SERIALIZABLE, so it is retried and re-evaluated as well.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return true
	case sqlStateUniqueViolation:
		return pgErr.ConstraintName == oneAcceptedPerLeadIndex
	}
	return false
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	db dbtx
}

var _ store.Queries = (*queries)(nil)
