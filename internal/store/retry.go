package store

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"leadmarket_backend/internal/domain"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"
)

// RetryPolicy bounds how often a conflicting transaction is re-run.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 10 * time.Millisecond, MaxDelay: 500 * time.Millisecond}
}

// WithMaxAttempts returns a copy of p with a different attempt bound.
func (p RetryPolicy) WithMaxAttempts(n int) RetryPolicy {
	if n > 0 {
		p.MaxAttempts = n
	}
	return p
}

// Run calls attempt until it succeeds, fails with a non-retryable error, or
// the attempts are exhausted. Exhaustion yields TransientStoreError; giving up
// because ctx ended yields OutcomeUnknown.
func (p RetryPolicy) Run(ctx context.Context, log *logger.Logger, op string, retryable func(error) bool, attempt func(ctx context.Context) error) error {
	if log == nil {
		log = logger.Discard()
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for n := 1; ; n++ {
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if _, ok := apperr.As(err); ok {
			return err
		}
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return domain.ErrOutcomeUnknown(err).WithOp(op)
		}
		if !retryable(err) {
			return err
		}
		if n >= maxAttempts {
			return domain.ErrTransientStore(err).WithOp(op)
		}

		log.TxRetry(op, n, err)

		timer := time.NewTimer(p.backoff(n))
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.ErrOutcomeUnknown(ctx.Err()).WithOp(op)
		case <-timer.C:
		}
	}
}

// backoff grows quadratically with jitter.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	delay := base * time.Duration(attempt*attempt)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay + time.Duration(rand.Int64N(int64(base)))
}
