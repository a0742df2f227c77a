// internal/interact/retry.go
package interact

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds a retried operation.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy matches the stale-element policy used for page interactions.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Delay: 500 * time.Millisecond}

// Retry runs op until it succeeds, returns an error shouldRetry rejects, or
// the attempt budget is spent. It returns the value, the number of attempts
// made and the last error.
func Retry[T any](
	ctx context.Context,
	policy RetryPolicy,
	shouldRetry func(error) bool,
	op func(ctx context.Context, attempt int) (T, error),
) (T, int, error) {
	var zero T
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt - 1, err
		}

		value, err := op(ctx, attempt)
		if err == nil {
			return value, attempt, nil
		}
		lastErr = err
		if !shouldRetry(err) || attempt == maxAttempts {
			return zero, attempt, lastErr
		}

		if policy.Delay > 0 {
			timer := time.NewTimer(policy.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, attempt, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return zero, maxAttempts, lastErr
}

// Predicate is polled by WaitFor. A stale error counts as "not yet"; any
// other error aborts the wait.
type Predicate func(ctx context.Context) (bool, error)

// WaitFor polls pred every poll interval until it holds or timeout elapses.
// The first check runs immediately. Predicate calls share the wait deadline,
// so a hung driver call cannot stretch the wait past it.
func WaitFor(ctx context.Context, timeout, poll time.Duration, pred Predicate) (lastTransient error, err error) {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		ok, perr := pred(waitCtx)
		switch {
		case perr == nil && ok:
			return lastTransient, nil
		case perr == nil:
		case IsStale(perr):
			lastTransient = perr
		case waitCtx.Err() != nil && ctx.Err() == nil:
			// The predicate was cut off by our own deadline.
			return lastTransient, errWaitExpired
		default:
			return lastTransient, perr
		}

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return lastTransient, err
			}
			return lastTransient, errWaitExpired
		case <-ticker.C:
		}
	}
}

// isWaitExpired reports whether err came from a WaitFor deadline.
func isWaitExpired(err error) bool {
	return errors.Is(err, errWaitExpired)
}
