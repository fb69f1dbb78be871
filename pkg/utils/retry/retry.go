package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
)

// Policy controls how a capability call is retried
type Policy struct {
	// Attempts is the total number of calls including the first one
	Attempts int
	// Timeout bounds each single call. Zero means no per-call timeout.
	Timeout time.Duration
	// Backoff is the wait before the second call; it doubles afterwards
	Backoff time.Duration
}

// DefaultPolicy returns the policy used for model capability calls
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 2,
		Timeout:  30 * time.Second,
		Backoff:  500 * time.Millisecond,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.Backoff),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)
	retries := uint64(max(p.Attempts, 1) - 1)
	return backoff.WithContext(backoff.WithMaxRetries(exp, retries), ctx)
}

// Do calls fn until it succeeds, the attempts are exhausted or ctx is done.
// Only errors wrapping interfaces.ErrCapability are retried, and a call that
// hits the per-call timeout counts as one. Anything else is returned at once.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	v, err := backoff.RetryWithData(func() (T, error) {
		attempt++
		v, err := call(ctx, p.Timeout, fn)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !errors.Is(err, interfaces.ErrCapability) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, p.backOff(ctx))

	if err != nil {
		var zero T
		return zero, goerr.Wrap(err, "capability call failed", goerr.V("attempts", attempt))
	}
	return v, nil
}

func call[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := fn(callCtx)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return v, interfaces.ErrCapability.Wrap(err, goerr.V("timeout", timeout))
	}
	return v, err
}
