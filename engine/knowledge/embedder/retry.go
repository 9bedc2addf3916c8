package embedder

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultMaxAttempts    = 3
	DefaultBackoffBase    = 2 * time.Second
	DefaultAttemptTimeout = 30 * time.Second
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// RetryPolicy controls how failed embedding calls are repeated.
type RetryPolicy struct {
	MaxAttempts    int
	Backoff        func() retry.Backoff
	Sleep          Sleeper
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy waits base, 2*base, 4*base... between attempts.
func DefaultRetryPolicy(maxAttempts int, base time.Duration) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if base <= 0 {
		base = DefaultBackoffBase
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Backoff: func() retry.Backoff {
			return retry.NewExponential(base)
		},
		Sleep:          SleepContext,
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy(p.MaxAttempts, 0)
	if p.Backoff == nil {
		p.Backoff = def.Backoff
	}
	if p.Sleep == nil {
		p.Sleep = def.Sleep
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	return p
}

// Do runs op up to MaxAttempts times. It returns the last error when every attempt failed.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	p = p.normalized()
	backoff := retry.WithMaxRetries(uint64(p.MaxAttempts-1), p.Backoff())
	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = p.attempt(ctx, attempt, op)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delay, stop := backoff.Next()
		if stop {
			return lastErr
		}
		if err := p.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (p RetryPolicy) attempt(ctx context.Context, n int, op func(context.Context, int) error) error {
	if p.AttemptTimeout <= 0 {
		return op(ctx, n)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return op(attemptCtx, n)
}
