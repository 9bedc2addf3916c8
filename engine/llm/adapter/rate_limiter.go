package llmadapter

import (
	"context"
	"math"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// RateLimiter bounds concurrent provider calls and their per-minute rate.
type RateLimiter struct {
	provider string
	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	metrics  limiterMetrics
}

// RateLimiterMetricsSnapshot provides introspection for active/rejected counters.
type RateLimiterMetricsSnapshot struct {
	ActiveRequests   int32
	RejectedRequests int64
	TotalRequests    int64
}

type limiterMetrics struct {
	activeRequests   atomic.Int32
	rejectedRequests atomic.Int64
	totalRequests    atomic.Int64
}

// NewRateLimiter returns nil when both limits are disabled.
func NewRateLimiter(provider string, concurrency, requestsPerMinute int) *RateLimiter {
	if concurrency <= 0 && requestsPerMinute <= 0 {
		return nil
	}
	l := &RateLimiter{provider: provider}
	if concurrency > 0 {
		l.sem = semaphore.NewWeighted(int64(concurrency))
	}
	if requestsPerMinute > 0 {
		perSecond := float64(requestsPerMinute) / 60.0
		l.limiter = rate.NewLimiter(rate.Limit(perSecond), computeBurst(perSecond))
	}
	return l
}

func computeBurst(perSecond float64) int {
	if perSecond <= 0 {
		return 1
	}
	return int(math.Ceil(perSecond))
}

// Acquire waits for a slot. Callers must Release after a nil return.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	l.metrics.totalRequests.Add(1)
	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			l.metrics.rejectedRequests.Add(1)
			return newRateLimitError(l.provider, "provider concurrency wait canceled", err)
		}
	}
	l.metrics.activeRequests.Add(1)
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			l.metrics.rejectedRequests.Add(1)
			l.Release()
			return newRateLimitError(l.provider, "provider request rate wait canceled", err)
		}
	}
	return nil
}

func (l *RateLimiter) Release() {
	if l == nil {
		return
	}
	if l.sem != nil {
		l.sem.Release(1)
	}
	l.metrics.activeRequests.Add(-1)
}

func (l *RateLimiter) Metrics() RateLimiterMetricsSnapshot {
	if l == nil {
		return RateLimiterMetricsSnapshot{}
	}
	return RateLimiterMetricsSnapshot{
		ActiveRequests:   l.metrics.activeRequests.Load(),
		RejectedRequests: l.metrics.rejectedRequests.Load(),
		TotalRequests:    l.metrics.totalRequests.Load(),
	}
}

func newRateLimitError(provider, message string, underlying error) error {
	return NewErrorWithCode(ErrCodeRateLimit, message, provider, underlying)
}

type limitedClient struct {
	next    Client
	limiter *RateLimiter
}

// WithRateLimiter gates every GenerateContent call through limiter.
func WithRateLimiter(next Client, limiter *RateLimiter) Client {
	if limiter == nil {
		return next
	}
	return &limitedClient{next: next, limiter: limiter}
}

func (c *limitedClient) GenerateContent(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.limiter.Release()
	return c.next.GenerateContent(ctx, req)
}

func (c *limitedClient) Close() error { return c.next.Close() }
