package embedder

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/compozy/woodsage/engine/knowledge"
	"github.com/compozy/woodsage/pkg/logger"
)

// ErrEmbeddingUnavailable reports that every embedding attempt failed.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

const DefaultMaxTokens = 8000

// Client adds input truncation, rate limiting and retries to an Embedder.
type Client struct {
	embedder  Embedder
	truncator Truncator
	maxTokens int
	policy    RetryPolicy
	limiter   *rate.Limiter
}

type ClientOption func(*Client)

func WithTruncator(t Truncator, maxTokens int) ClientOption {
	return func(c *Client) {
		c.truncator = t
		c.maxTokens = maxTokens
	}
}

func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.policy = p
	}
}

// WithRateLimit caps provider calls per minute. Zero disables the limit.
func WithRateLimit(perMinute int) ClientOption {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1)
	}
}

func NewClient(e Embedder, opts ...ClientOption) *Client {
	c := &Client{
		embedder:  e,
		truncator: RuneTruncator{},
		maxTokens: DefaultMaxTokens,
		policy:    DefaultRetryPolicy(DefaultMaxAttempts, DefaultBackoffBase),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embed returns the vector for text. Exhausted retries yield ErrEmbeddingUnavailable.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	input := c.truncator.Truncate(text, c.maxTokens)
	var vector []float32
	err := c.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		knowledge.RecordEmbedAttempt(ctx, attempt)
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		v, err := c.embedder.EmbedQuery(ctx, input)
		if err != nil {
			logger.FromContext(ctx).Debug("embedding attempt failed", "attempt", attempt, "error", err)
			return err
		}
		if len(v) == 0 {
			return errors.New("empty embedding returned")
		}
		vector = v
		return nil
	})
	if err == nil {
		return vector, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	knowledge.RecordEmbedFailure(ctx)
	return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
}
