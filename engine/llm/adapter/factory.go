package llmadapter

import "fmt"

// Limits configures the shared rate limiter of a client.
type Limits struct {
	MaxConcurrency    int
	RequestsPerMinute int
}

// NewClient builds the provider adapter behind a rate limiter.
func NewClient(config *ProviderConfig, limits Limits) (Client, error) {
	if config == nil {
		return nil, fmt.Errorf("provider config must not be nil")
	}
	adapter, err := NewLangChainAdapter(config)
	if err != nil {
		return nil, err
	}
	limiter := NewRateLimiter(config.Provider, limits.MaxConcurrency, limits.RequestsPerMinute)
	return WithRateLimiter(adapter, limiter), nil
}
