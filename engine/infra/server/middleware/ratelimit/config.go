package ratelimit

import (
	"fmt"
	"time"

	"github.com/ulule/limiter/v3"

	appconfig "github.com/compozy/woodsage/pkg/config"
)

type Config struct {
	GlobalRate    RateConfig            `yaml:"global_rate"`
	RouteRates    map[string]RateConfig `yaml:"route_rates"`
	Prefix        string                `yaml:"prefix"`
	MaxRetry      int                   `yaml:"max_retry"`
	ExcludedPaths []string              `yaml:"excluded_paths"`
}

type RateConfig struct {
	Period time.Duration `yaml:"period"`
	Limit  int64         `yaml:"limit"`
}

func DefaultConfig() *Config {
	return &Config{
		GlobalRate: RateConfig{Limit: 100, Period: time.Minute},
		RouteRates: map[string]RateConfig{
			"/api/v0/ask":       {Limit: 20, Period: time.Minute},
			"/api/v0/documents": {Limit: 20, Period: time.Minute},
		},
		Prefix:        "woodsage:ratelimit:",
		MaxRetry:      3,
		ExcludedPaths: []string{"/health", "/metrics"},
	}
}

// FromAppConfig applies the server.rate_limit section over the defaults.
// Generation endpoints share AskLimit.
func FromAppConfig(rl appconfig.RateLimitConfig, metricsPath string) *Config {
	cfg := DefaultConfig()
	if rl.Limit > 0 {
		cfg.GlobalRate.Limit = rl.Limit
	}
	if rl.Period > 0 {
		cfg.GlobalRate.Period = rl.Period
	}
	for route, rate := range cfg.RouteRates {
		rate.Period = cfg.GlobalRate.Period
		if rl.AskLimit > 0 {
			rate.Limit = rl.AskLimit
		}
		cfg.RouteRates[route] = rate
	}
	if metricsPath != "" && metricsPath != "/metrics" {
		cfg.ExcludedPaths = append(cfg.ExcludedPaths, metricsPath)
	}
	return cfg
}

func (rc RateConfig) ToLimiterRate() limiter.Rate {
	return limiter.Rate{
		Period: rc.Period,
		Limit:  rc.Limit,
	}
}

func (c *Config) Validate() error {
	if c.GlobalRate.Limit <= 0 || c.GlobalRate.Period <= 0 {
		return fmt.Errorf("global rate limit must be positive")
	}
	for route, rate := range c.RouteRates {
		if rate.Limit <= 0 || rate.Period <= 0 {
			return fmt.Errorf("route rate limit for %s must be positive", route)
		}
	}
	return nil
}
