package llm

import (
	"time"

	providermetrics "github.com/compozy/woodsage/engine/llm/provider/metrics"
)

const defaultTimeout = 60 * time.Second

// Config represents the configuration for the completion service
type Config struct {
	Provider    string
	Model       string
	Timeout     time.Duration
	Temperature float64
	Recorder    providermetrics.Recorder
}

// Option represents a configuration option
type Option func(*Config)

func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

func WithTemperature(t float64) Option {
	return func(c *Config) {
		c.Temperature = t
	}
}

func WithRecorder(r providermetrics.Recorder) Option {
	return func(c *Config) {
		c.Recorder = r
	}
}

// WithModel labels telemetry with the provider and model names.
func WithModel(provider, model string) Option {
	return func(c *Config) {
		c.Provider = provider
		c.Model = model
	}
}

func defaultConfig() *Config {
	return &Config{Timeout: defaultTimeout, Recorder: providermetrics.Nop()}
}
