package monitoring

import (
	"fmt"
	"strings"

	appconfig "github.com/compozy/woodsage/pkg/config"
)

const defaultPath = "/metrics"

// reservedPaths are served by the API router and cannot host the exporter.
var reservedPaths = []string{"/api/", "/health"}

type Config struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path"    yaml:"path"`
}

func DefaultConfig() *Config {
	return &Config{Path: defaultPath}
}

// FromAppConfig maps the monitoring section of the application config.
func FromAppConfig(mc appconfig.MonitoringConfig) *Config {
	cfg := &Config{Enabled: mc.Enabled, Path: mc.Path}
	if cfg.Path == "" {
		cfg.Path = defaultPath
	}
	return cfg
}

// Validate checks that Path is a bare absolute route outside the API.
func (c *Config) Validate() error {
	switch {
	case c.Path == "":
		return fmt.Errorf("monitoring path cannot be empty")
	case !strings.HasPrefix(c.Path, "/"):
		return fmt.Errorf("monitoring path must start with '/': got %s", c.Path)
	case strings.ContainsAny(c.Path, "?#"):
		return fmt.Errorf("monitoring path cannot contain query parameters or fragments")
	}
	for _, reserved := range reservedPaths {
		if c.Path == strings.TrimSuffix(reserved, "/") || strings.HasPrefix(c.Path, reserved) {
			return fmt.Errorf("monitoring path %s collides with %s", c.Path, reserved)
		}
	}
	return nil
}
