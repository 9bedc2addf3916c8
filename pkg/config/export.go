package config

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Map returns the configuration keyed by its koanf paths. Secrets stay
// SensitiveString so they redact on output and durations become strings.
func (c *Config) Map() (map[string]any, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(c, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to export configuration: %w", err)
	}
	return humanize(k.Raw()), nil
}

func humanize(m map[string]any) map[string]any {
	for key, value := range m {
		switch v := value.(type) {
		case map[string]any:
			m[key] = humanize(v)
		case time.Duration:
			m[key] = v.String()
		}
	}
	return m
}
