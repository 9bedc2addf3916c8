package config

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "WOODSAGE_"

// Loader merges defaults, file sources and the environment into a validated Config.
type Loader struct {
	koanf     *koanf.Koanf
	validator *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		koanf:     koanf.New("."),
		validator: validator.New(),
	}
}

// Load applies defaults, then sources in order, then environment variables.
func Load(ctx context.Context, sources ...Source) (*Config, error) {
	return NewLoader().Load(ctx, sources...)
}

func (l *Loader) Load(_ context.Context, sources ...Source) (*Config, error) {
	l.koanf = koanf.New(".")
	if err := l.koanf.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	for _, source := range sources {
		if source == nil {
			continue
		}
		if err := l.loadSource(source); err != nil {
			return nil, err
		}
	}
	if err := l.loadEnvironment(); err != nil {
		return nil, err
	}
	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}
	if err := l.Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) loadSource(source Source) error {
	if err := l.koanf.Load(koanfSource{source}, nil); err != nil {
		return fmt.Errorf("failed to load from source %s: %w", source.Type(), err)
	}
	return nil
}

// transformEnvKey maps WOODSAGE_SECTION_FIELD_NAME to section.field_name.
func transformEnvKey(s string) string {
	if !strings.HasPrefix(s, envPrefix) {
		return ""
	}
	parts := strings.FieldsFunc(strings.ToLower(strings.TrimPrefix(s, envPrefix)), func(r rune) bool {
		return r == '_'
	})
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return parts[0] + "." + strings.Join(parts[1:], "_")
	}
}

func (l *Loader) loadEnvironment() error {
	envToPath := GenerateEnvToConfigMap()
	if err := l.koanf.Load(env.Provider(".", env.Opt{
		Prefix: "",
		TransformFunc: func(key string, value string) (string, any) {
			if path, ok := envToPath[key]; ok {
				return path, value
			}
			return transformEnvKey(key), value
		},
	}), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

func sensitiveStringDecodeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(SensitiveString("")) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return SensitiveString(v), nil
	case []byte:
		return SensitiveString(v), nil
	default:
		return data, nil
	}
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.koanf.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				sensitiveStringDecodeHook,
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks struct tags and cross-field rules.
func (l *Loader) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if err := l.validator.Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return validateCustom(cfg)
}

func validateCustom(cfg *Config) error {
	switch cfg.Vector.Provider {
	case "qdrant", "pgvector", "redis":
		if cfg.Vector.DSN.Value() == "" {
			return missingSetting("vector.dsn", "provider", cfg.Vector.Provider)
		}
	case "filesystem":
		if strings.TrimSpace(cfg.Vector.Path) == "" {
			return missingSetting("vector.path", "provider", cfg.Vector.Provider)
		}
	}
	switch cfg.Catalog.Driver {
	case "postgres":
		if cfg.Catalog.DSN.Value() == "" {
			return missingSetting("catalog.dsn", "driver", cfg.Catalog.Driver)
		}
	case "sqlite":
		if strings.TrimSpace(cfg.Catalog.Path) == "" {
			return missingSetting("catalog.path", "driver", cfg.Catalog.Driver)
		}
	}
	if rl := cfg.Server.RateLimit; rl.Enabled && (rl.Limit <= 0 || rl.Period <= 0) {
		return fmt.Errorf("server.rate_limit.limit and server.rate_limit.period must be positive when enabled")
	}
	for i, v := range cfg.Videos {
		if strings.TrimSpace(v.Title) == "" || strings.TrimSpace(v.URL) == "" {
			return fmt.Errorf("videos[%d]: title and url are required", i)
		}
	}
	return nil
}

// missingSetting names the env variable that can supply path.
func missingSetting(path, kind, value string) error {
	if env := GetEnvVarForConfigPath(path); env != "" {
		return fmt.Errorf("%s is required for %s %q (set %s)", path, kind, value, env)
	}
	return fmt.Errorf("%s is required for %s %q", path, kind, value)
}
