package vectordb

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const defaultTopK = 5

var (
	errMissingID        = errors.New("vector_db id is required")
	errMissingProvider  = errors.New("vector_db provider is required")
	errMissingDSN       = errors.New("vector_db dsn is required")
	errMissingPath      = errors.New("vector_db path is required")
	errInvalidDimension = errors.New("vector_db dimension must be greater than zero")
)

// New instantiates an instrumented vector store backed by the requested provider.
func New(ctx context.Context, cfg *Config) (Store, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return instantiateStore(ctx, cfg)
}

func instantiateStore(ctx context.Context, cfg *Config) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Provider {
	case ProviderMemory:
		store = newMemoryStore(cfg)
	case ProviderFilesystem:
		store, err = newFileStore(cfg)
	case ProviderPGVector:
		store, err = newPGStore(ctx, cfg)
	case ProviderQdrant:
		store, err = newQdrantStore(ctx, cfg)
	case ProviderRedis:
		store, err = newRedisStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("vector_db %q: provider %q is not supported", cfg.ID, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("vector_db %q: %w", cfg.ID, err)
	}
	return instrument(store, cfg), nil
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("vector_db config is required")
	}
	if strings.TrimSpace(cfg.ID) == "" {
		return errMissingID
	}
	if strings.TrimSpace(string(cfg.Provider)) == "" {
		return fmt.Errorf("vector_db %q: %w", cfg.ID, errMissingProvider)
	}
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	cfg.Path = strings.TrimSpace(cfg.Path)
	switch cfg.Provider {
	case ProviderPGVector, ProviderQdrant, ProviderRedis:
		if cfg.DSN == "" {
			return fmt.Errorf("vector_db %q: %w", cfg.ID, errMissingDSN)
		}
	case ProviderFilesystem:
		if cfg.Path == "" {
			return fmt.Errorf("vector_db %q: %w", cfg.ID, errMissingPath)
		}
	}
	if cfg.Dimension <= 0 {
		return fmt.Errorf("vector_db %q: %w", cfg.ID, errInvalidDimension)
	}
	if cfg.MaxTopK < 0 {
		return fmt.Errorf("vector_db %q: max_top_k must be non-negative", cfg.ID)
	}
	return nil
}

func dimensionError(prefix string, id string, got, want int) error {
	if id == "" {
		return fmt.Errorf("%s: query dimension mismatch (got %d want %d)", prefix, got, want)
	}
	return fmt.Errorf("%s: record %q dimension mismatch (got %d want %d)", prefix, id, got, want)
}
