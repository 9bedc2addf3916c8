package embedder

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/compozy/woodsage/engine/knowledge"
)

// Embedder is the provider contract shared with langchaingo.
type Embedder = embeddings.Embedder

var (
	errMissingID        = errors.New("embedder id is required")
	errMissingProvider  = errors.New("embedder provider is required")
	errMissingModel     = errors.New("embedder model is required")
	errInvalidDimension = errors.New("embedder dimension must be greater than zero")
	errInvalidBatchSize = errors.New("embedder batch size must be greater than zero")
)

// Adapter checks vector dimensions, records latency and optionally caches
// results in front of a langchaingo embedder.
type Adapter struct {
	cfg   Config
	impl  embeddings.Embedder
	cache atomic.Pointer[vectorCache]
}

// New builds the configured provider and wraps it.
func New(cfg *Config) (*Adapter, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	impl, err := newProviderEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedder %q: %w", cfg.ID, err)
	}
	return Wrap(cfg, impl)
}

// Wrap adapts an existing embedder, typically a test double.
func Wrap(cfg *Config, impl embeddings.Embedder) (*Adapter, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if impl == nil {
		return nil, fmt.Errorf("embedder %q: implementation is required", cfg.ID)
	}
	return &Adapter{cfg: *cfg, impl: impl}, nil
}

func validateConfig(cfg *Config) error {
	switch {
	case cfg == nil:
		return errors.New("embedder config is required")
	case strings.TrimSpace(cfg.ID) == "":
		return errMissingID
	case strings.TrimSpace(string(cfg.Provider)) == "":
		return fmt.Errorf("embedder %q: %w", cfg.ID, errMissingProvider)
	case strings.TrimSpace(cfg.Model) == "":
		return fmt.Errorf("embedder %q: %w", cfg.ID, errMissingModel)
	case cfg.Dimension <= 0:
		return fmt.Errorf("embedder %q: %w", cfg.ID, errInvalidDimension)
	case cfg.BatchSize <= 0:
		return fmt.Errorf("embedder %q: %w", cfg.ID, errInvalidBatchSize)
	}
	return nil
}

func (a *Adapter) Dimension() int { return a.cfg.Dimension }

func (a *Adapter) Model() string { return a.cfg.Model }

// EnableCache keeps up to size embeddings keyed by a digest of their text.
func (a *Adapter) EnableCache(size int) error {
	if size <= 0 {
		return fmt.Errorf("embedder %q: cache size must be greater than zero", a.cfg.ID)
	}
	cache, err := newVectorCache(size)
	if err != nil {
		return fmt.Errorf("embedder %q: cache: %w", a.cfg.ID, err)
	}
	a.cache.Store(cache)
	return nil
}

// lookup reports cache hits and misses only while a cache is enabled.
func (a *Adapter) lookup(ctx context.Context, text string) ([]float32, bool) {
	cache := a.cache.Load()
	if cache == nil {
		return nil, false
	}
	v, ok := cache.get(text)
	knowledge.RecordEmbedCache(ctx, ok)
	return v, ok
}

// EmbedDocuments sends each distinct uncached text to the provider once.
func (a *Adapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	slots := make(map[string][]int)
	var pending []string
	for i, text := range texts {
		if v, ok := a.lookup(ctx, text); ok {
			out[i] = v
			continue
		}
		if _, queued := slots[text]; !queued {
			pending = append(pending, text)
		}
		slots[text] = append(slots[text], i)
	}
	if len(pending) == 0 {
		return out, nil
	}
	start := time.Now()
	vectors, err := a.impl.EmbedDocuments(ctx, pending)
	if err != nil {
		return nil, fmt.Errorf("embedder %q: %w", a.cfg.ID, err)
	}
	knowledge.RecordEmbedLatency(ctx, a.cfg.Model, time.Since(start))
	if len(vectors) != len(pending) {
		return nil, fmt.Errorf("embedder %q: received %d embeddings for %d texts", a.cfg.ID, len(vectors), len(pending))
	}
	cache := a.cache.Load()
	for i, text := range pending {
		if err := a.checkDimension(vectors[i]); err != nil {
			return nil, err
		}
		cache.put(text, vectors[i])
		for _, slot := range slots[text] {
			out[slot] = slices.Clone(vectors[i])
		}
	}
	return out, nil
}

func (a *Adapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if v, ok := a.lookup(ctx, text); ok {
		return v, nil
	}
	start := time.Now()
	v, err := a.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedder %q: %w", a.cfg.ID, err)
	}
	knowledge.RecordEmbedLatency(ctx, a.cfg.Model, time.Since(start))
	if err := a.checkDimension(v); err != nil {
		return nil, err
	}
	a.cache.Load().put(text, v)
	return slices.Clone(v), nil
}

func (a *Adapter) checkDimension(v []float32) error {
	if len(v) != a.cfg.Dimension {
		return fmt.Errorf("embedder %q: expected dimension %d, got %d", a.cfg.ID, a.cfg.Dimension, len(v))
	}
	return nil
}
