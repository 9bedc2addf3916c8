package vectordb

import (
	"context"

	"github.com/spf13/afero"
)

// Provider enumerates supported vector database backends.
type Provider string

const (
	ProviderMemory     Provider = "memory"
	ProviderFilesystem Provider = "filesystem"
	ProviderPGVector   Provider = "pgvector"
	ProviderQdrant     Provider = "qdrant"
	ProviderRedis      Provider = "redis"
)

// Record is an embedded item persisted to the index.
type Record struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]any
}

// SearchOptions controls similarity search execution. A MinScore of zero or
// below keeps every hit, including negative similarities.
type SearchOptions struct {
	TopK     int
	MinScore float64
	Filters  map[string]string
}

func (o SearchOptions) belowMinScore(score float64) bool {
	return o.MinScore > 0 && score < o.MinScore
}

// Match is a search hit. Higher scores are more similar.
type Match struct {
	ID       string
	Score    float64
	Text     string
	Metadata map[string]any
}

// Filter selects records to delete by ID or by exact metadata values.
type Filter struct {
	IDs      []string          `json:"ids,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Stats describes the index contents.
type Stats struct {
	Provider   Provider `json:"provider"`
	Dimension  int      `json:"dimension"`
	TotalCount int64    `json:"total_count"`
}

// Store is the vector index contract. Search results are ordered by descending score.
// Fetch returns (nil, nil) when the id is absent.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error)
	Fetch(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, filter Filter) error
	Stats(ctx context.Context) (Stats, error)
	Close(ctx context.Context) error
}

// Config captures normalized connection details for a vector database.
type Config struct {
	ID          string
	Provider    Provider
	DSN         string
	APIKey      string
	Path        string
	Table       string
	Collection  string
	Metric      string
	Dimension   int
	EnsureIndex bool
	MaxTopK     int
	// Fs backs the filesystem provider; nil means the OS filesystem.
	Fs afero.Fs
}
