package ingest

import "fmt"

// Strategy defines how ingestion writes records into the vector store.
type Strategy string

const (
	StrategyUpsert  Strategy = "upsert"
	StrategyReplace Strategy = "replace"
)

const defaultConcurrency = 4

// Options controls ingestion execution details provided by callers.
type Options struct {
	Strategy    Strategy
	Concurrency int
}

func (o *Options) normalizedStrategy() Strategy {
	if o == nil || o.Strategy == "" {
		return StrategyUpsert
	}
	return o.Strategy
}

func (o *Options) normalizedConcurrency() int {
	if o == nil || o.Concurrency <= 0 {
		return defaultConcurrency
	}
	return o.Concurrency
}

// ParseStrategy accepts the textual form used by flags and config.
func ParseStrategy(raw string) (Strategy, error) {
	switch Strategy(raw) {
	case "", StrategyUpsert:
		return StrategyUpsert, nil
	case StrategyReplace:
		return StrategyReplace, nil
	default:
		return "", fmt.Errorf("ingest: strategy %q not supported", raw)
	}
}
