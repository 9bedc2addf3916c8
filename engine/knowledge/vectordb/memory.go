package vectordb

import (
	"context"
	"sync"
)

// memStore keeps records in process memory.
type memStore struct {
	mu        sync.RWMutex
	dimension int
	maxTopK   int
	records   map[string]Record
}

func newMemoryStore(cfg *Config) *memStore {
	return &memStore{
		dimension: cfg.Dimension,
		maxTopK:   cfg.MaxTopK,
		records:   make(map[string]Record),
	}
}

func (s *memStore) Upsert(_ context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(records)
}

func (s *memStore) upsertLocked(records []Record) error {
	for i := range records {
		if len(records[i].Embedding) != s.dimension {
			return dimensionError("memory", records[i].ID, len(records[i].Embedding), s.dimension)
		}
	}
	for i := range records {
		s.records[records[i].ID] = cloneRecord(records[i])
	}
	return nil
}

func (s *memStore) Search(_ context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	if len(query) != s.dimension {
		return nil, dimensionError("memory", "", len(query), s.dimension)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidates := make([]Match, 0, len(s.records))
	for _, rec := range s.records {
		if !metadataMatches(rec.Metadata, opts.Filters) {
			continue
		}
		score := cosineSimilarity(rec.Embedding, query)
		if opts.belowMinScore(score) {
			continue
		}
		candidates = append(candidates, Match{
			ID:       rec.ID,
			Score:    score,
			Text:     rec.Text,
			Metadata: cloneMap(rec.Metadata),
		})
	}
	return rankMatches(candidates, resolveTopK(opts.TopK, s.maxTopK)), nil
}

func (s *memStore) Fetch(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	out := cloneRecord(rec)
	return &out, nil
}

func (s *memStore) Delete(_ context.Context, filter Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(filter)
	return nil
}

// deleteLocked reports whether anything was removed.
func (s *memStore) deleteLocked(filter Filter) bool {
	changed := false
	if len(filter.IDs) > 0 {
		for _, id := range filter.IDs {
			if _, ok := s.records[id]; ok {
				delete(s.records, id)
				changed = true
			}
		}
		return changed
	}
	if len(filter.Metadata) == 0 {
		return false
	}
	for id, rec := range s.records {
		if metadataMatches(rec.Metadata, filter.Metadata) {
			delete(s.records, id)
			changed = true
		}
	}
	return changed
}

func (s *memStore) Stats(context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Provider: ProviderMemory, Dimension: s.dimension, TotalCount: int64(len(s.records))}, nil
}

func (s *memStore) Close(context.Context) error {
	return nil
}
