package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/compozy/woodsage/engine/knowledge/vectordb"
	"github.com/compozy/woodsage/pkg/logger"
)

// Metadata keys of catalog records in the vector index.
const (
	MetaKind    = "kind"
	MetaTitle   = "title"
	MetaTags    = "tags"
	MetaLink    = "link"
	MetaID      = "product_id"
	KindProduct = "product"
)

// Embedder turns entity text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Service wraps a Repository and mirrors each entity into the vector index.
// Index sync failures are logged and never fail the catalog operation.
type Service struct {
	repo     Repository
	embedder Embedder
	index    vectordb.Store
	matcher  *Matcher
}

type ServiceOption func(*Service)

// WithIndex enables vector index synchronization.
func WithIndex(emb Embedder, store vectordb.Store) ServiceOption {
	return func(s *Service) {
		s.embedder = emb
		s.index = store
	}
}

func WithMatcher(m *Matcher) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.matcher = m
		}
	}
}

func NewService(repo Repository, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("catalog: repository is required")
	}
	s := &Service{repo: repo, matcher: NewMatcher(DefaultThreshold, DefaultTopK)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Repository() Repository {
	return s.repo
}

func (s *Service) Add(ctx context.Context, e *Entity) (*Entity, error) {
	e.Normalize()
	id, err := s.repo.Add(ctx, e)
	if err != nil {
		return nil, err
	}
	e.ID = id
	s.syncIndex(ctx, e)
	return e, nil
}

func (s *Service) Update(ctx context.Context, e *Entity) (*Entity, error) {
	e.Normalize()
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	s.syncIndex(ctx, e)
	return e, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.Delete(ctx, vectordb.Filter{IDs: []string{VectorID(id)}}); err != nil {
			logger.FromContext(ctx).Warn("Failed to remove product from index", "product_id", id, "error", err)
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Entity, error) {
	return s.repo.Get(ctx, id)
}

// List returns every entity. Storage failures wrap ErrCatalogUnavailable.
func (s *Service) List(ctx context.Context) ([]Entity, error) {
	entities, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	return entities, nil
}

// ListComplete returns entities that have both tags and a link.
func (s *Service) ListComplete(ctx context.Context) ([]Entity, error) {
	entities, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entity, 0, len(entities))
	for i := range entities {
		if entities[i].Complete() {
			out = append(out, entities[i])
		}
	}
	return out, nil
}

// Match scores the whole catalog against keywords.
func (s *Service) Match(ctx context.Context, keywords []string) (MatchReport, error) {
	entities, err := s.List(ctx)
	if err != nil {
		return MatchReport{Results: []MatchResult{}, Status: MatchStatusUnavailable}, err
	}
	return s.matcher.Match(keywords, entities), nil
}

// Seed upserts entities by id, so running it twice is harmless. Entities
// without an id are added. An empty slice seeds the built-in products.
func (s *Service) Seed(ctx context.Context, entities []Entity) (int, error) {
	if len(entities) == 0 {
		entities = DefaultProducts()
	}
	for i := range entities {
		e := entities[i]
		e.Normalize()
		var err error
		if e.ID == 0 {
			e.ID, err = s.repo.Add(ctx, &e)
		} else {
			err = s.repo.Upsert(ctx, &e)
		}
		if err != nil {
			return i, fmt.Errorf("catalog: seed %q: %w", e.Title, err)
		}
		s.syncIndex(ctx, &e)
	}
	logger.FromContext(ctx).Info("Catalog seeded", "products", len(entities))
	return len(entities), nil
}

// Reindex re-embeds every entity into the vector index.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	entities, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	for i := range entities {
		s.syncIndex(ctx, &entities[i])
	}
	return len(entities), nil
}

func (s *Service) syncIndex(ctx context.Context, e *Entity) {
	if s.index == nil || s.embedder == nil {
		return
	}
	log := logger.FromContext(ctx).With("product_id", e.ID)
	vector, err := s.embedder.Embed(ctx, e.EmbeddingText())
	if err != nil {
		log.Warn("Failed to embed product; index not updated", "error", err)
		return
	}
	record := vectordb.Record{
		ID:        VectorID(e.ID),
		Text:      e.EmbeddingText(),
		Embedding: vector,
		Metadata: map[string]any{
			MetaKind:  KindProduct,
			MetaID:    e.ID,
			MetaTitle: e.Title,
			MetaTags:  e.TagString(),
			MetaLink:  e.Link,
		},
	}
	if err := s.index.Upsert(ctx, []vectordb.Record{record}); err != nil {
		log.Warn("Failed to upsert product into index", "error", err)
	}
}

// EntityFromMetadata rebuilds an entity from vector index metadata.
func EntityFromMetadata(meta map[string]any) (Entity, bool) {
	if kind, _ := meta[MetaKind].(string); kind != KindProduct {
		return Entity{}, false
	}
	e := Entity{}
	e.Title, _ = meta[MetaTitle].(string)
	e.Link, _ = meta[MetaLink].(string)
	if tags, ok := meta[MetaTags].(string); ok {
		e.Tags = ParseTags(tags)
	}
	switch v := meta[MetaID].(type) {
	case int64:
		e.ID = v
	case int:
		e.ID = int64(v)
	case float64:
		e.ID = int64(v)
	}
	return e, strings.TrimSpace(e.Title) != ""
}
