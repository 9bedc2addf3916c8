package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/compozy/woodsage/engine/knowledge"
	"github.com/compozy/woodsage/engine/knowledge/chunk"
	"github.com/compozy/woodsage/engine/knowledge/ingest"
	"github.com/compozy/woodsage/engine/knowledge/vectordb"
	"github.com/compozy/woodsage/pkg/logger"
)

// DefaultTopK is the number of passages returned when callers pass k <= 0.
const DefaultTopK = 3

// QueryEmbedder turns a query into a vector.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Passage is a retrieved chunk.
type Passage struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type Options struct {
	TopK     int
	MinScore float64
}

type Service struct {
	embedder QueryEmbedder
	store    vectordb.Store
	options  Options
	tracer   trace.Tracer
}

func NewService(emb QueryEmbedder, store vectordb.Store, opts Options) (*Service, error) {
	if emb == nil {
		return nil, errors.New("retriever: embedder is required")
	}
	if store == nil {
		return nil, errors.New("retriever: vector store is required")
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	return &Service{
		embedder: emb,
		store:    store,
		options:  opts,
		tracer:   otel.Tracer("woodsage.knowledge.retriever"),
	}, nil
}

// Retrieve returns up to k passages ordered by descending similarity. An empty
// index yields an empty slice. A failed query embedding is returned as-is.
func (s *Service) Retrieve(ctx context.Context, query string, k int) (passages []Passage, err error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("retriever: query is required")
	}
	if k <= 0 {
		k = s.options.TopK
	}
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "woodsage.knowledge.retriever.retrieve", trace.WithAttributes(
		attribute.Int("top_k", k),
	))
	defer s.finishRetrieve(ctx, span, start, &passages, &err)

	vector, err := s.embedQueryWithSpan(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retriever: embed query: %w", err)
	}
	opts := vectordb.SearchOptions{
		TopK:     k,
		MinScore: s.options.MinScore,
		Filters:  map[string]string{ingest.MetaKind: ingest.KindChunk},
	}
	matches, err := s.searchMatches(ctx, vector, opts)
	if err != nil {
		return nil, fmt.Errorf("retriever: search: %w", err)
	}
	sortMatches(matches)
	passages = make([]Passage, 0, len(matches))
	for i := range matches {
		passages = append(passages, PassageFromMatch(matches[i]))
	}
	return passages, nil
}

// PassageFromMatch converts dynamic index metadata into a typed passage.
func PassageFromMatch(m vectordb.Match) Passage {
	p := Passage{ID: m.ID, Text: m.Text, Score: m.Score}
	if title, ok := m.Metadata[ingest.MetaTitle].(string); ok {
		p.Title = title
	}
	if p.Text == "" {
		if text, ok := m.Metadata[ingest.MetaText].(string); ok {
			p.Text = text
		}
	}
	if p.Title == "" {
		p.Title = chunk.UntitledDocument
	}
	return p
}

func (s *Service) embedQueryWithSpan(ctx context.Context, query string) ([]float32, error) {
	spanCtx, span := s.tracer.Start(ctx, "woodsage.knowledge.retriever.embed_query", trace.WithAttributes(
		attribute.Int("query_length", len(query)),
	))
	defer span.End()
	vector, err := s.embedder.Embed(spanCtx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return vector, nil
}

func (s *Service) searchMatches(
	ctx context.Context,
	vector []float32,
	opts vectordb.SearchOptions,
) ([]vectordb.Match, error) {
	spanCtx, span := s.tracer.Start(ctx, "woodsage.knowledge.retriever.vector_search", trace.WithAttributes(
		attribute.Int("top_k", opts.TopK),
		attribute.Float64("min_score", opts.MinScore),
	))
	defer span.End()
	matches, err := s.store.Search(spanCtx, vector, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("matches", len(matches)))
	return matches, nil
}

func (s *Service) finishRetrieve(
	ctx context.Context,
	span trace.Span,
	start time.Time,
	passages *[]Passage,
	runErr *error,
) {
	duration := time.Since(start)
	knowledge.RecordQueryLatency(ctx, duration)
	log := logger.FromContext(ctx)
	seconds := duration.Seconds()
	if runErr != nil && *runErr != nil {
		err := *runErr
		log.Error("Retrieval failed", "error", err, "duration_seconds", seconds)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return
	}
	total := len(*passages)
	if total == 0 {
		knowledge.RecordRetrievalEmpty(ctx)
	}
	log.Debug("Retrieval finished", "results", total, "duration_seconds", seconds)
	span.SetAttributes(attribute.Int("results", total))
	span.End()
}

func sortMatches(matches []vectordb.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
}
