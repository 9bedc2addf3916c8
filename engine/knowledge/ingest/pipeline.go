package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/compozy/woodsage/engine/knowledge"
	"github.com/compozy/woodsage/engine/knowledge/chunk"
	"github.com/compozy/woodsage/engine/knowledge/vectordb"
	"github.com/compozy/woodsage/pkg/logger"
)

// Metadata keys written alongside every chunk record.
const (
	MetaTitle      = "title"
	MetaText       = "text"
	MetaChunkIndex = "chunk_index"
	MetaSource     = "source"
	MetaChunkHash  = "chunk_hash"
	MetaKind       = "kind"
	// KindChunk marks transcript chunks apart from catalog records sharing the index.
	KindChunk = "chunk"
)

// Embedder produces one vector per text, retrying internally.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Pipeline struct {
	chunker  *chunk.Chunker
	embedder Embedder
	store    vectordb.Store
	options  Options
}

// ChunkFailure records a chunk that was skipped.
type ChunkFailure struct {
	ChunkID string `json:"chunk_id"`
	Err     error  `json:"-"`
	Message string `json:"error"`
}

type Result struct {
	Documents int            `json:"documents"`
	Chunks    int            `json:"chunks"`
	Persisted int            `json:"persisted"`
	Skipped   int            `json:"skipped"`
	Failures  []ChunkFailure `json:"failures,omitempty"`
}

func NewPipeline(chunker *chunk.Chunker, emb Embedder, store vectordb.Store, opts Options) (*Pipeline, error) {
	if chunker == nil {
		return nil, errors.New("ingest: chunker is required")
	}
	if emb == nil {
		return nil, errors.New("ingest: embedder is required")
	}
	if store == nil {
		return nil, errors.New("ingest: vector store is required")
	}
	if _, err := ParseStrategy(string(opts.Strategy)); err != nil {
		return nil, err
	}
	return &Pipeline{chunker: chunker, embedder: emb, store: store, options: opts}, nil
}

// Run chunks, embeds and upserts every document. A chunk that cannot be
// embedded or stored is skipped and reported; the rest continue.
func (p *Pipeline) Run(ctx context.Context, docs []chunk.Document) (*Result, error) {
	log := logger.FromContext(ctx)
	strategy := p.options.normalizedStrategy()
	start := time.Now()
	result := &Result{Documents: len(docs)}
	var (
		persisted atomic.Int64
		skipped   atomic.Int64
		mu        sync.Mutex
	)
	titled := make([]chunk.Document, len(docs))
	for i := range docs {
		titled[i] = docs[i]
		if titled[i].Title == "" {
			titled[i].Title = chunk.InferTitle(titled[i].Text)
		}
	}
	// Every delete lands before the first upsert so documents sharing a
	// title cannot erase each other's fresh chunks.
	if strategy == StrategyReplace {
		if err := p.clearTitles(ctx, titled); err != nil {
			return nil, err
		}
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.options.normalizedConcurrency())
	for _, doc := range titled {
		for ch := range p.chunker.Split(doc) {
			if err := gctx.Err(); err != nil {
				break
			}
			result.Chunks++
			g.Go(func() error {
				if err := p.persistChunk(gctx, ch); err != nil {
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					skipped.Add(1)
					log.Warn("Skipping chunk", "chunk_id", ch.ID(), "error", err)
					mu.Lock()
					result.Failures = append(result.Failures, ChunkFailure{ChunkID: ch.ID(), Err: err, Message: err.Error()})
					mu.Unlock()
					return nil
				}
				persisted.Add(1)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result.Persisted = int(persisted.Load())
	result.Skipped = int(skipped.Load())
	knowledge.RecordIngestDuration(ctx, string(strategy), time.Since(start))
	knowledge.RecordIngestChunks(ctx, "persisted", result.Persisted)
	knowledge.RecordIngestChunks(ctx, "skipped", result.Skipped)
	log.Info(
		"Ingestion completed",
		"documents", result.Documents,
		"chunks", result.Chunks,
		"persisted", result.Persisted,
		"skipped", result.Skipped,
		"strategy", strategy,
	)
	return result, nil
}

func (p *Pipeline) persistChunk(ctx context.Context, ch chunk.Chunk) error {
	vector, err := p.embedder.Embed(ctx, ch.Text)
	if err != nil {
		return err
	}
	record := vectordb.Record{
		ID:        ch.ID(),
		Text:      ch.Text,
		Embedding: vector,
		Metadata: map[string]any{
			MetaTitle:      ch.DocumentTitle,
			MetaText:       ch.Text,
			MetaChunkIndex: ch.Index,
			MetaChunkHash:  ch.Hash(),
			MetaKind:       KindChunk,
		},
	}
	if ch.Source != "" {
		record.Metadata[MetaSource] = ch.Source
	}
	if err := p.store.Upsert(ctx, []vectordb.Record{record}); err != nil {
		return fmt.Errorf("ingest: persist vector: %w", err)
	}
	return nil
}

func (p *Pipeline) clearTitles(ctx context.Context, docs []chunk.Document) error {
	seen := make(map[string]struct{}, len(docs))
	for i := range docs {
		if _, ok := seen[docs[i].Title]; ok {
			continue
		}
		seen[docs[i].Title] = struct{}{}
		if err := p.deleteExisting(ctx, docs[i].Title); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) deleteExisting(ctx context.Context, title string) error {
	if err := p.store.Delete(ctx, vectordb.Filter{Metadata: map[string]string{MetaTitle: title, MetaKind: KindChunk}}); err != nil {
		return fmt.Errorf("ingest: clear previous chunks of %q: %w", title, err)
	}
	return nil
}
