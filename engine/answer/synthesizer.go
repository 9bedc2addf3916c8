package answer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/compozy/woodsage/engine/catalog"
	"github.com/compozy/woodsage/engine/knowledge/embedder"
	"github.com/compozy/woodsage/engine/knowledge/retriever"
	"github.com/compozy/woodsage/engine/llm"
	"github.com/compozy/woodsage/pkg/logger"
	"github.com/compozy/woodsage/pkg/tplengine"
)

const (
	DefaultTopK             = retriever.DefaultTopK
	DefaultMaxContextTokens = 3000
)

type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]retriever.Passage, error)
}

type KeywordExtractor interface {
	Extract(ctx context.Context, text string) ([]string, error)
}

type CatalogMatcher interface {
	Match(ctx context.Context, keywords []string) (catalog.MatchReport, error)
}

type Options struct {
	TopK             int
	MaxContextTokens int
	// Videos maps transcript titles to their video links.
	Videos map[string]string
}

type Dependencies struct {
	Retriever Retriever
	Completer llm.Completer
	Extractor KeywordExtractor
	Catalog   CatalogMatcher
	Truncator embedder.Truncator
}

// Synthesizer answers a question by walking RETRIEVE through DONE.
type Synthesizer struct {
	retriever Retriever
	completer llm.Completer
	extractor KeywordExtractor
	catalog   CatalogMatcher
	truncator embedder.Truncator
	prompts   *tplengine.TemplateEngine
	opts      Options
}

type run struct {
	result *Result
}

func (r *run) degrade(ctx context.Context, stage string) {
	for _, d := range r.result.Degraded {
		if d == stage {
			return
		}
	}
	r.result.Degraded = append(r.result.Degraded, stage)
	recordDegraded(ctx, stage)
}

func NewSynthesizer(deps Dependencies, opts Options) (*Synthesizer, error) {
	if deps.Retriever == nil || deps.Completer == nil || deps.Extractor == nil || deps.Catalog == nil {
		return nil, errors.New("answer: retriever, completer, extractor and catalog are required")
	}
	if deps.Truncator == nil {
		deps.Truncator = embedder.RuneTruncator{}
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MaxContextTokens <= 0 {
		opts.MaxContextTokens = DefaultMaxContextTokens
	}
	return &Synthesizer{
		retriever: deps.Retriever,
		completer: deps.Completer,
		extractor: deps.Extractor,
		catalog:   deps.Catalog,
		truncator: deps.Truncator,
		prompts:   newPrompts(),
		opts:      opts,
	}, nil
}

// Answer runs the machine. No partial result is returned on failure.
func (s *Synthesizer) Answer(ctx context.Context, query string) (*Result, error) {
	ctx, span := otel.Tracer("woodsage.answer").Start(ctx, "answer.synthesize")
	defer span.End()
	log := logger.FromContext(ctx)
	r := &run{result: &Result{
		Query:    query,
		Passages: []retriever.Passage{},
		Keywords: []string{},
		Matches:  []catalog.MatchResult{},
	}}
	steps := s.transitions()
	state := StateRetrieve
	for !state.Terminal() {
		r.result.Path = append(r.result.Path, state)
		if err := ctx.Err(); err != nil {
			recordRun(ctx, "canceled")
			return nil, err
		}
		start := time.Now()
		next, err := steps[state](ctx, r)
		recordState(ctx, state, time.Since(start))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				recordRun(ctx, "canceled")
				return nil, ctxErr
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, string(state))
			recordRun(ctx, "failed")
			log.Error("answer synthesis failed", "state", state, "error", err)
			return nil, errors.Join(ErrSynthesisFailed, fmt.Errorf("state %s: %w", state, err))
		}
		span.AddEvent(string(state))
		state = next
	}
	r.result.Path = append(r.result.Path, state)
	r.result.Final = state
	span.SetAttributes(
		attribute.String("answer.final", string(state)),
		attribute.Int("answer.passages", len(r.result.Passages)),
		attribute.Int("answer.matches", len(r.result.Matches)),
	)
	recordRun(ctx, string(state))
	log.Info("answer synthesized",
		"final", state,
		"passages", len(r.result.Passages),
		"keywords", len(r.result.Keywords),
		"matches", len(r.result.Matches),
		"degraded", r.result.Degraded,
	)
	return r.result, nil
}
