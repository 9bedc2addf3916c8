package answer

import (
	"context"
	"errors"
	"fmt"

	"github.com/compozy/woodsage/engine/catalog"
	"github.com/compozy/woodsage/engine/llm"
	"github.com/compozy/woodsage/engine/llm/keywords"
	"github.com/compozy/woodsage/pkg/logger"
)

// State is a step of the synthesis machine.
type State string

const (
	StateRetrieve  State = "RETRIEVE"
	StateNoContext State = "NO_CONTEXT"
	StateDraft     State = "DRAFT"
	StateExtract   State = "EXTRACT"
	StateMatch     State = "MATCH"
	StateRefine    State = "REFINE"
	StateDone      State = "DONE"
)

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateNoContext || s == StateDone
}

type transition func(ctx context.Context, r *run) (State, error)

func (s *Synthesizer) transitions() map[State]transition {
	return map[State]transition{
		StateRetrieve: s.retrieve,
		StateDraft:    s.draft,
		StateExtract:  s.extract,
		StateMatch:    s.match,
		StateRefine:   s.refine,
	}
}

func (s *Synthesizer) retrieve(ctx context.Context, r *run) (State, error) {
	passages, err := s.retriever.Retrieve(ctx, r.result.Query, s.opts.TopK)
	if err != nil {
		return "", err
	}
	r.result.Passages = passages
	if len(passages) == 0 {
		r.result.Text = NoContextMessage
		return StateNoContext, nil
	}
	return StateDraft, nil
}

func (s *Synthesizer) draft(ctx context.Context, r *run) (State, error) {
	grounding := s.truncator.Truncate(buildContext(r.result.Passages), s.opts.MaxContextTokens)
	prompt, err := s.prompts.Render(promptDraft, map[string]any{"context": grounding, "query": r.result.Query})
	if err != nil {
		return "", err
	}
	text, err := s.completer.Complete(ctx, draftSystem, prompt)
	if err != nil {
		return "", err
	}
	r.result.Draft = text
	return StateExtract, nil
}

func (s *Synthesizer) extract(ctx context.Context, r *run) (State, error) {
	fromQuery, err := s.extractOrDegrade(ctx, r, r.result.Query)
	if err != nil {
		return "", err
	}
	fromDraft, err := s.extractOrDegrade(ctx, r, r.result.Draft)
	if err != nil {
		return "", err
	}
	r.result.Keywords = keywords.Union(fromQuery, fromDraft)
	return StateMatch, nil
}

// extractOrDegrade turns non-fatal extraction failures into an empty set.
func (s *Synthesizer) extractOrDegrade(ctx context.Context, r *run, text string) ([]string, error) {
	kws, err := s.extractor.Extract(ctx, text)
	if err == nil {
		return kws, nil
	}
	if ctx.Err() != nil || errors.Is(err, llm.ErrCompletionUnavailable) {
		return nil, err
	}
	logger.FromContext(ctx).Warn("keyword extraction degraded", "error", err)
	r.degrade(ctx, DegradedExtract)
	return nil, nil
}

func (s *Synthesizer) match(ctx context.Context, r *run) (State, error) {
	report, err := s.catalog.Match(ctx, r.result.Keywords)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !errors.Is(err, catalog.ErrCatalogUnavailable) {
			err = fmt.Errorf("%w: %w", catalog.ErrCatalogUnavailable, err)
		}
		logger.FromContext(ctx).Warn("catalog match degraded", "error", err)
		r.degrade(ctx, DegradedMatch)
		report = catalog.MatchReport{Results: []catalog.MatchResult{}, Status: catalog.MatchStatusUnavailable}
	}
	r.result.Matches = report.Results
	r.result.MatchStatus = report.Status
	return StateRefine, nil
}

func (s *Synthesizer) refine(ctx context.Context, r *run) (State, error) {
	prompt, err := s.prompts.Render(promptRefine, map[string]any{
		"query":    r.result.Query,
		"draft":    r.result.Draft,
		"products": matchedEntities(r.result.Matches),
	})
	if err != nil {
		return "", err
	}
	text, err := s.completer.Complete(ctx, refineSystem, prompt)
	if err != nil {
		return "", err
	}
	r.result.Text = text
	r.result.RelatedVideo = relatedVideo(r.result.Passages, s.opts.Videos)
	return StateDone, nil
}
