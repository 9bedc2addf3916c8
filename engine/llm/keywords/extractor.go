package keywords

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/compozy/woodsage/engine/llm"
	"github.com/compozy/woodsage/pkg/logger"
	"github.com/compozy/woodsage/pkg/tplengine"
)

var (
	// ErrExtractionFailed wraps every extraction failure.
	ErrExtractionFailed = errors.New("keyword extraction failed")
	// ErrNoKeywords marks model output that parsed to nothing.
	ErrNoKeywords = errors.New("no keywords in model output")
)

const systemPrompt = "You are a specialized keyword extraction system for woodworking terminology. " +
	"Identify the most relevant technical terms, tool names, materials, techniques, and concepts in the given text.\n\n" +
	"1. Focus exclusively on woodworking-related terms and concepts.\n" +
	"2. Prefer specific terms over general ones.\n" +
	"3. Include both common and specialized woodworking terminology.\n" +
	"4. Include brand names only when they are standard in the industry.\n" +
	"5. Mix nouns (tools, materials) with verb phrases (techniques, processes).\n" +
	"6. Keep each keyword or phrase distinct and separate them with commas.\n" +
	"7. Output only the keywords."

const userTemplate = "Generate 3-5 highly relevant and specific keywords or short phrases from this text, " +
	"separated by commas. Focus on technical terms, tool names, or specific woodworking techniques: {{ .text }}"

const promptName = "keywords.user"

var listMarker = regexp.MustCompile(`^(?:[-*•]+|\d+[.)])\s+`)

// Extractor turns free text into a keyword set with one completion call.
type Extractor struct {
	completer llm.Completer
	prompts   *tplengine.TemplateEngine
}

func NewExtractor(completer llm.Completer) *Extractor {
	return &Extractor{
		completer: completer,
		prompts:   tplengine.NewEngine().MustAddTemplate(promptName, userTemplate),
	}
}

// Extract returns lower-cased, de-duplicated keywords in model order.
func (e *Extractor) Extract(ctx context.Context, text string) ([]string, error) {
	prompt, err := e.prompts.Render(promptName, map[string]any{"text": text})
	if err != nil {
		return nil, fmt.Errorf("%w: render prompt: %w", ErrExtractionFailed, err)
	}
	raw, err := e.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	kws := Parse(raw)
	if len(kws) == 0 {
		logger.FromContext(ctx).Debug("model returned no keywords", "raw", raw)
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, ErrNoKeywords)
	}
	return kws, nil
}

// Parse cleans comma-separated model output into keywords.
func Parse(raw string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for part := range strings.SplitSeq(strings.ReplaceAll(raw, "\n", ","), ",") {
		kw := clean(part)
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// Union merges keyword sets keeping first-seen order.
func Union(sets ...[]string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, set := range sets {
		for _, kw := range set {
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			out = append(out, kw)
		}
	}
	return out
}

func clean(token string) string {
	s := strings.TrimSpace(token)
	s = listMarker.ReplaceAllString(s, "")
	s = strings.Trim(s, "\"'`“”‘’")
	s = strings.TrimRight(s, ".;:")
	s = strings.Trim(s, "\"'`“”‘’")
	return strings.ToLower(strings.TrimSpace(s))
}
