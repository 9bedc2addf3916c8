package keywords

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/woodsage/engine/llm"
)

type stubCompleter struct {
	out    string
	err    error
	system string
	user   string
}

func (s *stubCompleter) Complete(_ context.Context, system, user string) (string, error) {
	s.system = system
	s.user = user
	return s.out, s.err
}

func TestParse(t *testing.T) {
	t.Run("Should trim, lower-case and de-duplicate", func(t *testing.T) {
		got := Parse(` Router Bits, "Dovetail Joint", router bits , ,Festool LR 32.`)
		assert.Equal(t, []string{"router bits", "dovetail joint", "festool lr 32"}, got)
	})

	t.Run("Should strip list markers across lines", func(t *testing.T) {
		got := Parse("1. hand plane\n- card scraper\n* sharpening")
		assert.Equal(t, []string{"hand plane", "card scraper", "sharpening"}, got)
	})

	t.Run("Should return an empty slice for blank output", func(t *testing.T) {
		got := Parse(" , ,\n")
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestUnion(t *testing.T) {
	t.Run("Should keep first-seen order", func(t *testing.T) {
		got := Union([]string{"clamps", "glue"}, []string{"glue", "cauls"}, nil)
		assert.Equal(t, []string{"clamps", "glue", "cauls"}, got)
	})
}

func TestExtractor_Extract(t *testing.T) {
	t.Run("Should embed the text in the prompt", func(t *testing.T) {
		c := &stubCompleter{out: "trigger clamp, one-handed clamping"}
		kws, err := NewExtractor(c).Extract(t.Context(), "How do I clamp one-handed?")
		require.NoError(t, err)
		assert.Equal(t, []string{"trigger clamp", "one-handed clamping"}, kws)
		assert.Contains(t, c.user, "How do I clamp one-handed?")
		assert.Contains(t, c.user, "3-5")
		assert.Contains(t, c.system, "woodworking")
	})

	t.Run("Should report ErrNoKeywords for empty output", func(t *testing.T) {
		_, err := NewExtractor(&stubCompleter{out: " , "}).Extract(t.Context(), "x")
		require.ErrorIs(t, err, ErrExtractionFailed)
		assert.ErrorIs(t, err, ErrNoKeywords)
	})

	t.Run("Should keep the completion cause in the chain", func(t *testing.T) {
		cause := fmt.Errorf("%w: boom", llm.ErrCompletionUnavailable)
		_, err := NewExtractor(&stubCompleter{err: cause}).Extract(t.Context(), "x")
		require.ErrorIs(t, err, ErrExtractionFailed)
		assert.ErrorIs(t, err, llm.ErrCompletionUnavailable)
	})

	t.Run("Should surface cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		_, err := NewExtractor(&stubCompleter{err: errors.New("aborted")}).Extract(ctx, "x")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestParse_KeepsLeadingNumbers(t *testing.T) {
	t.Run("Should not strip measurements", func(t *testing.T) {
		assert.Equal(t, []string{"32mm hole spacing"}, Parse("32mm hole spacing"))
	})
}
