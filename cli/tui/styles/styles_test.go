package styles

import (
	"testing"

	"github.com/compozy/woodsage/engine/answer"
	"github.com/compozy/woodsage/engine/catalog"
	"github.com/compozy/woodsage/engine/knowledge/retriever"
	"github.com/stretchr/testify/assert"
)

func TestRenderAnswer(t *testing.T) {
	t.Run("Should list sources, products and the related video", func(t *testing.T) {
		out := RenderAnswer(&answer.Result{
			Final: answer.StateDone,
			Text:  "Use a trigger clamp.",
			Passages: []retriever.Passage{
				{Title: "Clamping 101"},
				{Title: "Clamping 101"},
				{Title: "Glue-ups"},
			},
			Matches: []catalog.MatchResult{
				{Entity: catalog.Entity{ID: 3, Title: "Festool Trigger Clamp", Link: "https://example.com/clamp"}},
			},
			RelatedVideo: &answer.RelatedVideo{Title: "Clamping 101", URL: "https://www.youtube.com/watch?v=abc"},
		})
		assert.Contains(t, out, "Use a trigger clamp.")
		assert.Contains(t, out, "Sources: Clamping 101, Glue-ups")
		assert.Contains(t, out, "Festool Trigger Clamp")
		assert.Contains(t, out, "https://www.youtube.com/watch?v=abc")
	})

	t.Run("Should render only the text without context", func(t *testing.T) {
		out := RenderAnswer(&answer.Result{Final: answer.StateNoContext, Text: "I don't know."})
		assert.Contains(t, out, "I don't know.")
		assert.NotContains(t, out, "Sources")
	})

	t.Run("Should render nothing for nil", func(t *testing.T) {
		assert.Empty(t, RenderAnswer(nil))
	})
}

func TestRenderProducts(t *testing.T) {
	t.Run("Should draw one row per entity", func(t *testing.T) {
		out := RenderProducts([]catalog.Entity{
			{ID: 1, Title: "Router Bit Set", Tags: []string{"router", "bits"}, Link: "https://example.com/bits"},
		})
		assert.Contains(t, out, "Router Bit Set")
		assert.Contains(t, out, "router, bits")
	})
	t.Run("Should say when the catalog is empty", func(t *testing.T) {
		assert.Contains(t, RenderProducts(nil), "No products")
	})
}

func TestRenderMatches(t *testing.T) {
	t.Run("Should show the status line", func(t *testing.T) {
		out := RenderMatches(catalog.MatchReport{Status: catalog.MatchStatusNoMatches, Considered: 11})
		assert.Contains(t, out, "status: no_matches, considered: 11")
	})
}
