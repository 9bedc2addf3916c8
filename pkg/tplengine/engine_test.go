package tplengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateEngine(t *testing.T) {
	t.Run("Should render named templates with sprig functions", func(t *testing.T) {
		e := NewEngine()
		require.NoError(t, e.AddTemplate("kw", `{{ .items | join ", " | upper }}`))
		out, err := e.Render("kw", map[string]any{"items": []string{"saw", "chisel"}})
		require.NoError(t, err)
		assert.Equal(t, "SAW, CHISEL", out)
	})

	t.Run("Should fail on missing keys", func(t *testing.T) {
		e := NewEngine().MustAddTemplate("q", "{{ .query }}")
		_, err := e.Render("q", map[string]any{})
		require.Error(t, err)
	})

	t.Run("Should report unknown templates", func(t *testing.T) {
		_, err := NewEngine().Render("nope", nil)
		assert.ErrorContains(t, err, "template not found")
	})

	t.Run("Should merge global values under call context", func(t *testing.T) {
		e := NewEngine().WithGlobalValue("persona", "Jason").WithGlobalValue("tone", "calm")
		out, err := e.RenderString("{{ .persona }}/{{ .tone }}", map[string]any{"tone": "warm"})
		require.NoError(t, err)
		assert.Equal(t, "Jason/warm", out)
	})

	t.Run("Should return plain strings untouched", func(t *testing.T) {
		out, err := NewEngine().RenderString("no markers", nil)
		require.NoError(t, err)
		assert.Equal(t, "no markers", out)
	})

	t.Run("Should panic on invalid templates via MustAddTemplate", func(t *testing.T) {
		assert.Panics(t, func() { NewEngine().MustAddTemplate("bad", "{{ .x ") })
	})
}
