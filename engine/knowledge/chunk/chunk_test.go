package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_Split(t *testing.T) {
	t.Run("Should reconstruct the original text in order", func(t *testing.T) {
		c, err := New(7)
		require.NoError(t, err)
		text := "Basics of Cabinet Building\nPlace the shelf pins 32mm apart and square the carcass."
		var sb strings.Builder
		idx := 0
		for ch := range c.Split(Document{Text: text}) {
			assert.Equal(t, idx, ch.Index)
			assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), 7)
			sb.WriteString(ch.Text)
			idx++
		}
		assert.Equal(t, text, sb.String())
		assert.Equal(t, c.Count(text), idx)
	})

	t.Run("Should produce ceil(len/max) chunks", func(t *testing.T) {
		c, err := New(1000)
		require.NoError(t, err)
		chunks := c.Collect(Document{Title: "Doc", Text: strings.Repeat("a", 2500)})
		require.Len(t, chunks, 3)
		assert.Len(t, chunks[2].Text, 500)
		assert.Equal(t, "Doc_chunk_2", chunks[2].ID())
	})

	t.Run("Should yield nothing for empty text", func(t *testing.T) {
		c, err := New(10)
		require.NoError(t, err)
		assert.Empty(t, c.Collect(Document{Title: "Empty"}))
		assert.Equal(t, 0, c.Count(""))
	})

	t.Run("Should count runes rather than bytes", func(t *testing.T) {
		c, err := New(2)
		require.NoError(t, err)
		chunks := c.Collect(Document{Title: "Jp", Text: "鉋と鑿"})
		require.Len(t, chunks, 2)
		assert.Equal(t, "鉋と", chunks[0].Text)
		assert.Equal(t, "鑿", chunks[1].Text)
	})

	t.Run("Should be restartable", func(t *testing.T) {
		c, err := New(3)
		require.NoError(t, err)
		seq := c.Split(Document{Title: "T", Text: "abcdefgh"})
		first := 0
		for range seq {
			first++
		}
		second := 0
		for range seq {
			second++
		}
		assert.Equal(t, 3, first)
		assert.Equal(t, first, second)
	})

	t.Run("Should stop early when the consumer breaks", func(t *testing.T) {
		c, err := New(1)
		require.NoError(t, err)
		seen := 0
		for range c.Split(Document{Title: "T", Text: "abcdef"}) {
			seen++
			if seen == 2 {
				break
			}
		}
		assert.Equal(t, 2, seen)
	})

	t.Run("Should infer the title from the text when missing", func(t *testing.T) {
		c, err := New(100)
		require.NoError(t, err)
		chunks := c.Collect(Document{Text: "Festool LR32 system\nThe rail indexes holes."})
		require.Len(t, chunks, 1)
		assert.Equal(t, "Festool LR32 system_chunk_0", chunks[0].ID())
	})
}

func TestNew(t *testing.T) {
	t.Run("Should reject non-positive sizes", func(t *testing.T) {
		_, err := New(0)
		require.Error(t, err)
	})
}

func TestInferTitle(t *testing.T) {
	t.Run("Should use the first line", func(t *testing.T) {
		assert.Equal(t, "Graco Ultimate Sprayer", InferTitle("  Graco Ultimate Sprayer  \nbody"))
	})
	t.Run("Should skip leading blank lines", func(t *testing.T) {
		assert.Equal(t, "Title", InferTitle("\n\n Title\nbody"))
	})
	t.Run("Should fall back to the untitled sentinel", func(t *testing.T) {
		assert.Equal(t, UntitledDocument, InferTitle("   \n\t"))
		assert.Equal(t, UntitledDocument, InferTitle(""))
	})
}

func TestChunk_Hash(t *testing.T) {
	t.Run("Should fingerprint identical text identically", func(t *testing.T) {
		a := Chunk{Text: "dado"}
		b := Chunk{Text: "dado", Index: 4}
		assert.Equal(t, a.Hash(), b.Hash())
		assert.NotEqual(t, a.Hash(), Chunk{Text: "rabbet"}.Hash())
	})
}
