package vectordb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(&Config{Dimension: 4})

	t.Run("Should upsert and search by cosine", func(t *testing.T) {
		records := []Record{
			{ID: "a", Text: "alpha", Embedding: []float32{1, 0, 0, 0}, Metadata: map[string]any{"kind": "one"}},
			{ID: "b", Text: "bravo", Embedding: []float32{0, 1, 0, 0}, Metadata: map[string]any{"kind": "two"}},
		}
		require.NoError(t, store.Upsert(ctx, records))
		matches, err := store.Search(ctx, []float32{1, 0, 0, 0}, SearchOptions{TopK: 1})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "a", matches[0].ID)
		assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	})

	t.Run("Should filter by metadata", func(t *testing.T) {
		matches, err := store.Search(
			ctx,
			[]float32{0, 1, 0, 0},
			SearchOptions{TopK: 2, Filters: map[string]string{"kind": "two"}},
		)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "b", matches[0].ID)
	})

	t.Run("Should fetch a copy of a stored record", func(t *testing.T) {
		rec, err := store.Fetch(ctx, "a")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "alpha", rec.Text)
		rec.Metadata["kind"] = "mutated"
		again, err := store.Fetch(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "one", again.Metadata["kind"])
	})

	t.Run("Should return nil when fetching an absent id", func(t *testing.T) {
		rec, err := store.Fetch(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("Should report stats", func(t *testing.T) {
		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{Provider: ProviderMemory, Dimension: 4, TotalCount: 2}, stats)
	})

	t.Run("Should ignore an empty delete filter", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, Filter{}))
		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.TotalCount)
	})

	t.Run("Should delete by id", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, Filter{IDs: []string{"a"}}))
		matches, err := store.Search(ctx, []float32{1, 0, 0, 0}, SearchOptions{TopK: 2, MinScore: 0.1})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("Should delete by metadata", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, Filter{Metadata: map[string]string{"kind": "two"}}))
		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.TotalCount)
	})

	t.Run("Should fail upsert when dimension mismatches", func(t *testing.T) {
		mismatchStore := newMemoryStore(&Config{Dimension: 4})
		err := mismatchStore.Upsert(ctx, []Record{{ID: "bad", Embedding: []float32{1, 1, 1}}})
		require.Error(t, err)
	})

	t.Run("Should fail search when query dimension mismatches", func(t *testing.T) {
		otherStore := newMemoryStore(&Config{Dimension: 2})
		record := Record{ID: "c", Embedding: []float32{1, 0}}
		require.NoError(t, otherStore.Upsert(ctx, []Record{record}))
		_, err := otherStore.Search(ctx, []float32{1, 0, 0}, SearchOptions{TopK: 1})
		require.Error(t, err)
	})

	t.Run("Should respect topK when exceeding available records", func(t *testing.T) {
		limitedStore := newMemoryStore(&Config{Dimension: 2})
		records := []Record{
			{ID: "d", Text: "delta", Embedding: []float32{1, 0}},
			{ID: "e", Text: "echo", Embedding: []float32{0, 1}},
		}
		require.NoError(t, limitedStore.Upsert(ctx, records))
		matches, err := limitedStore.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 10})
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "d", matches[0].ID)
	})

	t.Run("Should keep negative similarities without a minimum score", func(t *testing.T) {
		opposed := newMemoryStore(&Config{Dimension: 2})
		require.NoError(t, opposed.Upsert(ctx, []Record{
			{ID: "same", Embedding: []float32{1, 0}},
			{ID: "opposite", Embedding: []float32{-1, 0}},
		}))
		matches, err := opposed.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 2})
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "opposite", matches[1].ID)
		assert.InDelta(t, -1.0, matches[1].Score, 1e-6)
		matches, err = opposed.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 2, MinScore: 0.5})
		require.NoError(t, err)
		require.Len(t, matches, 1)
	})

	t.Run("Should break score ties by id", func(t *testing.T) {
		tied := newMemoryStore(&Config{Dimension: 2})
		require.NoError(t, tied.Upsert(ctx, []Record{
			{ID: "z", Embedding: []float32{1, 0}},
			{ID: "m", Embedding: []float32{2, 0}},
		}))
		matches, err := tied.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 2})
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, []string{"m", "z"}, []string{matches[0].ID, matches[1].ID})
	})
}
