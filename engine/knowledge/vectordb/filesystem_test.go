package vectordb

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Should persist records across reopen", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		cfg := &Config{ID: "fs", Provider: ProviderFilesystem, Path: "/data/index.json", Dimension: 2, Fs: fsys}
		store, err := newFileStore(cfg)
		require.NoError(t, err)
		require.NoError(t, store.Upsert(ctx, []Record{
			{ID: "a", Text: "alpha", Embedding: []float32{1, 0}, Metadata: map[string]any{"title": "A"}},
		}))
		exists, err := afero.Exists(fsys, "/data/index.json")
		require.NoError(t, err)
		assert.True(t, exists)

		reopened, err := newFileStore(cfg)
		require.NoError(t, err)
		rec, err := reopened.Fetch(ctx, "a")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "alpha", rec.Text)
		assert.Equal(t, "A", rec.Metadata["title"])
		stats, err := reopened.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, ProviderFilesystem, stats.Provider)
		assert.Equal(t, int64(1), stats.TotalCount)
	})

	t.Run("Should place a slugged snapshot inside a directory path", func(t *testing.T) {
		path := snapshotPath(&Config{Path: "/var/idx", Collection: "Wood Videos"})
		assert.Equal(t, "/var/idx/wood-videos.json", path)
	})

	t.Run("Should persist deletions", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		cfg := &Config{Path: "/idx", Collection: "c", Dimension: 2, Fs: fsys}
		store, err := newFileStore(cfg)
		require.NoError(t, err)
		require.NoError(t, store.Upsert(ctx, []Record{
			{ID: "a", Embedding: []float32{1, 0}},
			{ID: "b", Embedding: []float32{0, 1}},
		}))
		require.NoError(t, store.Delete(ctx, Filter{IDs: []string{"a"}}))
		reopened, err := newFileStore(cfg)
		require.NoError(t, err)
		stats, err := reopened.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.TotalCount)
	})

	t.Run("Should reject a snapshot with another dimension", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fsys, "/idx.json", []byte(`{"dimension":3,"records":[]}`), 0o600))
		_, err := newFileStore(&Config{Path: "/idx.json", Dimension: 2, Fs: fsys})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not match")
	})

	t.Run("Should write a versioned snapshot ordered by id", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		store, err := newFileStore(&Config{Path: "/s.json", Dimension: 1, Fs: fsys})
		require.NoError(t, err)
		require.NoError(t, store.Upsert(ctx, []Record{
			{ID: "b_chunk_0", Embedding: []float32{1}},
			{ID: "a_chunk_0", Embedding: []float32{1}},
		}))
		data, err := afero.ReadFile(fsys, "/s.json")
		require.NoError(t, err)
		var snap snapshot
		require.NoError(t, json.Unmarshal(data, &snap))
		assert.Equal(t, snapshotVersion, snap.Version)
		require.Len(t, snap.Records, 2)
		assert.Equal(t, "a_chunk_0", snap.Records[0].ID)
	})

	t.Run("Should refuse snapshots from a newer version", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fsys, "/n.json", []byte(`{"version":9,"dimension":2}`), 0o600))
		_, err := newFileStore(&Config{Path: "/n.json", Dimension: 2, Fs: fsys})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "newer than supported")
	})
}
