package vectordb

import (
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisHelpers(t *testing.T) {
	t.Run("Should connect with RESP3 and derive the set key", func(t *testing.T) {
		mr := miniredis.RunT(t)
		store, err := newRedisStore(t.Context(), &Config{DSN: "redis://" + mr.Addr() + "/2", Collection: "Wood Videos"})
		require.NoError(t, err)
		defer store.client.Close()
		assert.Equal(t, 3, store.client.Options().Protocol)
		assert.Equal(t, 2, store.client.Options().DB)
		assert.Equal(t, "wood_videos", store.setKey)
	})

	t.Run("Should reject an invalid dsn", func(t *testing.T) {
		_, err := newRedisStore(t.Context(), &Config{DSN: "://nope"})
		require.Error(t, err)
	})

	t.Run("Should derive the vector set key", func(t *testing.T) {
		assert.Equal(t, "wood_videos", determineRedisKey(&Config{Collection: "Wood Videos"}))
		assert.Equal(t, "idx", determineRedisKey(&Config{ID: "idx"}))
		assert.Equal(t, redisDefaultVectorKey, determineRedisKey(&Config{ID: "!!!"}))
	})

	t.Run("Should build a sorted escaped filter expression", func(t *testing.T) {
		filter := buildRedisFilter(map[string]string{"title": `say "hi"`, "kind": "video"})
		assert.Equal(t, `.f_kind == "video" && .f_title == "say \"hi\""`, filter)
	})

	t.Run("Should round trip attributes", func(t *testing.T) {
		doc := encodeRedisAttrs(&Record{ID: "a", Text: "alpha", Metadata: map[string]any{"Title": "Shop", "chunk_index": 2}})
		assert.Equal(t, "Shop", doc["f_title"])
		assert.Equal(t, "2", doc["f_chunk_index"])
		payload, err := json.Marshal(doc)
		require.NoError(t, err)
		attrs, err := decodeRedisAttrs(string(payload))
		require.NoError(t, err)
		assert.Equal(t, "alpha", attrs.Text)
		assert.Equal(t, "Shop", attrs.Meta["Title"])
	})

	t.Run("Should tolerate empty attribute payloads", func(t *testing.T) {
		attrs, err := decodeRedisAttrs("  ")
		require.NoError(t, err)
		assert.Empty(t, attrs.Text)
		assert.NotNil(t, attrs.Meta)
	})

	t.Run("Should normalize identifiers", func(t *testing.T) {
		assert.Equal(t, "shop:videos", redisIdent(" Shop:Videos ", ":-_"))
		assert.Equal(t, "f_unknown", filterField("!!"))
	})

	t.Run("Should parse embedding replies", func(t *testing.T) {
		values, err := parseEmbedding([]any{float64(0.5), "0.25"})
		require.NoError(t, err)
		assert.Equal(t, []float32{0.5, 0.25}, values)
	})
}
