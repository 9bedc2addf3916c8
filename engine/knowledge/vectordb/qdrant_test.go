package vectordb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type qdrantRecorder struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]map[string]any
}

func (r *qdrantRecorder) record(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := req.Method + " " + req.URL.Path
	r.requests = append(r.requests, key)
	if req.Body == nil {
		return
	}
	var body map[string]any
	if err := json.NewDecoder(req.Body).Decode(&body); err == nil {
		r.bodies[key] = body
	}
}

func newQdrantServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *qdrantRecorder) {
	t.Helper()
	rec := &qdrantRecorder{bodies: make(map[string]map[string]any)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestQdrantStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Should create the collection when missing", func(t *testing.T) {
		srv, rec := newQdrantServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"status":{"error":"not found"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
		})
		_, err := newQdrantStore(ctx, &Config{ID: "q", DSN: srv.URL, Collection: "videos", Dimension: 3, EnsureIndex: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"GET /collections/videos", "PUT /collections/videos"}, rec.requests)
		vectors := rec.bodies["PUT /collections/videos"]["vectors"].(map[string]any)
		assert.Equal(t, float64(3), vectors["size"])
		assert.Equal(t, "Cosine", vectors["distance"])
	})

	t.Run("Should upsert points with deterministic ids", func(t *testing.T) {
		srv, rec := newQdrantServer(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"result":{},"status":"ok"}`))
		})
		store, err := newQdrantStore(ctx, &Config{DSN: srv.URL, Collection: "videos", Dimension: 2})
		require.NoError(t, err)
		require.NoError(t, store.Upsert(ctx, []Record{{ID: "chunk-1", Text: "hello", Embedding: []float32{1, 0}}}))
		body := rec.bodies["PUT /collections/videos/points"]
		require.NotNil(t, body)
		points := body["points"].([]any)
		point := points[0].(map[string]any)
		assert.Equal(t, qdrantPointID("chunk-1"), point["id"])
		payload := point["payload"].(map[string]any)
		assert.Equal(t, "chunk-1", payload[qdrantIDField])
		assert.Equal(t, "hello", payload[qdrantTextField])
	})

	t.Run("Should map search results back to record ids", func(t *testing.T) {
		srv, _ := newQdrantServer(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"result":[
				{"id":"x","score":0.4,"payload":{"record_id":"b","text":"bee"}},
				{"id":"y","score":0.9,"payload":{"record_id":"a","text":"ay","title":"T"}}
			]}`))
		})
		store, err := newQdrantStore(ctx, &Config{DSN: srv.URL, Collection: "videos", Dimension: 2})
		require.NoError(t, err)
		matches, err := store.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 2, MinScore: 0.5})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "a", matches[0].ID)
		assert.Equal(t, "ay", matches[0].Text)
		assert.Equal(t, map[string]any{"title": "T"}, matches[0].Metadata)
	})

	t.Run("Should keep negative scores without a minimum score", func(t *testing.T) {
		srv, _ := newQdrantServer(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"result":[
				{"id":"x","score":0.4,"payload":{"record_id":"b","text":"bee"}},
				{"id":"y","score":-0.3,"payload":{"record_id":"c","text":"sea"}}
			]}`))
		})
		store, err := newQdrantStore(ctx, &Config{DSN: srv.URL, Collection: "videos", Dimension: 2})
		require.NoError(t, err)
		matches, err := store.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 2})
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "c", matches[1].ID)
	})

	t.Run("Should return nil when fetching a missing point", func(t *testing.T) {
		srv, _ := newQdrantServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":{"error":"not found"}}`))
		})
		store, err := newQdrantStore(ctx, &Config{DSN: srv.URL, Collection: "videos", Dimension: 2})
		require.NoError(t, err)
		rec, err := store.Fetch(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("Should read the point count", func(t *testing.T) {
		srv, _ := newQdrantServer(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"result":{"points_count":42}}`))
		})
		store, err := newQdrantStore(ctx, &Config{DSN: srv.URL, Collection: "videos", Dimension: 2})
		require.NoError(t, err)
		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(42), stats.TotalCount)
		assert.Equal(t, ProviderQdrant, stats.Provider)
	})

	t.Run("Should surface server errors", func(t *testing.T) {
		srv, _ := newQdrantServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"status":{"error":"boom"}}`))
		})
		store, err := newQdrantStore(ctx, &Config{DSN: srv.URL, Collection: "videos", Dimension: 2})
		require.NoError(t, err)
		err = store.Delete(ctx, Filter{IDs: []string{"a"}})
		require.ErrorIs(t, err, errQdrantStatus)
	})
}
