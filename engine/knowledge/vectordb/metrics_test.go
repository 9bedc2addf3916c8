package vectordb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type failingStore struct{ Store }

func (failingStore) Delete(context.Context, Filter) error { return errors.New("down") }

func instrumentedWithReader(t *testing.T, store Store) (*instrumentedStore, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	in, err := newStoreInstruments(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	require.NoError(t, err)
	return &instrumentedStore{
		Store: store,
		in:    in,
		attrs: attribute.NewSet(attribute.String("provider", "memory"), attribute.String("vector_db_id", "kb")),
	}, reader
}

func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && m.Name == name {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestInstrumentedStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Should count written records", func(t *testing.T) {
		store, reader := instrumentedWithReader(t, newMemoryStore(&Config{Dimension: 2}))
		require.NoError(t, store.Upsert(ctx, []Record{
			{ID: "a", Embedding: []float32{1, 0}},
			{ID: "b", Embedding: []float32{0, 1}},
		}))
		_, err := store.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(2), counterTotal(t, reader, "woodsage_vectordb_records_upserted_total"))
		assert.Zero(t, counterTotal(t, reader, "woodsage_vectordb_store_errors_total"))
	})

	t.Run("Should count failed calls", func(t *testing.T) {
		store, reader := instrumentedWithReader(t, failingStore{Store: newMemoryStore(&Config{Dimension: 2})})
		require.Error(t, store.Delete(ctx, Filter{IDs: []string{"a"}}))
		assert.Equal(t, int64(1), counterTotal(t, reader, "woodsage_vectordb_store_errors_total"))
	})

	t.Run("Should pass through without instruments", func(t *testing.T) {
		store := &instrumentedStore{Store: newMemoryStore(&Config{Dimension: 1})}
		require.NoError(t, store.Upsert(ctx, []Record{{ID: "a", Embedding: []float32{1}}}))
		matches, err := store.Search(ctx, []float32{1}, SearchOptions{})
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})
}
