package vectordb

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	monitoringmetrics "github.com/compozy/woodsage/engine/infra/monitoring/metrics"
)

type storeInstruments struct {
	latency  metric.Float64Histogram
	results  metric.Int64Histogram
	topScore metric.Float64Histogram
	written  metric.Int64Counter
	failures metric.Int64Counter
}

// loadInstruments binds to the global meter provider on first use, which the
// server installs before any store is opened.
var loadInstruments = sync.OnceValues(func() (*storeInstruments, error) {
	return newStoreInstruments(otel.GetMeterProvider().Meter("woodsage.knowledge.vector"))
})

func newStoreInstruments(meter metric.Meter) (*storeInstruments, error) {
	name := func(n string) string { return monitoringmetrics.MetricNameWithSubsystem("vectordb", n) }
	var (
		in  storeInstruments
		err error
	)
	if in.latency, err = meter.Float64Histogram(name("operation_seconds"),
		metric.WithDescription("Vector store call latency by operation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(monitoringmetrics.LatencyBuckets...),
	); err != nil {
		return nil, err
	}
	if in.results, err = meter.Int64Histogram(name("similarity_results_per_search"),
		metric.WithDescription("Passages returned per similarity search"),
		metric.WithExplicitBucketBoundaries(0, 1, 3, 5, 10, 25, 50),
	); err != nil {
		return nil, err
	}
	if in.topScore, err = meter.Float64Histogram(name("similarity_score_top"),
		metric.WithDescription("Score of the best passage per search"),
		metric.WithExplicitBucketBoundaries(0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0),
	); err != nil {
		return nil, err
	}
	if in.written, err = meter.Int64Counter(name("records_upserted_total"),
		metric.WithDescription("Chunk and product vectors written"),
	); err != nil {
		return nil, err
	}
	if in.failures, err = meter.Int64Counter(name("store_errors_total"),
		metric.WithDescription("Failed vector store calls by operation"),
	); err != nil {
		return nil, err
	}
	return &in, nil
}

// instrumentedStore wraps every backend New returns. Without instruments it
// is a plain pass-through.
type instrumentedStore struct {
	Store
	in    *storeInstruments
	attrs attribute.Set
}

func instrument(store Store, cfg *Config) Store {
	in, _ := loadInstruments()
	return &instrumentedStore{
		Store: store,
		in:    in,
		attrs: attribute.NewSet(
			attribute.String("provider", string(cfg.Provider)),
			attribute.String("vector_db_id", cfg.ID),
		),
	}
}

// observe records latency for op and counts a failure when err is set.
func (s *instrumentedStore) observe(ctx context.Context, op string, start time.Time, err error) {
	if s.in == nil {
		return
	}
	opAttrs := metric.WithAttributeSet(attribute.NewSet(append(s.attrs.ToSlice(), attribute.String("operation", op))...))
	s.in.latency.Record(ctx, time.Since(start).Seconds(), opAttrs)
	if err != nil {
		s.in.failures.Add(ctx, 1, opAttrs)
	}
}

func (s *instrumentedStore) Upsert(ctx context.Context, records []Record) error {
	start := time.Now()
	err := s.Store.Upsert(ctx, records)
	s.observe(ctx, "upsert", start, err)
	if err == nil && s.in != nil && len(records) > 0 {
		s.in.written.Add(ctx, int64(len(records)), metric.WithAttributeSet(s.attrs))
	}
	return err
}

func (s *instrumentedStore) Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	start := time.Now()
	matches, err := s.Store.Search(ctx, query, opts)
	s.observe(ctx, "search", start, err)
	if err != nil {
		return nil, err
	}
	if s.in != nil {
		s.in.results.Record(ctx, int64(len(matches)), metric.WithAttributeSet(s.attrs))
		if len(matches) > 0 {
			s.in.topScore.Record(ctx, matches[0].Score, metric.WithAttributeSet(s.attrs))
		}
	}
	return matches, nil
}

func (s *instrumentedStore) Fetch(ctx context.Context, id string) (*Record, error) {
	start := time.Now()
	rec, err := s.Store.Fetch(ctx, id)
	s.observe(ctx, "fetch", start, err)
	return rec, err
}

func (s *instrumentedStore) Delete(ctx context.Context, filter Filter) error {
	start := time.Now()
	err := s.Store.Delete(ctx, filter)
	s.observe(ctx, "delete", start, err)
	return err
}
