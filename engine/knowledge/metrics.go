package knowledge

import (
	"context"
	"sync"
	"time"

	"github.com/compozy/woodsage/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const subsystem = "knowledge"

var (
	metricsOnce           sync.Once
	metricsMu             sync.Mutex
	metricsInitErr        error
	ingestDurationHist    metric.Float64Histogram
	chunkCounter          metric.Int64Counter
	queryLatencyHist      metric.Float64Histogram
	retrievalEmptyCounter metric.Int64Counter
	embedLatencyHist      metric.Float64Histogram
	embedAttemptCounter   metric.Int64Counter
	embedFailureCounter   metric.Int64Counter
	embedCacheCounter     metric.Int64Counter
)

// RecordIngestDuration records the wall time of one ingestion run.
func RecordIngestDuration(ctx context.Context, strategy string, d time.Duration) {
	if err := ensureMetrics(); err != nil || ingestDurationHist == nil {
		return
	}
	ingestDurationHist.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("strategy", strategy)))
}

// RecordIngestChunks counts chunks by outcome: persisted or skipped.
func RecordIngestChunks(ctx context.Context, outcome string, chunks int) {
	if chunks <= 0 {
		return
	}
	if err := ensureMetrics(); err != nil || chunkCounter == nil {
		return
	}
	chunkCounter.Add(ctx, int64(chunks), metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordQueryLatency(ctx context.Context, d time.Duration) {
	if err := ensureMetrics(); err != nil || queryLatencyHist == nil {
		return
	}
	queryLatencyHist.Record(ctx, d.Seconds())
}

func RecordRetrievalEmpty(ctx context.Context) {
	if err := ensureMetrics(); err != nil || retrievalEmptyCounter == nil {
		return
	}
	retrievalEmptyCounter.Add(ctx, 1)
}

func RecordEmbedLatency(ctx context.Context, model string, d time.Duration) {
	if err := ensureMetrics(); err != nil || embedLatencyHist == nil {
		return
	}
	embedLatencyHist.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("model", model)))
}

// RecordEmbedAttempt counts provider calls, including retries.
func RecordEmbedAttempt(ctx context.Context, attempt int) {
	if err := ensureMetrics(); err != nil || embedAttemptCounter == nil {
		return
	}
	embedAttemptCounter.Add(ctx, 1, metric.WithAttributes(attribute.Int("attempt", attempt)))
}

// RecordEmbedFailure counts embeddings that exhausted every attempt.
func RecordEmbedFailure(ctx context.Context) {
	if err := ensureMetrics(); err != nil || embedFailureCounter == nil {
		return
	}
	embedFailureCounter.Add(ctx, 1)
}

func RecordEmbedCache(ctx context.Context, hit bool) {
	if err := ensureMetrics(); err != nil || embedCacheCounter == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	embedCacheCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func ResetMetricsForTesting() {
	metricsMu.Lock()
	metricsOnce = sync.Once{}
	metricsInitErr = nil
	ingestDurationHist = nil
	chunkCounter = nil
	queryLatencyHist = nil
	retrievalEmptyCounter = nil
	embedLatencyHist = nil
	embedAttemptCounter = nil
	embedFailureCounter = nil
	embedCacheCounter = nil
	metricsMu.Unlock()
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("woodsage.knowledge")
		if err := initIngestMetrics(meter); err != nil {
			metricsInitErr = err
			return
		}
		if err := initEmbedMetrics(meter); err != nil {
			metricsInitErr = err
		}
	})
	return metricsInitErr
}

func initIngestMetrics(meter metric.Meter) error {
	var err error
	ingestDurationHist, err = meter.Float64Histogram(
		metrics.MetricNameWithSubsystem(subsystem, "ingest_duration_seconds"),
		metric.WithDescription("Latency of document ingestion runs"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(metrics.ModelLatencyBuckets...),
	)
	if err != nil {
		return err
	}
	chunkCounter, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem(subsystem, "chunks_total"),
		metric.WithDescription("Chunks processed during ingestion by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}
	queryLatencyHist, err = meter.Float64Histogram(
		metrics.MetricNameWithSubsystem(subsystem, "query_latency_seconds"),
		metric.WithDescription("Latency of vector retrieval queries"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(metrics.LatencyBuckets...),
	)
	if err != nil {
		return err
	}
	retrievalEmptyCounter, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem(subsystem, "retrieval_empty_total"),
		metric.WithDescription("Retrieval queries that returned no passages"),
		metric.WithUnit("1"),
	)
	return err
}

func initEmbedMetrics(meter metric.Meter) error {
	var err error
	embedLatencyHist, err = meter.Float64Histogram(
		metrics.MetricNameWithSubsystem(subsystem, "embed_latency_seconds"),
		metric.WithDescription("Latency of embedding provider calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(metrics.ModelLatencyBuckets...),
	)
	if err != nil {
		return err
	}
	embedAttemptCounter, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem(subsystem, "embed_attempts_total"),
		metric.WithDescription("Embedding provider calls by attempt number"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}
	embedFailureCounter, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem(subsystem, "embed_unavailable_total"),
		metric.WithDescription("Embeddings abandoned after exhausting retries"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}
	embedCacheCounter, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem(subsystem, "embed_cache_total"),
		metric.WithDescription("Embedding cache lookups by result"),
		metric.WithUnit("1"),
	)
	return err
}
