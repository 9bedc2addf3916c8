package answer

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/compozy/woodsage/engine/infra/monitoring/metrics"
)

const subsystem = "answer"

var (
	metricsOnce     sync.Once
	metricsInitErr  error
	stateDuration   metric.Float64Histogram
	runCounter      metric.Int64Counter
	degradedCounter metric.Int64Counter
)

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("woodsage.answer")
		var err error
		stateDuration, err = meter.Float64Histogram(
			metrics.MetricNameWithSubsystem(subsystem, "state_duration_seconds"),
			metric.WithDescription("Time spent in each synthesis state"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(metrics.ModelLatencyBuckets...),
		)
		if err != nil {
			metricsInitErr = err
			return
		}
		runCounter, err = meter.Int64Counter(
			metrics.MetricNameWithSubsystem(subsystem, "runs_total"),
			metric.WithDescription("Answer runs by terminal outcome"),
		)
		if err != nil {
			metricsInitErr = err
			return
		}
		degradedCounter, err = meter.Int64Counter(
			metrics.MetricNameWithSubsystem(subsystem, "degraded_total"),
			metric.WithDescription("Stages that degraded instead of failing"),
		)
		metricsInitErr = err
	})
	return metricsInitErr
}

func recordState(ctx context.Context, state State, d time.Duration) {
	if ensureMetrics() != nil {
		return
	}
	stateDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("state", string(state))))
}

func recordRun(ctx context.Context, outcome string) {
	if ensureMetrics() != nil {
		return
	}
	runCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func recordDegraded(ctx context.Context, stage string) {
	if ensureMetrics() != nil {
		return
	}
	degradedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}
