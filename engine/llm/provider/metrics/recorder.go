package providermetrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	monitoringmetrics "github.com/compozy/woodsage/engine/infra/monitoring/metrics"
)

const subsystem = "llm"

// Recorder captures completion-provider telemetry.
type Recorder interface {
	RecordRequest(ctx context.Context, provider, model string, duration time.Duration, outcome string)
	RecordError(ctx context.Context, provider, model, code string)
}

type recorder struct {
	requestDuration metric.Float64Histogram
	requestCount    metric.Int64Counter
	errorCount      metric.Int64Counter
}

// NewRecorder registers the provider instruments on meter.
func NewRecorder(meter metric.Meter) (Recorder, error) {
	if meter == nil {
		return Nop(), nil
	}
	duration, err := meter.Float64Histogram(
		monitoringmetrics.MetricNameWithSubsystem(subsystem, "request_duration_seconds"),
		metric.WithDescription("Latency of completion provider calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(monitoringmetrics.ModelLatencyBuckets...),
	)
	if err != nil {
		return nil, err
	}
	count, err := meter.Int64Counter(
		monitoringmetrics.MetricNameWithSubsystem(subsystem, "requests_total"),
		metric.WithDescription("Completion provider calls by outcome"),
	)
	if err != nil {
		return nil, err
	}
	errorsTotal, err := meter.Int64Counter(
		monitoringmetrics.MetricNameWithSubsystem(subsystem, "errors_total"),
		metric.WithDescription("Completion provider failures by error code"),
	)
	if err != nil {
		return nil, err
	}
	return &recorder{requestDuration: duration, requestCount: count, errorCount: errorsTotal}, nil
}

func (r *recorder) RecordRequest(ctx context.Context, provider, model string, duration time.Duration, outcome string) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", model),
		attribute.String("outcome", outcome),
	)
	r.requestDuration.Record(ctx, duration.Seconds(), attrs)
	r.requestCount.Add(ctx, 1, attrs)
}

func (r *recorder) RecordError(ctx context.Context, provider, model, code string) {
	r.errorCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", model),
		attribute.String("code", code),
	))
}

type nopRecorder struct{}

func Nop() Recorder { return nopRecorder{} }

func (nopRecorder) RecordRequest(context.Context, string, string, time.Duration, string) {}
func (nopRecorder) RecordError(context.Context, string, string, string)                  {}
