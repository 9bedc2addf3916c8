package monitoring

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/compozy/woodsage/engine/infra/monitoring/metrics"
	"github.com/compozy/woodsage/pkg/version"
)

// registerSystemMetrics exposes woodsage_build_info (always 1, labelled with
// the build) and woodsage_uptime_seconds measured from the call.
func registerSystemMetrics(meter metric.Meter) (metric.Registration, error) {
	buildInfo, err := meter.Float64ObservableGauge(
		metrics.MetricName("build_info"),
		metric.WithDescription("Build information (value=1)"),
	)
	if err != nil {
		return nil, fmt.Errorf("build info gauge: %w", err)
	}
	uptime, err := meter.Float64ObservableGauge(
		metrics.MetricName("uptime_seconds"),
		metric.WithDescription("Seconds since the server started"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("uptime gauge: %w", err)
	}
	info := version.Get()
	labels := metric.WithAttributes(
		attribute.String("version", info.Version),
		attribute.String("commit_hash", info.CommitHash),
		attribute.String("go_version", info.GoVersion),
	)
	started := time.Now()
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveFloat64(buildInfo, 1, labels)
		o.ObserveFloat64(uptime, time.Since(started).Seconds())
		return nil
	}, buildInfo, uptime)
}
