package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	monitoringmetrics "github.com/compozy/woodsage/engine/infra/monitoring/metrics"
)

const meterName = "woodsage.catalog.postgres"

type poolInstruments struct {
	meter         metric.Meter
	total         metric.Int64ObservableGauge
	acquired      metric.Int64ObservableGauge
	idle          metric.Int64ObservableGauge
	maxConns      metric.Int64ObservableGauge
	emptyAcquires metric.Int64ObservableCounter
	acquireWait   metric.Float64ObservableCounter
}

var (
	instrumentsOnce sync.Once
	instruments     *poolInstruments
	instrumentsErr  error
)

func loadInstruments() (*poolInstruments, error) {
	instrumentsOnce.Do(func() {
		instruments, instrumentsErr = newPoolInstruments(otel.GetMeterProvider().Meter(meterName))
	})
	return instruments, instrumentsErr
}

func newPoolInstruments(meter metric.Meter) (*poolInstruments, error) {
	name := func(n string) string { return monitoringmetrics.MetricNameWithSubsystem("catalog_pool", n) }
	in := &poolInstruments{meter: meter}
	var err error
	gauges := []struct {
		dst  *metric.Int64ObservableGauge
		name string
		desc string
	}{
		{&in.total, "connections_open", "Open catalog connections"},
		{&in.acquired, "connections_in_use", "Catalog connections checked out"},
		{&in.idle, "connections_idle", "Idle catalog connections"},
		{&in.maxConns, "max_connections", "Configured catalog pool size"},
	}
	for _, g := range gauges {
		if *g.dst, err = meter.Int64ObservableGauge(name(g.name), metric.WithDescription(g.desc)); err != nil {
			return nil, err
		}
	}
	in.emptyAcquires, err = meter.Int64ObservableCounter(
		name("empty_acquires_total"),
		metric.WithDescription("Acquires that had to wait for a free connection"),
	)
	if err != nil {
		return nil, err
	}
	in.acquireWait, err = meter.Float64ObservableCounter(
		name("acquire_wait_seconds_total"),
		metric.WithDescription("Cumulative time spent waiting for a free connection"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return in, nil
}

// observePool reports pool.Stat on every collection until the returned func runs.
func observePool(pool *pgxpool.Pool, label string) (func(), error) {
	in, err := loadInstruments()
	if err != nil {
		return nil, fmt.Errorf("postgres: init metrics: %w", err)
	}
	attrs := metric.WithAttributes(attribute.String("pool", label))
	reg, err := in.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		st := pool.Stat()
		o.ObserveInt64(in.total, int64(st.TotalConns()), attrs)
		o.ObserveInt64(in.acquired, int64(st.AcquiredConns()), attrs)
		o.ObserveInt64(in.idle, int64(st.IdleConns()), attrs)
		o.ObserveInt64(in.maxConns, int64(st.MaxConns()), attrs)
		o.ObserveInt64(in.emptyAcquires, st.EmptyAcquireCount(), attrs)
		o.ObserveFloat64(in.acquireWait, st.EmptyAcquireWaitTime().Seconds(), attrs)
		return nil
	}, in.total, in.acquired, in.idle, in.maxConns, in.emptyAcquires, in.acquireWait)
	if err != nil {
		return nil, fmt.Errorf("postgres: register metrics callback: %w", err)
	}
	return func() { _ = reg.Unregister() }, nil
}

// poolLabel is host-port-database, lowercased with anything unusual replaced by '_'.
func poolLabel(cfg *pgxpool.Config) string {
	cc := cfg.ConnConfig
	raw := fmt.Sprintf("%s-%d-%s", cc.Host, cc.Port, cc.Database)
	label := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, strings.ToLower(raw))
	label = strings.Trim(label, "-_")
	if label == "" {
		return "default"
	}
	return label
}
