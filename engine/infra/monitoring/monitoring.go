package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/compozy/woodsage/engine/infra/monitoring/middleware"
	"github.com/compozy/woodsage/pkg/logger"
)

const meterName = "woodsage"

// Service owns the meter provider behind the Prometheus endpoint. A disabled
// Service hands out a no-op meter and answers 503 on the exporter.
type Service struct {
	config   *Config
	meter    metric.Meter
	provider *sdkmetric.MeterProvider
	handler  http.Handler
	system   metric.Registration
	initErr  error
}

func disabled(cfg *Config, initErr error) *Service {
	return &Service{config: cfg, meter: noop.NewMeterProvider().Meter(meterName), initErr: initErr}
}

func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)
	if !cfg.Enabled {
		log.Debug("Monitoring disabled, using no-op meter")
		return disabled(cfg, nil), nil
	}
	registry := prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	s := &Service{
		config:   cfg,
		meter:    provider.Meter(meterName),
		provider: provider,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	if s.system, err = registerSystemMetrics(s.meter); err != nil {
		log.Warn("System metrics unavailable", "error", err)
	}
	log.Info("Monitoring service initialized", "path", cfg.Path)
	return s, nil
}

// NewServiceWithFallback never fails: a bad config yields a disabled Service
// whose InitializationError explains why.
func NewServiceWithFallback(ctx context.Context, cfg *Config) *Service {
	s, err := NewService(ctx, cfg)
	if err == nil {
		return s
	}
	logger.FromContext(ctx).Error("Failed to initialize monitoring, using no-op implementation", "error", err)
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return disabled(cfg, err)
}

func (s *Service) Meter() metric.Meter { return s.meter }

func (s *Service) Path() string { return s.config.Path }

func (s *Service) IsInitialized() bool { return s.provider != nil }

func (s *Service) InitializationError() error { return s.initErr }

func (s *Service) GinMiddleware() gin.HandlerFunc {
	if !s.IsInitialized() {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.HTTPMetrics(s.meter)
}

func (s *Service) ExporterHandler() http.Handler {
	if s.handler != nil {
		return s.handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Monitoring service not initialized", http.StatusServiceUnavailable)
	})
}

// SetAsGlobal routes package-level instruments (LLM, vector store, catalog
// pool) through this provider.
func (s *Service) SetAsGlobal() {
	if s.provider != nil {
		otel.SetMeterProvider(s.provider)
	}
}

func (s *Service) Shutdown(ctx context.Context) error {
	if s.provider == nil {
		return nil
	}
	var errs []error
	if s.system != nil {
		errs = append(errs, s.system.Unregister())
	}
	errs = append(errs, s.provider.Shutdown(ctx))
	return errors.Join(errs...)
}
