package ratelimit

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/compozy/woodsage/engine/infra/monitoring/metrics"
	"github.com/compozy/woodsage/pkg/logger"
)

const (
	headerLimit     = "X-RateLimit-Limit"
	headerRemaining = "X-RateLimit-Remaining"
	headerReset     = "X-RateLimit-Reset"
)

// Manager holds one limiter per configured route plus the global one.
type Manager struct {
	config  *Config
	global  *limiter.Limiter
	routes  map[string]*limiter.Limiter
	blocked metric.Int64Counter
}

// NewManager builds the limiters. A nil client keeps counters in process.
func NewManager(cfg *Config, client *redis.Client) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := newStore(cfg, client)
	if err != nil {
		return nil, err
	}
	blocked, err := otel.GetMeterProvider().Meter("woodsage.ratelimit").Int64Counter(
		metrics.MetricNameWithSubsystem("http", "rate_limit_blocks_total"),
		metric.WithDescription("Requests rejected with 429, by limited route"),
	)
	if err != nil {
		return nil, fmt.Errorf("init rate limit metrics: %w", err)
	}
	m := &Manager{
		config:  cfg,
		global:  limiter.New(store, cfg.GlobalRate.ToLimiterRate()),
		routes:  make(map[string]*limiter.Limiter, len(cfg.RouteRates)),
		blocked: blocked,
	}
	for route, rate := range cfg.RouteRates {
		m.routes[route] = limiter.New(store, rate.ToLimiterRate())
	}
	return m, nil
}

func newStore(cfg *Config, client *redis.Client) (limiter.Store, error) {
	opts := limiter.StoreOptions{Prefix: cfg.Prefix, MaxRetry: cfg.MaxRetry}
	if client == nil {
		return memory.NewStoreWithOptions(opts), nil
	}
	store, err := sredis.NewStoreWithOptions(client, opts)
	if err != nil {
		return nil, fmt.Errorf("create redis rate limit store: %w", err)
	}
	return store, nil
}

// Middleware rejects clients over their quota with 429.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if m.excluded(path) {
			c.Next()
			return
		}
		lim, route := m.limiterFor(path)
		key := route + ":" + c.ClientIP()
		lctx, err := lim.Get(c.Request.Context(), key)
		if err != nil {
			// Fail open when the counter store errors.
			logger.FromContext(c.Request.Context()).Warn("Rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		c.Header(headerLimit, strconv.FormatInt(lctx.Limit, 10))
		c.Header(headerRemaining, strconv.FormatInt(lctx.Remaining, 10))
		c.Header(headerReset, strconv.FormatInt(lctx.Reset, 10))
		if lctx.Reached {
			m.blocked.Add(c.Request.Context(), 1, metric.WithAttributes(attribute.String("route", route)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMITED",
					"message": "too many requests",
				},
			})
			return
		}
		c.Next()
	}
}

func (m *Manager) excluded(path string) bool {
	return slices.ContainsFunc(m.config.ExcludedPaths, func(p string) bool {
		return path == p || strings.HasPrefix(path, p+"/")
	})
}

// limiterFor picks the longest configured route prefix of path.
func (m *Manager) limiterFor(path string) (*limiter.Limiter, string) {
	best := ""
	for route := range m.routes {
		if (path == route || strings.HasPrefix(path, route+"/")) && len(route) > len(best) {
			best = route
		}
	}
	if best == "" {
		return m.global, "global"
	}
	return m.routes[best], best
}
