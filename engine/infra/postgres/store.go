package postgres

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/compozy/woodsage/pkg/logger"
)

const (
	defaultMaxConns       = 8
	defaultConnectTimeout = 5 * time.Second
	defaultPingTimeout    = 3 * time.Second
	healthCheckPeriod     = 30 * time.Second
)

// Store owns the pool behind CatalogRepo.
type Store struct {
	pool        *pgxpool.Pool
	stopStats   func()
	poolLabel   string
	pingTimeout time.Duration
}

// NewStore opens a pool and pings it. A catalog is small and read-mostly, so
// the pool stays narrow unless MaxConns says otherwise.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("postgres: config is required")
	}
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	s := &Store{
		pool:        pool,
		poolLabel:   poolLabel(poolCfg),
		pingTimeout: positiveOr(cfg.PingTimeout, defaultPingTimeout),
	}
	if err := s.HealthCheck(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log := logger.FromContext(ctx)
	stop, err := observePool(pool, s.poolLabel)
	if err != nil {
		log.Warn("Catalog pool metrics disabled", "error", err)
		stop = func() {}
	}
	s.stopStats = stop
	log.Info("Catalog store initialized",
		"catalog_driver", "postgres",
		"pool", s.poolLabel,
		"max_conns", poolCfg.MaxConns,
		"min_conns", poolCfg.MinConns,
	)
	return s, nil
}

func poolConfig(cfg *Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	poolCfg.MaxConns = toInt32(cfg.MaxConns, defaultMaxConns)
	poolCfg.MinConns = min(toInt32(cfg.MinConns, 0), poolCfg.MaxConns)
	poolCfg.HealthCheckPeriod = healthCheckPeriod
	poolCfg.ConnConfig.ConnectTimeout = positiveOr(cfg.ConnectTimeout, defaultConnectTimeout)
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	return poolCfg, nil
}

// Close stops metric collection and closes the pool.
func (s *Store) Close(ctx context.Context) error {
	s.stopStats()
	s.pool.Close()
	logger.FromContext(ctx).Info("Catalog store closed", "pool", s.poolLabel)
	return nil
}

func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, s.pingTimeout)
	defer cancel()
	if err := s.pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

func toInt32(v int, fallback int32) int32 {
	switch {
	case v <= 0:
		return fallback
	case v > math.MaxInt32:
		return math.MaxInt32
	default:
		return int32(v)
	}
}

func positiveOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
