package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/compozy/woodsage/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const fallbackRedisPingTimeout = 10 * time.Second

// Config describes a Redis connection shared by the vector store and the rate limiter.
type Config struct {
	URL         string
	Password    string
	PoolSize    int
	PingTimeout time.Duration
	// RESP3 is required by vector set replies.
	RESP3      bool
	TLSEnabled bool
	// Component labels the connection in logs.
	Component string
}

// Connect parses cfg.URL, dials and pings the server.
func Connect(ctx context.Context, cfg *Config) (*redis.Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	opt, err := buildOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = fallbackRedisPingTimeout
	}
	if err := ping(ctx, client, timeout); err != nil {
		_ = client.Close()
		return nil, err
	}
	logger.FromContext(ctx).Info("Redis connection established",
		"component", cfg.Component,
		"addr", opt.Addr,
		"db", opt.DB,
		"pool_size", opt.PoolSize,
		"tls_enabled", opt.TLSConfig != nil,
	)
	return client, nil
}

func buildOptions(cfg *Config) (*redis.Options, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("parsing Redis URL: %w", err)
	}
	if opt.Password == "" && cfg.Password != "" {
		opt.Password = cfg.Password
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	if cfg.RESP3 {
		opt.Protocol = 3
		opt.UnstableResp3 = true
	}
	if cfg.TLSEnabled && opt.TLSConfig == nil {
		host := opt.Addr
		if i := strings.LastIndex(host, ":"); i > 0 {
			host = host[:i]
		}
		opt.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}
	return opt, nil
}

func ping(ctx context.Context, client *redis.Client, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("pinging Redis server (timeout=%s): %w", timeout, err)
	}
	return nil
}
