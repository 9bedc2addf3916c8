package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/compozy/woodsage/engine/app"
	"github.com/compozy/woodsage/engine/infra/cache"
	"github.com/compozy/woodsage/engine/infra/monitoring"
	"github.com/compozy/woodsage/pkg/config"
	"github.com/compozy/woodsage/pkg/logger"
)

const (
	serverShutdownTimeout     = 5 * time.Second
	monitoringShutdownTimeout = 5 * time.Second
	httpReadTimeout           = 15 * time.Second
	httpIdleTimeout           = 60 * time.Second
	hostAny                   = "0.0.0.0"
	hostLoopback              = "127.0.0.1"
)

// Server exposes a Runtime over HTTP.
type Server struct {
	config      *config.Config
	runtime     *app.Runtime
	monitoring  *monitoring.Service
	redisClient *redis.Client
	router      *gin.Engine
	httpServer  *http.Server
}

// NewServer builds the router. mon may be nil.
func NewServer(ctx context.Context, rt *app.Runtime, mon *monitoring.Service) (*Server, error) {
	if rt == nil {
		return nil, fmt.Errorf("runtime is required")
	}
	s := &Server{config: rt.Config, runtime: rt, monitoring: mon}
	if err := s.connectRateLimitStore(ctx); err != nil {
		return nil, err
	}
	if err := s.buildRouter(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to build router: %w", err), s.closeRedis())
	}
	return s, nil
}

func (s *Server) connectRateLimitStore(ctx context.Context) error {
	rl := s.config.Server.RateLimit
	if !rl.Enabled || rl.RedisURL.Value() == "" {
		return nil
	}
	client, err := cache.Connect(ctx, &cache.Config{URL: rl.RedisURL.Value(), Component: "rate_limit"})
	if err != nil {
		return fmt.Errorf("connect rate limit redis: %w", err)
	}
	s.redisClient = client
	return nil
}

func (s *Server) closeRedis() error {
	if s.redisClient == nil {
		return nil
	}
	return s.redisClient.Close()
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Address() string {
	return net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	s.httpServer = &http.Server{
		Addr:              s.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: httpReadTimeout,
		ReadTimeout:       httpReadTimeout,
		WriteTimeout:      s.writeTimeout(),
		IdleTimeout:       httpIdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.Info("HTTP server started", "address", fmt.Sprintf("http://%s:%d", friendlyHost(s.config.Server.Host), s.config.Server.Port))
	select {
	case err := <-errCh:
		if err != nil {
			return errors.Join(fmt.Errorf("server failed: %w", err), s.shutdownDeps())
		}
	case <-ctx.Done():
		log.Debug("Received shutdown signal, initiating graceful shutdown")
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverShutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		err = fmt.Errorf("server shutdown failed: %w", err)
	}
	err = errors.Join(err, s.shutdownDeps())
	if err == nil {
		log.Info("Server shutdown completed successfully")
	}
	return err
}

// writeTimeout leaves room for a full answer synthesis.
func (s *Server) writeTimeout() time.Duration {
	if t := s.config.Server.Timeout; t > 0 {
		return t + time.Second
	}
	return 0
}

func (s *Server) shutdownDeps() error {
	var errs []error
	if s.monitoring != nil {
		ctx, cancel := context.WithTimeout(context.Background(), monitoringShutdownTimeout)
		defer cancel()
		errs = append(errs, s.monitoring.Shutdown(ctx))
	}
	errs = append(errs, s.closeRedis())
	return errors.Join(errs...)
}

func friendlyHost(h string) string {
	if h == hostAny || h == "::" || h == "" {
		return hostLoopback
	}
	return h
}
