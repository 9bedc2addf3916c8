package server

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/compozy/woodsage/engine/infra/server/appstate"
	"github.com/compozy/woodsage/engine/infra/server/middleware/ratelimit"
	"github.com/compozy/woodsage/engine/infra/server/middleware/size"
	"github.com/compozy/woodsage/engine/infra/server/router"
	"github.com/compozy/woodsage/engine/infra/server/routes"
	"github.com/compozy/woodsage/pkg/logger"
)

func (s *Server) buildRouter(ctx context.Context) error {
	log := logger.FromContext(ctx)
	state, err := appstate.NewState(s.runtime)
	if err != nil {
		return err
	}
	r := gin.New()
	r.Use(gin.Recovery())
	monitoringOn := s.monitoring != nil && s.monitoring.IsInitialized()
	if monitoringOn {
		r.Use(s.monitoring.GinMiddleware())
	}
	r.Use(LoggerMiddleware(log))
	if s.config.Server.CORSEnabled {
		r.Use(CORSMiddleware())
	}
	if rl := s.config.Server.RateLimit; rl.Enabled {
		metricsPath := ""
		if s.monitoring != nil {
			metricsPath = s.monitoring.Path()
		}
		manager, err := ratelimit.NewManager(ratelimit.FromAppConfig(rl, metricsPath), s.redisClient)
		if err != nil {
			return err
		}
		r.Use(manager.Middleware())
		driver := "memory"
		if s.redisClient != nil {
			driver = "redis"
		}
		log.Info("Rate limiter initialized", "driver", driver, "limit", rl.Limit, "period", rl.Period)
	}
	if limit := s.config.Server.MaxBodyBytes; limit > 0 {
		r.Use(size.BodySizeLimiter(limit))
	}
	r.Use(appstate.StateMiddleware(state))
	r.Use(router.ErrorHandler())
	if monitoringOn {
		r.GET(s.monitoring.Path(), gin.WrapH(s.monitoring.ExporterHandler()))
	}
	r.GET(routes.Health(), healthHandler)
	RegisterRoutes(r, s.config.Server.Timeout)
	s.router = r
	log.Debug("Completed route registration", "base", routes.Base(), "monitoring", monitoringOn)
	return nil
}
