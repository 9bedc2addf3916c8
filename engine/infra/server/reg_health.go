package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/compozy/woodsage/engine/infra/server/router"
	"github.com/compozy/woodsage/pkg/logger"
	"github.com/compozy/woodsage/pkg/version"
)

// healthHandler reports 503 when the index or the catalog cannot be read.
func healthHandler(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	ctx := c.Request.Context()
	rt := state.Runtime
	healthy := true
	index := gin.H{"ready": true}
	if stats, err := rt.Index.Stats(ctx); err != nil {
		logger.FromContext(ctx).Warn("Health check: vector index unavailable", "error", err)
		healthy = false
		index = gin.H{"ready": false, "error": err.Error()}
	} else {
		index["provider"] = stats.Provider
		index["records"] = stats.TotalCount
	}
	catalogStatus := gin.H{"ready": true}
	if products, err := rt.Catalog.List(ctx); err != nil {
		logger.FromContext(ctx).Warn("Health check: catalog unavailable", "error", err)
		healthy = false
		catalogStatus = gin.H{"ready": false, "error": err.Error()}
	} else {
		catalogStatus["products"] = len(products)
	}
	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  status,
		"version": version.GetVersion(),
		"index":   index,
		"catalog": catalogStatus,
		"models":  gin.H{"ready": rt.Synthesizer != nil},
	})
}
