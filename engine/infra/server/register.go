package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/compozy/woodsage/engine/infra/server/routes"
)

// RegisterRoutes mounts the versioned API on r. Generation routes run under timeout.
func RegisterRoutes(r gin.IRouter, timeout time.Duration) {
	slow := r.Group("", requestTimeout(timeout))
	slow.POST(routes.Ask(), askHandler)
	slow.POST(routes.Documents(), ingestHandler)
	slow.POST(routes.Products()+"/match", matchProductsHandler)

	products := r.Group(routes.Products())
	products.GET("", listProductsHandler)
	products.POST("", createProductHandler)
	products.GET("/:id", getProductHandler)
	products.PUT("/:id", updateProductHandler)
	products.DELETE("/:id", deleteProductHandler)

	r.GET(routes.Index()+"/stats", indexStatsHandler)
	r.GET(routes.Questions(), questionsHandler)
}

func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
