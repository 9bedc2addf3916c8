package size

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/compozy/woodsage/engine/infra/server/router"
)

// BodySizeLimiter rejects requests that declare a body over limit bytes and
// caps the rest, so a chunked upload fails on the first read past the limit.
func BodySizeLimiter(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			router.RespondWithError(c, router.NewRequestError(
				http.StatusRequestEntityTooLarge,
				"request body too large",
				fmt.Errorf("content length %d exceeds %d bytes", c.Request.ContentLength, limit),
			))
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
