package size

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/woodsage/engine/infra/server/router"
)

func newEngine(limit int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BodySizeLimiter(limit))
	r.POST("/ask", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			router.RespondWithError(c, router.FromError("read body", err))
			return
		}
		c.String(http.StatusOK, string(body))
	})
	return r
}

func TestBodySizeLimiter(t *testing.T) {
	t.Run("Should pass bodies within the limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		newEngine(16).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader("glue-up")))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "glue-up", w.Body.String())
	})

	t.Run("Should reject a declared oversized body", func(t *testing.T) {
		w := httptest.NewRecorder()
		newEngine(4).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader("dovetail jig")))
		require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), router.ErrPayloadTooLargeCode)
	})

	t.Run("Should stop reading an undeclared oversized body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader("dovetail jig"))
		req.ContentLength = -1
		w := httptest.NewRecorder()
		newEngine(4).ServeHTTP(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}
