package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/compozy/woodsage/engine/infra/server/router"
	"github.com/compozy/woodsage/engine/knowledge/chunk"
	"github.com/compozy/woodsage/engine/knowledge/ingest"
)

const apiSource = "api"

type ingestRequest struct {
	Title    string `json:"title"`
	Text     string `json:"text"     binding:"required"`
	Strategy string `json:"strategy"`
}

// ingestHandler chunks and indexes one document. A missing title is taken
// from the first non-blank line.
func ingestHandler(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		router.RespondWithError(c, router.NewRequestError(http.StatusBadRequest, "text is required", err))
		return
	}
	var opts ingest.Options
	if req.Strategy != "" {
		strategy, err := ingest.ParseStrategy(req.Strategy)
		if err != nil {
			router.RespondWithError(c, router.NewRequestError(http.StatusBadRequest, "invalid strategy", err))
			return
		}
		opts.Strategy = strategy
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = chunk.InferTitle(req.Text)
	}
	result, err := state.Runtime.Ingest(c.Request.Context(), []chunk.Document{{
		Title:  title,
		Text:   req.Text,
		Source: apiSource,
	}}, opts)
	if err != nil {
		router.RespondWithError(c, router.FromError("failed to ingest document", err))
		return
	}
	router.RespondCreated(c, "document ingested", result)
}
