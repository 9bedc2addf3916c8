package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/compozy/woodsage/engine/infra/server/router"
)

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

func askHandler(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		router.RespondWithError(c, router.NewRequestError(http.StatusBadRequest, "question is required", err))
		return
	}
	result, err := state.Runtime.Answer(c.Request.Context(), req.Question)
	if err != nil {
		router.RespondWithError(c, router.FromError("failed to answer question", err))
		return
	}
	router.RespondOK(c, "answer generated", result)
}
