package server

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/compozy/woodsage/engine/infra/server/router"
)

const defaultQuestionCount = 3

func indexStatsHandler(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	stats, err := state.Runtime.Index.Stats(c.Request.Context())
	if err != nil {
		router.RespondWithError(c, router.FromError("failed to read index stats", err))
		return
	}
	router.RespondOK(c, "index stats retrieved", stats)
}

// questionsHandler samples ?n example questions without repeats.
func questionsHandler(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	n, err := strconv.Atoi(c.DefaultQuery("n", strconv.Itoa(defaultQuestionCount)))
	if err != nil || n < 0 {
		n = defaultQuestionCount
	}
	router.RespondOK(c, "questions retrieved", gin.H{"questions": state.Runtime.Config.SampleExamples(n)})
}
