package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/compozy/woodsage/engine/infra/server/appstate"
	"github.com/compozy/woodsage/pkg/logger"
)

type Response struct {
	Status  int        `json:"status"`
	Message string     `json:"message"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

func RespondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{Status: http.StatusOK, Message: message, Data: data})
}

func RespondCreated(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, Response{Status: http.StatusCreated, Message: message, Data: data})
}

func RespondWithError(c *gin.Context, err *RequestError) {
	if err.StatusCode >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("Request failed",
			"path", c.FullPath(),
			"status", err.StatusCode,
			"error", err.Err,
		)
	}
	c.AbortWithStatusJSON(err.StatusCode, Response{
		Status:  err.StatusCode,
		Message: err.Reason,
		Error:   err.GetErrorInfo(),
	})
}

// GetAppState aborts with 500 when the state middleware was not installed.
func GetAppState(c *gin.Context) *appstate.State {
	state, err := appstate.GetState(c)
	if err != nil {
		RespondWithError(c, NewRequestError(http.StatusInternalServerError, ErrMsgAppStateNotInitialized, err))
		return nil
	}
	return state
}

// ErrorHandler renders errors attached with c.Error when the handler wrote nothing.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		RespondWithError(c, FromError("request failed", c.Errors.Last().Err))
	}
}
