package appstate

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/compozy/woodsage/engine/app"
)

type contextKey string

const stateKey contextKey = "app_state"

// State is shared by every request handler.
type State struct {
	Runtime *app.Runtime
}

func NewState(rt *app.Runtime) (*State, error) {
	if rt == nil {
		return nil, fmt.Errorf("runtime is required")
	}
	return &State{Runtime: rt}, nil
}

func StateMiddleware(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(string(stateKey), state)
		c.Next()
	}
}

func GetState(c *gin.Context) (*State, error) {
	v, exists := c.Get(string(stateKey))
	if !exists {
		return nil, fmt.Errorf("app state not found in context")
	}
	state, ok := v.(*State)
	if !ok || state == nil {
		return nil, fmt.Errorf("invalid app state type in context")
	}
	return state, nil
}
