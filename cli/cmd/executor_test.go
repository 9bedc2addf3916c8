package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/woodsage/cli/helpers"
	"github.com/compozy/woodsage/engine/app"
	"github.com/compozy/woodsage/engine/catalog"
)

func TestCategorizeError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"missing products", fmt.Errorf("get: %w", catalog.ErrNotFound), "NOT_FOUND"},
		{"taken product ids", fmt.Errorf("%w: id 1", catalog.ErrConflict), "CONFLICT"},
		{"invalid products", catalog.ErrInvalidEntity, "INVALID_INPUT"},
		{"ask timeouts", helpers.NewTimeoutError("ask", "30s"), "OPERATION_TIMEOUT"},
		{"deadlines", context.DeadlineExceeded, "OPERATION_TIMEOUT"},
		{"runtime startup failures", helpers.NewUnavailableError("runtime", errors.New("dial tcp")), "SERVICE_UNAVAILABLE"},
		{"offline runtimes", helpers.NewUnavailableError("runtime", app.ErrModelsDisabled), "MODELS_DISABLED"},
	}
	for _, tc := range cases {
		t.Run("Should categorize "+tc.name, func(t *testing.T) {
			cliErr := categorizeError(tc.err)
			require.NotNil(t, cliErr)
			assert.Equal(t, tc.code, cliErr.Code)
		})
	}

	t.Run("Should keep the timeout duration in the details", func(t *testing.T) {
		cliErr := categorizeError(helpers.NewTimeoutError("ask", "30s"))
		require.NotNil(t, cliErr)
		assert.Contains(t, cliErr.Details, "30s")
	})

	t.Run("Should leave unknown errors alone", func(t *testing.T) {
		assert.Nil(t, categorizeError(errors.New("boom")))
	})
}
