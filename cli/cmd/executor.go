package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/compozy/woodsage/cli/helpers"
	"github.com/compozy/woodsage/engine/answer"
	"github.com/compozy/woodsage/engine/app"
	"github.com/compozy/woodsage/engine/catalog"
	"github.com/compozy/woodsage/engine/knowledge/embedder"
	"github.com/compozy/woodsage/engine/llm"
	"github.com/compozy/woodsage/pkg/config"
	"github.com/compozy/woodsage/pkg/logger"
	"github.com/spf13/cobra"
)

const runtimeCloseTimeout = 10 * time.Second

// RuntimeRequirement says how much of the application a command needs.
type RuntimeRequirement int

const (
	RuntimeNone RuntimeRequirement = iota
	// RuntimeOffline opens the index and the catalog without model clients.
	RuntimeOffline
	// RuntimeModels also builds the embedding and language model clients.
	RuntimeModels
)

// CommandExecutor handles common setup and execution patterns for CLI commands:
// mode detection, runtime construction and teardown, and error reporting.
type CommandExecutor struct {
	mode    helpers.Mode
	runtime *app.Runtime
	out     io.Writer
	in      io.Reader
}

// HandlerFunc defines the signature for command handlers.
type HandlerFunc func(ctx context.Context, cmd *cobra.Command, executor *CommandExecutor, args []string) error

// ModeHandlers contains handlers for different execution modes.
type ModeHandlers struct {
	JSON HandlerFunc
	TUI  HandlerFunc
}

type ExecutorOptions struct {
	Runtime RuntimeRequirement
}

type runtimeOptionsKey struct{}

// ContextWithRuntimeOptions appends app options used when commands build their runtime.
func ContextWithRuntimeOptions(ctx context.Context, opts ...app.Option) context.Context {
	existing := RuntimeOptionsFromContext(ctx)
	merged := append(append([]app.Option{}, existing...), opts...)
	return context.WithValue(ctx, runtimeOptionsKey{}, merged)
}

func RuntimeOptionsFromContext(ctx context.Context) []app.Option {
	if opts, ok := ctx.Value(runtimeOptionsKey{}).([]app.Option); ok {
		return opts
	}
	return nil
}

// NewCommandExecutor creates a new command executor with all necessary setup.
func NewCommandExecutor(cmd *cobra.Command, opts ExecutorOptions) (*CommandExecutor, error) {
	ctx := cmd.Context()
	log := logger.FromContext(ctx)
	mode := helpers.DetectMode(cmd)
	log.Debug("detected execution mode", "mode", mode)
	executor := &CommandExecutor{
		mode: mode,
		out:  cmd.OutOrStdout(),
		in:   cmd.InOrStdin(),
	}
	if opts.Runtime == RuntimeNone {
		return executor, nil
	}
	rtOpts := RuntimeOptionsFromContext(ctx)
	if opts.Runtime == RuntimeOffline {
		rtOpts = append(rtOpts, app.Offline())
	}
	rt, err := app.New(ctx, config.FromContext(ctx), rtOpts...)
	if err != nil {
		return nil, helpers.NewUnavailableError("runtime", err)
	}
	executor.runtime = rt
	return executor, nil
}

// Execute runs the appropriate handler based on the detected mode.
func (e *CommandExecutor) Execute(ctx context.Context, cmd *cobra.Command, handlers ModeHandlers, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer e.close(ctx)
	switch e.mode {
	case helpers.ModeJSON:
		if handlers.JSON == nil {
			return fmt.Errorf("JSON mode handler not implemented")
		}
		return handlers.JSON(ctx, cmd, e, args)
	case helpers.ModeTUI:
		if handlers.TUI == nil {
			return fmt.Errorf("TUI mode handler not implemented")
		}
		return handlers.TUI(ctx, cmd, e, args)
	default:
		return fmt.Errorf("unsupported mode: %s", e.mode)
	}
}

func (e *CommandExecutor) close(ctx context.Context) {
	if e.runtime == nil {
		return
	}
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), runtimeCloseTimeout)
	defer cancel()
	if err := e.runtime.Close(closeCtx); err != nil {
		logger.FromContext(ctx).Warn("failed to close runtime", "error", err)
	}
	e.runtime = nil
}

// Runtime is nil for commands built with RuntimeNone.
func (e *CommandExecutor) Runtime() *app.Runtime {
	return e.runtime
}

func (e *CommandExecutor) GetMode() helpers.Mode {
	return e.mode
}

func (e *CommandExecutor) Out() io.Writer {
	return e.out
}

func (e *CommandExecutor) In() io.Reader {
	return e.in
}

// WriteJSON writes data to the command output.
func (e *CommandExecutor) WriteJSON(data any) error {
	return helpers.WriteJSON(e.out, data)
}

// Println writes rendered TUI output.
func (e *CommandExecutor) Println(s string) {
	fmt.Fprintln(e.out, s)
}

// ExecuteCommand is a convenience function that combines executor creation and execution.
func ExecuteCommand(cmd *cobra.Command, opts ExecutorOptions, handlers ModeHandlers, args []string) error {
	executor, err := NewCommandExecutor(cmd, opts)
	if err != nil {
		return HandleCommonErrors(err, helpers.DetectMode(cmd))
	}
	return HandleCommonErrors(executor.Execute(cmd.Context(), cmd, handlers, args), executor.GetMode())
}

// HandleCommonErrors provides consistent error handling across all commands.
func HandleCommonErrors(err error, mode helpers.Mode) error {
	if err == nil {
		return nil
	}
	if cliErr := categorizeError(err); cliErr != nil {
		helpers.OutputError(cliErr, mode)
		return cliErr
	}
	helpers.OutputError(err, mode)
	return err
}

// categorizeError converts domain errors to structured CLI errors
func categorizeError(err error) *helpers.CliError {
	var cliErr *helpers.CliError
	switch {
	case errors.As(err, &cliErr):
		return cliErr
	case errors.Is(err, context.Canceled):
		return helpers.NewCliError("OPERATION_CANCELED", "Operation was canceled by user")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, helpers.ErrTimeout):
		return helpers.NewCliError("OPERATION_TIMEOUT", "Operation timed out", err.Error())
	case errors.Is(err, app.ErrModelsDisabled):
		return helpers.NewCliError("MODELS_DISABLED", "Language and embedding models are not configured",
			"set OPENAI_API_KEY or llm.api_key")
	case errors.Is(err, catalog.ErrNotFound):
		return helpers.NewCliError("NOT_FOUND", "Product not found", err.Error())
	case errors.Is(err, catalog.ErrConflict):
		return helpers.NewCliError("CONFLICT", "Product id is already taken", err.Error())
	case errors.Is(err, catalog.ErrInvalidEntity):
		return helpers.NewCliError("INVALID_INPUT", "Invalid product", err.Error())
	case errors.Is(err, embedder.ErrEmbeddingUnavailable),
		errors.Is(err, llm.ErrCompletionUnavailable),
		errors.Is(err, catalog.ErrCatalogUnavailable),
		errors.Is(err, answer.ErrSynthesisFailed),
		errors.Is(err, helpers.ErrUnavailable):
		return helpers.NewCliError("SERVICE_UNAVAILABLE", "A model or storage dependency is unavailable", err.Error())
	default:
		return nil
	}
}
