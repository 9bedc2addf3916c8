package ask

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/compozy/woodsage/cli/cmd"
	"github.com/compozy/woodsage/cli/helpers"
	"github.com/compozy/woodsage/cli/tui/styles"
	"github.com/compozy/woodsage/engine/answer"
	"github.com/compozy/woodsage/pkg/logger"
	"github.com/spf13/cobra"
)

func NewAskCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a woodworking question from the indexed transcripts",
		Example: `  woodsage ask "How do I cut a mortise by hand?"
  woodsage ask --format json What router bits do I need for a table?`,
		Args: cobra.MinimumNArgs(1),
		RunE: executeAskCommand,
	}
	command.Flags().Int("top-k", 0, "Number of passages to retrieve (overrides retrieval.top_k)")
	command.Flags().Duration("timeout", 0, "Abort the question after this long (0 disables)")
	return command
}

func executeAskCommand(cobraCmd *cobra.Command, args []string) error {
	return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{
		Runtime: cmd.RuntimeModels,
	}, cmd.ModeHandlers{
		JSON: handleAskJSON,
		TUI:  handleAskTUI,
	}, args)
}

func handleAskJSON(ctx context.Context, cobraCmd *cobra.Command, executor *cmd.CommandExecutor, args []string) error {
	res, err := runAsk(ctx, cobraCmd, executor, args)
	if err != nil {
		return err
	}
	return executor.WriteJSON(res)
}

func handleAskTUI(ctx context.Context, cobraCmd *cobra.Command, executor *cmd.CommandExecutor, args []string) error {
	res, err := runAsk(ctx, cobraCmd, executor, args)
	if err != nil {
		return err
	}
	executor.Println(styles.QuestionStyle.Render("> " + res.Query))
	executor.Println(styles.RenderAnswer(res))
	return nil
}

func runAsk(
	ctx context.Context,
	cobraCmd *cobra.Command,
	executor *cmd.CommandExecutor,
	args []string,
) (*answer.Result, error) {
	question := strings.TrimSpace(strings.Join(args, " "))
	if err := helpers.ValidateRequired(question, "question"); err != nil {
		return nil, err
	}
	timeout, err := cobraCmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, fmt.Errorf("failed to get timeout flag: %w", err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	res, err := executor.Runtime().Answer(ctx, question)
	if err != nil {
		if timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
			return nil, helpers.NewTimeoutError("ask", timeout.String())
		}
		return nil, err
	}
	logger.FromContext(ctx).Debug("question answered",
		"final", res.Final,
		"passages", len(res.Passages),
		"matches", len(res.Matches),
		"duration", helpers.FormatDuration(time.Since(start)),
	)
	return res, nil
}
