package chat

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/compozy/woodsage/cli/cmd"
	"github.com/compozy/woodsage/cli/tui/models"
	"github.com/compozy/woodsage/engine/answer"
	"github.com/compozy/woodsage/pkg/config"
	"github.com/compozy/woodsage/pkg/logger"
	"github.com/spf13/cobra"
)

const exampleCount = 3

func NewChatCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively",
		Long: `Start an interactive session. The screen keeps the last five exchanges and
suggests three example questions.

In JSON mode every line read from standard input is one question and every
answer is written as one JSON object per line.`,
		Args: cobra.NoArgs,
		RunE: executeChatCommand,
	}
	command.Flags().Int("top-k", 0, "Number of passages to retrieve (overrides retrieval.top_k)")
	return command
}

func executeChatCommand(cobraCmd *cobra.Command, args []string) error {
	return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{
		Runtime: cmd.RuntimeModels,
	}, cmd.ModeHandlers{
		JSON: handleChatJSON,
		TUI:  handleChatTUI,
	}, args)
}

func handleChatTUI(ctx context.Context, _ *cobra.Command, executor *cmd.CommandExecutor, _ []string) error {
	cfg := config.FromContext(ctx)
	model := models.NewChatModel(ctx, executor.Runtime().Answer, cfg.SampleExamples(exampleCount))
	program := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(executor.In()),
		tea.WithOutput(executor.Out()),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// Line is one JSON chat exchange.
type Line struct {
	Question string         `json:"question"`
	Result   *answer.Result `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func handleChatJSON(ctx context.Context, _ *cobra.Command, executor *cmd.CommandExecutor, _ []string) error {
	log := logger.FromContext(ctx)
	scanner := bufio.NewScanner(executor.In())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		line := Line{Question: question}
		res, err := executor.Runtime().Answer(ctx, question)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("question failed", "error", err)
			line.Error = err.Error()
		} else {
			line.Result = res
		}
		if err := executor.WriteJSON(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
