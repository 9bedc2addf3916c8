package tokens

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/compozy/woodsage/cli/cmd"
	"github.com/compozy/woodsage/cli/helpers"
	"github.com/compozy/woodsage/cli/tui/styles"
	"github.com/compozy/woodsage/engine/knowledge/chunk"
	"github.com/compozy/woodsage/engine/knowledge/embedder"
	"github.com/compozy/woodsage/pkg/config"
	"github.com/compozy/woodsage/pkg/logger"
	"github.com/spf13/cobra"
)

var newTruncator = embedder.NewTruncator

func NewTokensCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens <file|->",
		Short: "Count tokens and chunks for a document",
		Long: `Report how many tokens a document has under the embedding encoding, how
many chunks ingestion would produce, and whether the text exceeds the
embedding input budget.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{Runtime: cmd.RuntimeNone}, cmd.ModeHandlers{
				JSON: handleTokensJSON,
				TUI:  handleTokensTUI,
			}, args)
		},
	}
}

// Report describes one document's size.
type Report struct {
	Source    string `json:"source"`
	Runes     int    `json:"runes"`
	Tokens    int    `json:"tokens"`
	Unit      string `json:"unit"`
	Chunks    int    `json:"chunks"`
	MaxTokens int    `json:"max_tokens"`
	Truncated bool   `json:"truncated"`
}

func handleTokensJSON(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, args []string) error {
	report, err := count(ctx, e, args[0])
	if err != nil {
		return err
	}
	return e.WriteJSON(report)
}

func handleTokensTUI(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, args []string) error {
	r, err := count(ctx, e, args[0])
	if err != nil {
		return err
	}
	lines := fmt.Sprintf("%s\n%s: %d\nrunes: %d\nchunks: %d",
		styles.TitleStyle.Render(r.Source), r.Unit, r.Tokens, r.Runes, r.Chunks)
	if r.Truncated {
		lines += "\n" + styles.ErrorStyle.Render(fmt.Sprintf("exceeds the %d-token embedding budget", r.MaxTokens))
	}
	e.Println(styles.BoxStyle.Render(lines))
	return nil
}

func count(ctx context.Context, e *cmd.CommandExecutor, source string) (*Report, error) {
	cfg := config.FromContext(ctx)
	data, err := helpers.ReadInput(ctx, e.In(), source)
	if err != nil {
		return nil, err
	}
	text := string(data)
	if !utf8.ValidString(text) {
		return nil, helpers.NewCliError("INVALID_INPUT", "Document is not valid UTF-8", source)
	}
	chunker, err := chunk.New(cfg.Chunking.MaxRunes)
	if err != nil {
		return nil, err
	}
	unit := "tokens"
	truncator, err := newTruncator(embedder.DefaultEncoding)
	if err != nil {
		logger.FromContext(ctx).Warn("token encoding unavailable; counting runes", "error", err)
		unit = "runes"
	}
	tokens := truncator.Count(text)
	return &Report{
		Source:    source,
		Runes:     utf8.RuneCountInString(text),
		Tokens:    tokens,
		Unit:      unit,
		Chunks:    chunker.Count(text),
		MaxTokens: cfg.Embedding.MaxTokens,
		Truncated: tokens > cfg.Embedding.MaxTokens,
	}, nil
}
