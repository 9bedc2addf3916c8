package ingest

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/compozy/woodsage/cli/cmd"
	"github.com/compozy/woodsage/cli/helpers"
	"github.com/compozy/woodsage/cli/tui/styles"
	"github.com/compozy/woodsage/engine/knowledge/chunk"
	"github.com/compozy/woodsage/engine/knowledge/ingest"
	"github.com/compozy/woodsage/pkg/config"
	"github.com/compozy/woodsage/pkg/logger"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const stdinArg = "-"

func NewIngestCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "ingest <patterns...|->",
		Short: "Chunk, embed and index transcript documents",
		Long: `Load text, markdown and PDF transcripts matching the given glob patterns
(doublestar syntax, e.g. "transcripts/**/*.md") and write their chunks into the
vector index. Pass "-" to read a single document from standard input.`,
		Example: `  woodsage ingest "transcripts/**/*.txt"
  cat notes.md | woodsage ingest - --title "Shop notes"
  woodsage ingest "transcripts/*.md" --watch`,
		Args: cobra.MinimumNArgs(1),
		RunE: executeIngestCommand,
	}
	command.Flags().String("strategy", string(ingest.StrategyUpsert), "Write strategy (upsert, replace)")
	command.Flags().Int("concurrency", 0, "Parallel embedding workers (overrides ingest.concurrency)")
	command.Flags().String("title", "", "Document title for standard input")
	command.Flags().Bool("title-from-name", false, "Derive file titles from file names instead of the first line")
	command.Flags().Bool("watch", false, "Keep running and re-ingest files matching the patterns when they change")
	return command
}

func executeIngestCommand(cobraCmd *cobra.Command, args []string) error {
	return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{
		Runtime: cmd.RuntimeModels,
	}, cmd.ModeHandlers{
		JSON: handleIngestJSON,
		TUI:  handleIngestTUI,
	}, args)
}

// Report is the ingestion outcome including sources that could not be read.
type Report struct {
	*ingest.Result
	SourceErrors []SourceFailure `json:"source_errors,omitempty"`
}

type SourceFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

func handleIngestJSON(ctx context.Context, cobraCmd *cobra.Command, executor *cmd.CommandExecutor, args []string) error {
	report, err := runIngest(ctx, cobraCmd, executor, args)
	if err != nil {
		return err
	}
	if err := executor.WriteJSON(report); err != nil {
		return err
	}
	return watchIfRequested(ctx, cobraCmd, executor, args, func(r *Report) error {
		return executor.WriteJSON(r)
	})
}

func handleIngestTUI(ctx context.Context, cobraCmd *cobra.Command, executor *cmd.CommandExecutor, args []string) error {
	report, err := runIngest(ctx, cobraCmd, executor, args)
	if err != nil {
		return err
	}
	printReport(executor, report)
	return watchIfRequested(ctx, cobraCmd, executor, args, func(r *Report) error {
		printReport(executor, r)
		return nil
	})
}

func printReport(executor *cmd.CommandExecutor, report *Report) {
	executor.Println(styles.RenderIngest(report.Result))
	for _, f := range report.SourceErrors {
		executor.Println(styles.ErrorStyle.Render(fmt.Sprintf("skipped %s: %s", f.Path, f.Error)))
	}
}

func runIngest(ctx context.Context, cobraCmd *cobra.Command, executor *cmd.CommandExecutor, args []string) (*Report, error) {
	strategy, err := resolveStrategy(ctx, cobraCmd)
	if err != nil {
		return nil, err
	}
	sources, err := buildSources(ctx, cobraCmd, executor.In(), args)
	if err != nil {
		return nil, err
	}
	report, err := ingestSources(ctx, executor, sources, strategy)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, helpers.NewCliError("NO_DOCUMENTS", "No documents matched the given patterns",
			strings.Join(args, " "))
	}
	return report, nil
}

func resolveStrategy(ctx context.Context, cobraCmd *cobra.Command) (ingest.Strategy, error) {
	strategy, err := cobraCmd.Flags().GetString("strategy")
	if err != nil {
		return "", fmt.Errorf("failed to get strategy flag: %w", err)
	}
	if !cobraCmd.Flags().Changed("strategy") {
		strategy = config.FromContext(ctx).Ingest.Strategy
	}
	parsed, err := ingest.ParseStrategy(strategy)
	if err != nil {
		return "", helpers.NewCliError("INVALID_INPUT", "Unsupported ingestion strategy", err.Error())
	}
	return parsed, nil
}

// ingestSources returns a nil report when no source produced a document.
func ingestSources(
	ctx context.Context,
	executor *cmd.CommandExecutor,
	sources []ingest.Source,
	strategy ingest.Strategy,
) (*Report, error) {
	cfg := config.FromContext(ctx)
	var (
		docs     []chunk.Document
		failures []ingest.SourceError
	)
	for _, src := range sources {
		loaded, errs := src.Load(ctx)
		docs = append(docs, loaded...)
		failures = append(failures, errs...)
	}
	log := logger.FromContext(ctx)
	for _, f := range failures {
		log.Warn("source skipped", "path", f.Path, "error", f.Err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	report := &Report{}
	err := helpers.LogOperation(ctx, "ingest", func() error {
		var runErr error
		report.Result, runErr = executor.Runtime().Ingest(ctx, docs, ingest.Options{
			Strategy:    strategy,
			Concurrency: cfg.Ingest.Concurrency,
		})
		return runErr
	})
	if err != nil {
		return nil, err
	}
	for _, f := range failures {
		report.SourceErrors = append(report.SourceErrors, SourceFailure{Path: f.Path, Error: f.Err.Error()})
	}
	return report, nil
}

func buildSources(ctx context.Context, cobraCmd *cobra.Command, stdin io.Reader, args []string) ([]ingest.Source, error) {
	cfg := config.FromContext(ctx)
	title, err := cobraCmd.Flags().GetString("title")
	if err != nil {
		return nil, fmt.Errorf("failed to get title flag: %w", err)
	}
	fromName, err := cobraCmd.Flags().GetBool("title-from-name")
	if err != nil {
		return nil, fmt.Errorf("failed to get title-from-name flag: %w", err)
	}
	var sources []ingest.Source
	if slices.Contains(args, stdinArg) {
		data, err := helpers.ReadInput(ctx, stdin, stdinArg)
		if err != nil {
			return nil, err
		}
		sources = append(sources, ingest.TextSource{Title: title, Text: string(data), Origin: "stdin"})
	}
	if patterns := filePatterns(args); len(patterns) > 0 {
		sources = append(sources, ingest.FileSource{
			Fs:            afero.NewOsFs(),
			Patterns:      patterns,
			MaxFileSize:   cfg.Ingest.MaxFileSize,
			TitleFromName: fromName,
		})
	}
	return sources, nil
}

func filePatterns(args []string) []string {
	return slices.DeleteFunc(slices.Clone(args), func(a string) bool { return a == stdinArg })
}
