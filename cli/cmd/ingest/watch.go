package ingest

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/compozy/woodsage/cli/cmd"
	"github.com/compozy/woodsage/engine/knowledge/ingest"
	"github.com/compozy/woodsage/pkg/config"
	"github.com/compozy/woodsage/pkg/logger"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// watchIfRequested re-ingests changed files with the replace strategy until
// the command is interrupted.
func watchIfRequested(
	ctx context.Context,
	cobraCmd *cobra.Command,
	executor *cmd.CommandExecutor,
	args []string,
	emit func(*Report) error,
) error {
	watch, err := cobraCmd.Flags().GetBool("watch")
	if err != nil {
		return fmt.Errorf("failed to get watch flag: %w", err)
	}
	patterns := filePatterns(args)
	if !watch || len(patterns) == 0 {
		return nil
	}
	fromName, err := cobraCmd.Flags().GetBool("title-from-name")
	if err != nil {
		return fmt.Errorf("failed to get title-from-name flag: %w", err)
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	watcher, err := ingest.NewWatcher(ctx, patterns)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	cfg := config.FromContext(ctx)
	return watcher.Run(ctx, func(ctx context.Context, paths []string) {
		log.Info("Re-ingesting changed files", "files", len(paths))
		src := ingest.FileSource{
			Fs:            afero.NewOsFs(),
			Patterns:      paths,
			MaxFileSize:   cfg.Ingest.MaxFileSize,
			TitleFromName: fromName,
		}
		report, err := ingestSources(ctx, executor, []ingest.Source{src}, ingest.StrategyReplace)
		if err != nil {
			log.Error("Re-ingestion failed", "error", err)
			return
		}
		if report == nil {
			return
		}
		if err := emit(report); err != nil {
			log.Error("Failed to write ingestion report", "error", err)
		}
	})
}
