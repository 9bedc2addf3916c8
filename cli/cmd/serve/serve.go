package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/compozy/woodsage/cli/cmd"
	"github.com/compozy/woodsage/engine/infra/monitoring"
	"github.com/compozy/woodsage/engine/infra/server"
	"github.com/compozy/woodsage/pkg/config"
	"github.com/spf13/cobra"
)

func NewServeCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the question answering, ingestion and catalog API under /api/v0,
plus /health and the Prometheus metrics endpoint when monitoring is enabled.`,
		Args: cobra.NoArgs,
		RunE: executeServeCommand,
	}
	command.Flags().String("host", "", "Listen host (overrides server.host)")
	command.Flags().Int("port", 0, "Listen port (overrides server.port)")
	command.Flags().Bool("cors", false, "Enable permissive CORS headers")
	command.Flags().Bool("rate-limit", false, "Enable per-client rate limiting")
	command.Flags().Bool("metrics", false, "Expose Prometheus metrics")
	return command
}

func executeServeCommand(cobraCmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cobraCmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cobraCmd.SetContext(ctx)
	cfg := config.FromContext(ctx)
	// Installed before the runtime so its instruments report through the exporter.
	mon := monitoring.NewServiceWithFallback(ctx, monitoring.FromAppConfig(cfg.Monitoring))
	mon.SetAsGlobal()
	handler := func(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
		srv, err := server.NewServer(ctx, e.Runtime(), mon)
		if err != nil {
			return err
		}
		return srv.Run(ctx)
	}
	return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{Runtime: cmd.RuntimeModels},
		cmd.ModeHandlers{JSON: handler, TUI: handler}, args)
}
