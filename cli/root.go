package cli

import (
	"context"

	"github.com/compozy/woodsage/cli/cmd/ask"
	"github.com/compozy/woodsage/cli/cmd/catalog"
	"github.com/compozy/woodsage/cli/cmd/chat"
	configcmd "github.com/compozy/woodsage/cli/cmd/config"
	"github.com/compozy/woodsage/cli/cmd/index"
	"github.com/compozy/woodsage/cli/cmd/ingest"
	"github.com/compozy/woodsage/cli/cmd/serve"
	"github.com/compozy/woodsage/cli/cmd/tokens"
	versioncmd "github.com/compozy/woodsage/cli/cmd/version"
	"github.com/compozy/woodsage/cli/helpers"
	"github.com/compozy/woodsage/pkg/config"
	"github.com/compozy/woodsage/pkg/logger"
	"github.com/spf13/cobra"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "woodsage",
		Short: "Woodworking Q&A grounded in video transcripts",
		Long: `woodsage answers woodworking questions from an indexed library of video
transcripts and links the tools it mentions to a product catalog.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return SetupGlobalConfig(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.String(helpers.FlagConfig, "woodsage.yaml", "Path to the YAML configuration file")
	flags.String(helpers.FlagEnvFile, ".env", "Path to an environment file loaded before configuration")
	flags.String(helpers.FlagLogLevel, "info", "Log level (debug, info, warn, error, disabled)")
	flags.Bool(helpers.FlagLogJSON, false, "Emit logs as JSON")
	flags.Bool(helpers.FlagLogSource, false, "Include source locations in logs")
	flags.String(helpers.FlagFormat, string(helpers.OutputFormatAuto), "Output format (json, tui, auto)")

	root.AddCommand(
		ingest.NewIngestCommand(),
		ask.NewAskCommand(),
		chat.NewChatCommand(),
		catalog.NewCatalogCommand(),
		index.NewIndexCommand(),
		tokens.NewTokensCommand(),
		serve.NewServeCommand(),
		configcmd.NewConfigCommand(),
		versioncmd.NewVersionCommand(),
	)
	return root
}

// SetupGlobalConfig loads the env file and configuration, then attaches the
// config and logger to the command context.
func SetupGlobalConfig(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := loadEnvFile(cmd); err != nil {
		return helpers.NewCliError("ENV_FILE_ERROR", "Failed to load environment file", err.Error())
	}
	path, err := cmd.Flags().GetString(helpers.FlagConfig)
	if err != nil {
		return err
	}
	cfg, err := config.Load(ctx, config.NewYAMLProvider(path), config.NewCLIProvider(changedFlagValues(cmd)))
	if err != nil {
		return helpers.NewCliError("CONFIG_ERROR", "Failed to load configuration", err.Error())
	}
	level, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed(helpers.FlagLogLevel) {
		level = cfg.Runtime.LogLevel
	}
	if !cmd.Flags().Changed(helpers.FlagLogJSON) {
		logJSON = cfg.Runtime.LogJSON
	}
	log := logger.SetupLogger(level, logJSON, logSource)
	ctx = config.ContextWithConfig(ctx, cfg)
	ctx = logger.ContextWithLogger(ctx, log)
	cmd.SetContext(ctx)
	log.Debug("configuration loaded", "config_file", path, "command", cmd.Name())
	return nil
}
