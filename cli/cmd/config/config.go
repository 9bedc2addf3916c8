package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/compozy/woodsage/cli/cmd"
	"github.com/compozy/woodsage/cli/helpers"
	"github.com/compozy/woodsage/pkg/config"
	"github.com/compozy/woodsage/pkg/logger"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand creates the config command using the unified command pattern
func NewConfigCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	command.AddCommand(newShowCommand(), newEnvCommand())
	return command
}

func newShowCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{Runtime: cmd.RuntimeNone}, cmd.ModeHandlers{
				JSON: handleShow,
				TUI:  handleShow,
			}, args)
		},
	}
	command.Flags().StringP("output", "o", "yaml", "Output encoding (yaml, json)")
	return command
}

func handleShow(ctx context.Context, cobraCmd *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
	logger.FromContext(ctx).Debug("executing config show command")
	output, err := cobraCmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	if err := helpers.ValidateEnum(output, []string{"yaml", "json"}, "output"); err != nil {
		return err
	}
	values, err := config.FromContext(ctx).Map()
	if err != nil {
		return err
	}
	if output == "json" {
		return e.WriteJSON(values)
	}
	enc := yaml.NewEncoder(e.Out())
	enc.SetIndent(2)
	if err := enc.Encode(values); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	return enc.Close()
}

// EnvVar documents one environment override.
type EnvVar struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Sensitive bool   `json:"sensitive"`
	Set       bool   `json:"set"`
}

func newEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List the environment variables that override configuration",
		Long: `List the environment variables read at startup. Every path can also be set
with the WOODSAGE_ prefix, e.g. WOODSAGE_RETRIEVAL_TOP_K.`,
		Args: cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{Runtime: cmd.RuntimeNone}, cmd.ModeHandlers{
				JSON: func(_ context.Context, _ *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
					return e.WriteJSON(envVars())
				},
				TUI: func(_ context.Context, _ *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
					w := tabwriter.NewWriter(e.Out(), 0, 0, 2, ' ', 0)
					fmt.Fprintln(w, "VARIABLE\tPATH\tSET")
					for _, v := range envVars() {
						set := ""
						if v.Set {
							set = "yes"
						}
						name := v.Name
						if v.Sensitive {
							name += " (secret)"
						}
						fmt.Fprintf(w, "%s\t%s\t%s\n", name, v.Path, set)
					}
					return w.Flush()
				},
			}, args)
		},
	}
}

func envVars() []EnvVar {
	mappings := config.GenerateEnvMappings()
	out := make([]EnvVar, 0, len(mappings))
	for _, m := range mappings {
		_, set := os.LookupEnv(m.EnvVar)
		if !set {
			_, set = os.LookupEnv("WOODSAGE_" + strings.ToUpper(strings.ReplaceAll(m.ConfigPath, ".", "_")))
		}
		out = append(out, EnvVar{Name: m.EnvVar, Path: m.ConfigPath, Sensitive: m.Sensitive, Set: set})
	}
	return out
}
