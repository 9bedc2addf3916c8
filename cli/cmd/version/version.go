package version

import (
	"context"
	"fmt"

	"github.com/compozy/woodsage/cli/cmd"
	"github.com/compozy/woodsage/pkg/version"
	"github.com/spf13/cobra"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{Runtime: cmd.RuntimeNone}, cmd.ModeHandlers{
				JSON: func(_ context.Context, _ *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
					return e.WriteJSON(version.Get())
				},
				TUI: func(_ context.Context, _ *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
					info := version.Get()
					e.Println(fmt.Sprintf("woodsage %s (commit %s, built %s, %s)",
						info.Version, info.CommitHash, info.BuildDate, info.GoVersion))
					return nil
				},
			}, args)
		},
	}
}
