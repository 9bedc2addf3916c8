package helpers

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// Mode selects between the interactive renderer and machine-readable JSON.
type Mode string

const (
	ModeTUI  Mode = "tui"
	ModeJSON Mode = "json"
)

var ciVars = []string{
	"CI",
	"JENKINS_HOME",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"CIRCLECI",
	"TRAVIS",
	"BUILDKITE",
	"DRONE",
	"TF_BUILD",
	"CODEBUILD_BUILD_ID",
	"TEAMCITY_VERSION",
	"CONTINUOUS_INTEGRATION",
}

func isRunningInCI() bool {
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

// explicitMode reads --format. "auto" and unknown values fall through to detection.
func explicitMode(cmd *cobra.Command) (Mode, bool) {
	format, err := cmd.Flags().GetString(FlagFormat)
	if err != nil {
		return ModeJSON, false
	}
	switch OutputFormat(format) {
	case OutputFormatJSON:
		return ModeJSON, true
	case OutputFormatTUI:
		return ModeTUI, true
	default:
		return ModeJSON, false
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func isInteractiveEnvironment() bool {
	if isRunningInCI() {
		return false
	}
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return false
	}
	term := os.Getenv("TERM")
	return term != "dumb" && term != ""
}

// DetectMode picks TUI output for interactive terminals and JSON otherwise.
func DetectMode(cmd *cobra.Command) Mode {
	if mode, found := explicitMode(cmd); found {
		return mode
	}
	if isInteractiveEnvironment() {
		return ModeTUI
	}
	return ModeJSON
}
