package helpers

// OutputFormat represents the --format values accepted by every command.
type OutputFormat string

const (
	OutputFormatJSON OutputFormat = "json"
	OutputFormatTUI  OutputFormat = "tui"
	OutputFormatAuto OutputFormat = "auto"
)

// Persistent flag names shared by the root command and its helpers.
const (
	FlagConfig    = "config"
	FlagEnvFile   = "env-file"
	FlagLogLevel  = "log-level"
	FlagLogJSON   = "log-json"
	FlagLogSource = "log-source"
	FlagFormat    = "format"
)
