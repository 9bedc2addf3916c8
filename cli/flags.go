package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagConfigPaths routes command flags onto config keys. Flags a command
// does not define are skipped.
var flagConfigPaths = map[string]string{
	"host":        "server.host",
	"port":        "server.port",
	"cors":        "server.cors_enabled",
	"rate-limit":  "server.rate_limit.enabled",
	"metrics":     "monitoring.enabled",
	"strategy":    "ingest.strategy",
	"concurrency": "ingest.concurrency",
	"seed-file":   "catalog.seed_file",
	"top-k":       "retrieval.top_k",
}

// changedFlagValues returns the typed values of flags set on the command line.
func changedFlagValues(cmd *cobra.Command) map[string]any {
	values := make(map[string]any)
	flags := cmd.Flags()
	flags.Visit(func(f *pflag.Flag) {
		path, ok := flagConfigPaths[f.Name]
		if !ok {
			return
		}
		var (
			v   any
			err error
		)
		switch f.Value.Type() {
		case "int":
			v, err = flags.GetInt(f.Name)
		case "bool":
			v, err = flags.GetBool(f.Name)
		default:
			v = f.Value.String()
		}
		if err == nil {
			values[path] = v
		}
	})
	return values
}
