package helpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/compozy/woodsage/cli/tui/styles"
)

// FormatError renders err for the given mode. JSON output always carries
// "error" and "details"; "code" appears only for a CliError.
func FormatError(err error, mode Mode) string {
	if err == nil {
		return ""
	}
	message, details := err.Error(), ""
	var cliErr *CliError
	if errors.As(err, &cliErr) {
		message, details = cliErr.Message, cliErr.Details
	}
	if mode == ModeTUI {
		out := errorIcon(err) + " " + styles.ErrorStyle.Bold(true).Render(message)
		if details != "" {
			out += "\n" + styles.MutedStyle.Italic(true).Render("Details: "+details)
		}
		return out
	}
	payload := map[string]string{"error": message, "details": details}
	if cliErr != nil {
		payload["code"] = cliErr.Code
	}
	out, mErr := json.MarshalIndent(payload, "", "  ")
	if mErr != nil {
		return `{"error": "JSON marshaling failed", "details": ""}`
	}
	return string(out)
}

func errorIcon(err error) string {
	switch {
	case IsTimeoutError(err):
		return "⏰"
	case IsUnavailableError(err):
		return "🔌"
	default:
		return "❌"
	}
}

// OutputError writes err to stderr.
func OutputError(err error, mode Mode) {
	if err != nil {
		fmt.Fprintln(os.Stderr, FormatError(err, mode))
	}
}

func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}

// FormatDuration keeps one decimal in the largest unit that fits.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1fm", d.Minutes())
	default:
		return fmt.Sprintf("%.1fh", d.Hours())
	}
}
