package cli

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/elabftw/rspace2elabftw/internal/importer"
)

// ANSI color codes for the run summary
const (
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorReset = "\033[0m"
)

// printResult writes the run summary to stdout.
func printResult(result *importer.Result) {
	useColor := isatty.IsTerminal(os.Stdout.Fd())

	prefix := ""
	if result.DryRun {
		prefix = "[dry-run] "
	}

	fmt.Printf("%sImport complete:\n", prefix)
	fmt.Printf("  Records: %s, %d skipped, %s\n",
		colorize(fmt.Sprintf("%d created", result.Created), colorGreen, useColor && result.Created > 0),
		result.Skipped,
		colorize(fmt.Sprintf("%d failed", result.Failed), colorRed, useColor && result.Failed > 0))
	fmt.Printf("  Uploads: %d\n", result.Uploads)

	if len(result.Errors) > 0 {
		fmt.Println("  Errors:")
		for _, e := range result.Errors {
			fmt.Printf("    %s: %v\n", e.DatasetID, e.Err)
		}
	}
}

func colorize(s, color string, on bool) string {
	if !on {
		return s
	}
	return color + s + colorReset
}
