package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags.
var version = "0.1.0-dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show rspace2elabftw version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("rspace2elabftw version " + version)
		},
	}
}
