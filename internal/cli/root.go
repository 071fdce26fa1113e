// Package cli implements the rspace2elabftw command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/elabftw/rspace2elabftw/internal/config"
)

var (
	cfgFile string
	verbose bool
	quiet   bool

	vp *viper.Viper
)

// rootCmd is the importer itself: the tool's single purpose is turning an
// archive into API calls, so the archive path is the root positional
// argument. Inspection and maintenance live in subcommands.
var rootCmd = &cobra.Command{
	Use:   "rspace2elabftw <archive.eln>",
	Short: "Import an RSpace .eln export into eLabFTW",
	Long: `rspace2elabftw reads an .eln archive exported from RSpace and re-creates
its records in eLabFTW: experiments and experiment templates with their
tags, attached files and rich-text bodies.

The destination is configured through environment variables:
  API_HOST_URL   base URL of the API (e.g. https://elab.example.org/api/v2)
  API_KEY        an eLabFTW API key with write permissions

A .env file in the working directory is honored. Records are imported in
archive order; a failing record is reported and skipped unless --strict
is given.

Quick start:
  export API_HOST_URL=https://elab.example.org/api/v2
  export API_KEY=3-86e9f9...
  rspace2elabftw check             Verify connectivity and credentials
  rspace2elabftw inspect x.eln     List what the archive contains
  rspace2elabftw x.eln             Run the import`,
	Args:         cobra.ExactArgs(1),
	RunE:         runImport,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .rspace2elabftw/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	rootCmd.Flags().Bool("strict", false, "abort the run on the first record failure")
	rootCmd.Flags().Bool("dry-run", false, "parse and map the archive without any API calls")
	rootCmd.Flags().Int("concurrency", 1, "parallel attachment uploads per record")
	rootCmd.Flags().StringSlice("exclude", nil, "glob pattern for archive parts to skip (repeatable)")
	rootCmd.Flags().Bool("insecure", false, "skip TLS certificate verification")
	rootCmd.Flags().Duration("timeout", config.DefaultTimeout, "per-request HTTP timeout")
	rootCmd.Flags().String("log-file", "import.log", "debug log file (empty disables file logging)")

	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initConfig prepares the viper instance: defaults, config file, env
// bindings and flag bindings, lowest to highest priority.
func initConfig() {
	vp = viper.New()
	config.SetDefaults(vp)

	if cfgFile != "" {
		vp.SetConfigFile(cfgFile)
	} else {
		vp.AddConfigPath(config.AppDir)
		vp.AddConfigPath("$HOME/" + config.AppDir)
		vp.SetConfigType("yaml")
		vp.SetConfigName("config")
	}

	config.BindEnv(vp)

	_ = vp.BindPFlag("strict", rootCmd.Flags().Lookup("strict"))
	_ = vp.BindPFlag("concurrency", rootCmd.Flags().Lookup("concurrency"))
	_ = vp.BindPFlag("exclude", rootCmd.Flags().Lookup("exclude"))
	_ = vp.BindPFlag("insecure", rootCmd.Flags().Lookup("insecure"))
	_ = vp.BindPFlag("timeout", rootCmd.Flags().Lookup("timeout"))
	_ = vp.BindPFlag("log_file", rootCmd.Flags().Lookup("log-file"))

	if err := vp.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", vp.ConfigFileUsed())
		}
	}
}

// loadConfig resolves and validates the configuration. Called by every
// command that talks to the destination, before anything else happens.
func loadConfig() (*config.Config, error) {
	return config.Load(vp)
}
