package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/elabftw/rspace2elabftw/internal/config"
)

// defaultConfigYAML is the template written by "config init". Credentials
// belong in the environment, not on disk, so the template leaves them
// commented out.
const defaultConfigYAML = `# rspace2elabftw configuration.
# Everything here can be overridden by environment variables and flags.

# Destination API, normally taken from API_HOST_URL / API_KEY env variables:
# host_url: https://elab.example.org/api/v2
# api_key: 3-86e9f9...

# Abort the whole run on the first record failure.
strict: false

# Skip TLS certificate verification (self-signed dev instances).
insecure: false

# Parallel attachment uploads per record. Records stay sequential.
concurrency: 1

# Per-request HTTP timeout.
timeout: 30s

# Archive parts matching these glob patterns are never imported.
# exclude:
#   - "**/*.tif"

# Debug log file. Empty disables file logging.
log_file: import.log
`

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(config.AppDir, config.ConfigFileName)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.MkdirAll(config.AppDir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", config.AppDir, err)
			}
			if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Println("Wrote", path)
			return nil
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration with the API key redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Show the resolved values even when validation would fail, so
			// the command is usable to debug a broken setup.
			cfg := config.Default()
			if err := vp.Unmarshal(cfg); err != nil {
				return fmt.Errorf("unmarshal config: %w", err)
			}

			out, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Print(string(out))

			if err := cfg.Validate(); err != nil {
				fmt.Fprintln(os.Stderr, "warning:", err)
			}
			return nil
		},
	}
}
