package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/elabftw/rspace2elabftw/internal/elabftw"
)

func newCheckCmd() *cobra.Command {
	var insecure bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify connectivity and credentials against the destination",
		Long: `Call the destination API with the configured credentials and report who
the API key belongs to. Makes no writes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if insecure {
				cfg.Insecure = true
			}

			client, err := elabftw.NewClient(elabftw.ClientConfig{
				HostURL:  cfg.HostURL,
				APIKey:   cfg.APIKey,
				Insecure: cfg.Insecure,
				Timeout:  cfg.Timeout,
			})
			if err != nil {
				return err
			}

			user, err := client.CurrentUser(cmd.Context())
			if err != nil {
				return fmt.Errorf("destination check failed: %w", err)
			}

			fmt.Printf("OK: authenticated against %s as %s (%s)\n", cfg.HostURL, user.Fullname, user.Email)
			return nil
		},
	}

	cmd.Flags().BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
	return cmd
}
