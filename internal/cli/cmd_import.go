package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/elabftw/rspace2elabftw/internal/elabftw"
	"github.com/elabftw/rspace2elabftw/internal/eln"
	"github.com/elabftw/rspace2elabftw/internal/importer"
)

// runImport is the root command: validate config, open the archive, then
// hand over to the importer. Configuration problems abort before the archive
// is opened; archive problems abort before any network call.
func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	logger, closeLog, err := newLogger(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	archive, err := eln.Open(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = archive.Close() }()

	crate, err := eln.Decode(archive)
	if err != nil {
		return err
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

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	imp := importer.New(client, importer.Config{
		Strict:      cfg.Strict,
		DryRun:      dryRun,
		Concurrency: cfg.Concurrency,
		Exclude:     cfg.Exclude,
	}, logger)

	result, err := imp.Run(ctx, crate)
	if err != nil {
		if result != nil {
			printResult(result)
		}
		return err
	}

	printResult(result)
	if result.Failed > 0 {
		return fmt.Errorf("%d record(s) failed to import", result.Failed)
	}
	return nil
}
