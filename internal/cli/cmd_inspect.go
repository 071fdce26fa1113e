package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/elabftw/rspace2elabftw/internal/eln"
	"github.com/elabftw/rspace2elabftw/internal/importer"
	"github.com/elabftw/rspace2elabftw/internal/rspace"
)

func newInspectCmd() *cobra.Command {
	var exclude []string

	cmd := &cobra.Command{
		Use:   "inspect <archive.eln>",
		Short: "List the records of an archive without importing anything",
		Long: `Parse an .eln archive and print its importable records: title, type,
attachment count and tags. No network access, no configuration needed.
Useful to verify the mapping before a real run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := eln.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = archive.Close() }()

			crate, err := eln.Decode(archive)
			if err != nil {
				return err
			}

			records, skipped, errs := importer.CollectRecords(crate, exclude)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATASET\tTYPE\tTITLE\tFILES\tTAGS")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					rec.DatasetID,
					inspectType(rec.Doc),
					rec.Doc.Name,
					attachmentCount(rec.Doc),
					strings.Join(rec.Tags, ","))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if len(skipped) > 0 {
				fmt.Println()
				for _, id := range skipped {
					fmt.Printf("no record XML: %s\n", id)
				}
			}
			if len(errs) > 0 {
				fmt.Println()
				for _, e := range errs {
					fmt.Printf("unreadable: %s: %v\n", e.DatasetID, e.Err)
				}
				return fmt.Errorf("%d record(s) could not be read", len(errs))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "glob pattern for archive parts to skip (repeatable)")
	return cmd
}

func inspectType(doc *rspace.Document) string {
	if doc.IsTemplate() {
		return "template"
	}
	if doc.Type == rspace.TypeNormal {
		return "experiment"
	}
	return doc.Type
}

// attachmentCount counts the files an import would upload for this record,
// the source XML included.
func attachmentCount(doc *rspace.Document) int {
	n := 1
	if main := doc.MainField(); main != nil {
		n += len(main.Images.Images)
	}
	return n
}
