package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewIngestCommand creates the ingest command.
func NewIngestCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Extract, chunk, embed and index documents",
		Long: `Index the given files synchronously. A file that fails is reported and
skipped; the rest are still indexed.

Example:
  prospectus ingest docs/company-introduction.pdf docs/financials.xlsx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cfg.EnableIngestWorker = false

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			a, cleanup, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			rep := a.Ingest.IngestFiles(ctx, args)
			if opts.JSON {
				if err := printJSON(cmd.OutOrStdout(), rep); err != nil {
					return err
				}
			} else {
				cmd.Printf("Indexed %d document(s), %d chunk(s).\n", rep.Documents, rep.Ingested)
				for _, f := range rep.Failures {
					cmd.Printf("  failed: %s: %s\n", f.File, f.Error)
				}
			}
			if len(rep.Failures) > 0 && rep.Documents == 0 {
				return fmt.Errorf("no documents indexed (%d failed)", len(rep.Failures))
			}
			return nil
		},
	}
}
