package cli

import (
	"github.com/spf13/cobra"

	"prospectus/internal/index"
	"prospectus/internal/progress"
)

type statusReport struct {
	Documents int            `json:"documents"`
	Chunks    int            `json:"chunks"`
	Draft     progress.State `json:"draft"`
}

// NewStatusCommand creates the status command. It reads the index and the
// progress file directly and needs no provider.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index size and drafting progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			docs, chunks, err := index.NewFileStore(cfg.IndexDir).Count(ctx)
			if err != nil {
				return err
			}
			st, err := progress.ReadFile(ctx, cfg.ProgressFile)
			if err != nil {
				return err
			}

			rep := statusReport{Documents: docs, Chunks: chunks, Draft: st}
			if opts.JSON {
				return printJSON(cmd.OutOrStdout(), rep)
			}
			cmd.Printf("Documents: %d\nChunks: %d\nDraft: %s (%d/%d)\n", docs, chunks, st.Status, st.Completed, st.Total)
			return nil
		},
	}
}
