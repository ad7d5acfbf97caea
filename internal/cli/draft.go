package cli

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"prospectus/internal/logger"
)

// NewDraftCommand creates the draft command.
func NewDraftCommand(opts *RootOptions) *cobra.Command {
	var sections []string

	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Draft prospectus sections from the index",
		Long: `Run the drafting pipeline in the foreground. Without --section every
catalog section is drafted. Progress is written to PROGRESS_FILE and the
sections to OUTPUT_DIR.

Example:
  prospectus draft
  prospectus draft --section A --section C`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			ctx = logger.WithRunID(ctx, uuid.New().String())
			results, err := a.Drafts.Run(ctx, sections)
			if opts.JSON {
				if encErr := printJSON(cmd.OutOrStdout(), results); encErr != nil {
					return encErr
				}
			} else {
				for _, res := range results {
					state := "ok"
					if res.Failed {
						state = "failed"
					}
					cmd.Printf("Section %s (%s): %s\n", res.Section.ID, res.Section.Title, state)
				}
				if len(results) > 0 {
					cmd.Printf("Drafts written to %s\n", cfg.OutputDir)
				}
			}
			return err
		},
	}

	cmd.Flags().StringSliceVarP(&sections, "section", "s", nil, "section id to draft (repeatable, default all)")
	return cmd
}
