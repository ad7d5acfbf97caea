package cli

import (
	"github.com/spf13/cobra"

	"prospectus/internal/watch"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(opts *RootOptions) *cobra.Command {
	var debounce = watch.DefaultDebounce

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Index documents as they appear in a directory",
		Long: `Watch a directory and index every supported file that is created or
rewritten in it. Writes to the same file are coalesced.`,
		Args: cobra.ExactArgs(1),
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

			cmd.PrintErrf("Watching %s\n", args[0])
			return watch.New(args[0], a.Ingest, debounce).Run(ctx)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before a changed file is indexed")
	return cmd
}
