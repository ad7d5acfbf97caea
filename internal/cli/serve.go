package cli

import (
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and MCP endpoint",
		Long: `Start the HTTP API on SERVER_PORT.

With ENABLE_INGEST_WORKER=true uploads are queued on NSQ and indexed by a
consumer running in the same process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, cleanup, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			return a.Run(ctx)
		},
	}
}
