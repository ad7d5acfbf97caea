package cli

import (
	"github.com/spf13/cobra"
)

// NewMCPCommand creates the mcp command.
func NewMCPCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio",
		Long: `Serve search_passages, draft_section and draft_progress to an MCP client
over stdio. Logs go to stderr.

Client configuration:
  {
    "mcpServers": {
      "prospectus": {
        "command": "/path/to/prospectus",
        "args": ["mcp"]
      }
    }
  }`,
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
			return a.MCP.RunStdio(ctx)
		},
	}
}
