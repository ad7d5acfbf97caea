package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewSearchCommand creates the search command.
func NewSearchCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Retrieve the passages most similar to a question",
		Args:  cobra.MinimumNArgs(1),
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

			passages, err := a.Documents.Search(ctx, strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if opts.JSON {
				return printJSON(cmd.OutOrStdout(), passages)
			}
			if len(passages) == 0 {
				cmd.Println("No results found.")
				return nil
			}
			for i, p := range passages {
				name := p.DocumentName
				if p.Label != "" {
					name += " / " + p.Label
				}
				cmd.Printf("[%d] %s (%.3f)\n", i+1, name, p.Score)
				cmd.Printf("    %s\n", snippet(p.Text, 200))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "k", 0, "maximum number of passages (default QA_TOP_K)")
	return cmd
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
