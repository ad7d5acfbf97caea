// Package cli holds the prospectus command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"prospectus/internal/app"
	"prospectus/internal/config"
	"prospectus/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	JSON    bool

	// LoadConfig reads the configuration. Tests replace it.
	LoadConfig func() (*config.Config, error)
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{LoadConfig: config.Load})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "prospectus",
		Short:         "Draft prospectus sections from indexed company documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "print results as JSON")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewDraftCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewMCPCommand(opts))

	return cmd
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and installs the process logger on
// logOut. The stdio MCP server passes stderr so stdout stays protocol-only.
func (o *RootOptions) loadConfig(logOut io.Writer) (*config.Config, error) {
	cfg, err := o.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.LogLevel
	if o.Verbose {
		level = "debug"
	}
	slog.SetDefault(logger.New(logOut, level))
	return cfg, nil
}

// build bootstraps the configured backends and wires the application. The
// caller owns the returned cleanup.
func build(ctx context.Context, cfg *config.Config) (*app.App, func(), error) {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: %w", err)
	}
	a, err := app.New(cfg, deps)
	if err != nil {
		deps.Close()
		return nil, nil, err
	}
	return a, func() {
		a.Close()
		deps.Close()
	}, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
