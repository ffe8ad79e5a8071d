// Command insightctl builds insight reports from the command line and seeds
// event stores from fixture files.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	source     string
	dsn        string
	events     string
	verbose    bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := cobra.Command{
		Use:          "insightctl",
		Short:        "Period-over-period behavioral insights",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration file (database section)")
	cmd.PersistentFlags().StringVar(&opts.source, "source", sourceMemory, "Event source: memory, postgres or duckdb")
	cmd.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "Database DSN or DuckDB file, overrides the config file")
	cmd.PersistentFlags().StringVar(&opts.events, "events", "", "Events fixture YAML file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")

	cmd.AddCommand(newReportCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))
	return &cmd
}
