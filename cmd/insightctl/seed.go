package main

import (
	"context"
	"fmt"
	"io"

	"github.com/aevon-lab/aevon-insights/internal/core/storage"
	"github.com/spf13/cobra"
)

func newSeedCmd(root *rootOptions) *cobra.Command {
	cmd := cobra.Command{
		Use:   "seed",
		Short: "Insert the events fixture into the event store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if root.events == "" {
				return fmt.Errorf("--events is required")
			}
			events, err := loadEvents(root.events)
			if err != nil {
				return err
			}

			// Seed the store itself, not a fixture-backed memory source.
			opts := *root
			opts.events = ""
			b, err := openBackend(&opts)
			if err != nil {
				return err
			}
			defer b.close()

			return runSeed(cmd.Context(), cmd.OutOrStdout(), b.writer, events)
		},
	}
	cmd.Example = `  insightctl seed --source duckdb --dsn ./data/events.duckdb --events events.yaml`
	return &cmd
}

func runSeed(ctx context.Context, out io.Writer, writer storage.EventWriter, events []storage.Event) error {
	n, err := writer.InsertEvents(ctx, events)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "inserted %d events\n", n)
	return nil
}
