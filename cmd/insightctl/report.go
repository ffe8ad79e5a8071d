package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aevon-lab/aevon-insights/internal/core/bucket"
	"github.com/aevon-lab/aevon-insights/internal/insights"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type reportOptions struct {
	projectID  int64
	categories string
	start      string
	end        string
	step       string
	output     string
}

func newReportCmd(root *rootOptions) *cobra.Command {
	opts := reportOptions{}
	cmd := cobra.Command{
		Use:   "report",
		Short: "Build an insight report for one project",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(root)
			if err != nil {
				return err
			}
			defer b.close()

			return runReport(cmd.Context(), cmd.OutOrStdout(), insights.NewService(insights.NewBuilder(b.source, bucket.Hour)), opts)
		},
	}
	cmd.Example = `  insightctl report --events events.yaml --project 1307 --start 2022-04-19 --end 2022-04-21
  insightctl report --source postgres --dsn postgres://... --project 1307 --categories errors,network -o yaml`
	cmd.Flags().Int64Var(&opts.projectID, "project", 0, "Project ID")
	cmd.Flags().StringVar(&opts.categories, "categories", "errors,network,rage,resources", "Comma separated categories")
	cmd.Flags().StringVar(&opts.start, "start", "", "Window start, RFC 3339 or YYYY-MM-DD (default: end minus one day)")
	cmd.Flags().StringVar(&opts.end, "end", "", "Window end, RFC 3339 or YYYY-MM-DD (default: today 00:00 UTC)")
	cmd.Flags().StringVar(&opts.step, "step", "hour", "Bucket step: hour, day, week or a number of minutes")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "json", "Output format: json or yaml")
	cmd.MarkFlagRequired("project")
	return &cmd
}

func runReport(ctx context.Context, out io.Writer, service *insights.Service, opts reportOptions) error {
	if opts.output != "json" && opts.output != "yaml" {
		return fmt.Errorf("unsupported output format %q", opts.output)
	}

	categories, err := insights.ParseCategories(opts.categories)
	if err != nil {
		return err
	}
	step, err := bucket.ParseTimeStep(opts.step)
	if err != nil {
		return err
	}
	start, err := parseTime(opts.start)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	end, err := parseTime(opts.end)
	if err != nil {
		return fmt.Errorf("invalid --end: %w", err)
	}

	report, err := service.Build(ctx, insights.Request{
		Categories: categories,
		ProjectID:  opts.projectID,
		Start:      start,
		End:        end,
		Step:       step,
	}, insights.TriggerCLI)
	if err != nil {
		return err
	}

	if opts.output == "yaml" {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.ParseInLocation(time.DateOnly, raw, time.UTC)
}
