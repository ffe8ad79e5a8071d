package insights

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aevon-lab/aevon-insights/internal/core/bucket"
	"github.com/aevon-lab/aevon-insights/internal/core/period"
	"github.com/aevon-lab/aevon-insights/internal/core/storage"
	"github.com/aevon-lab/aevon-insights/internal/metrics"
	"github.com/jinzhu/now"
)

// Request selects categories, project, window and step for one report.
// A zero End defaults to today 00:00 UTC and a zero Start to one day before End,
// both resolved when Build runs. A zero Step uses the builder default.
type Request struct {
	Categories []Category
	ProjectID  int64
	Start      time.Time
	End        time.Time
	Step       bucket.TimeStep
}

// Builder runs the category pipelines against an event store.
type Builder struct {
	source      storage.Source
	defaultStep bucket.TimeStep
	nowFn       func() time.Time
}

// NewBuilder creates a builder that acquires connections from source.
// defaultStep applies to requests without a step; zero means hourly buckets.
func NewBuilder(source storage.Source, defaultStep bucket.TimeStep) *Builder {
	if defaultStep.IsZero() {
		defaultStep = bucket.Hour
	}
	return &Builder{
		source:      source,
		defaultStep: defaultStep,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type plan struct {
	categories []Category
	projectID  int64
	start      time.Time
	end        time.Time
	step       bucket.TimeStep
	bucketing  bucket.Bucketing
}

// Build computes one report. Validation errors return before any query.
//
// conn, when non-nil, is borrowed for every category and left open. Otherwise
// the builder acquires its own connection and releases it before returning.
// A failing category is recorded in its section and the remaining ones still run.
func (b *Builder) Build(ctx context.Context, req Request, conn storage.Conn) (*Report, error) {
	p, err := b.plan(req)
	if err != nil {
		return nil, err
	}

	if conn == nil {
		owned, err := b.source.Acquire(ctx)
		if err != nil {
			return nil, dataSourceErr(err)
		}
		defer func() {
			if err := owned.Close(); err != nil {
				slog.Warn("[Insights] Failed to release connection", "error", err)
			}
		}()
		conn = owned
	}

	report := &Report{
		ProjectID: p.projectID,
		Start:     p.start,
		End:       p.end,
		Step:      p.step,
		Insights:  make(map[Category]*Section, len(p.categories)),
	}

	for _, c := range p.categories {
		started := time.Now()
		section := b.buildCategory(ctx, conn, c, p)
		report.Insights[c] = section

		reason := ""
		if section.Err != nil {
			reason = failureReason(section.Err)
			slog.Warn("[Insights] Category failed",
				"project_id", p.projectID,
				"category", c,
				"error", section.Err)
		}
		metrics.RecordCategory(string(c), time.Since(started), reason)
	}

	slog.Info("[Insights] Report built",
		"project_id", p.projectID,
		"categories", len(p.categories),
		"failed", len(report.Failed()),
		"start", p.start,
		"end", p.end,
		"step", p.step.String())

	return report, nil
}

func (b *Builder) plan(req Request) (plan, error) {
	categories, err := normalizeCategories(req.Categories)
	if err != nil {
		return plan{}, err
	}
	if req.ProjectID <= 0 {
		return plan{}, invalidf(ErrInvalidWindow, "project_id must be positive, got %d", req.ProjectID)
	}

	step := req.Step
	if step.IsZero() {
		step = b.defaultStep
	}
	bucketing, err := bucket.Resolve(step)
	if err != nil {
		return plan{}, err
	}

	end := req.End.UTC()
	if req.End.IsZero() {
		end = now.With(b.nowFn().UTC()).BeginningOfDay()
	}
	start := req.Start.UTC()
	if req.Start.IsZero() {
		start = end.AddDate(0, 0, -1)
	}
	if !end.After(start) {
		return plan{}, invalidf(ErrInvalidWindow, "end %s must be after start %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	return plan{
		categories: categories,
		projectID:  req.ProjectID,
		start:      start,
		end:        end,
		step:       step,
		bucketing:  bucketing,
	}, nil
}

func (b *Builder) buildCategory(ctx context.Context, conn storage.Conn, c Category, p plan) *Section {
	a := analytics[c]
	aggReq := storage.AggregationRequest{
		ProjectID:  p.projectID,
		EventType:  a.eventType,
		Conditions: a.conditions,
		Start:      p.start,
		End:        p.end,
		Bucketing:  p.bucketing,
		Dimensions: a.dimensions,
		Metrics:    a.metrics,
	}

	rows, err := conn.QueryBuckets(ctx, aggReq)
	if err != nil {
		return &Section{Err: dataSourceErr(err)}
	}

	periods := period.Split(storage.FillBuckets(rows, aggReq), a.key)
	section := &Section{
		CurrentBucket:  periods.CurrentBucket,
		PreviousBucket: periods.PreviousBucket,
	}

	if a.compare == nil {
		section.Resources = &ResourceDeltas{
			CPUIncrease:    periods.MeanDelta("cpu_used"),
			MemoryIncrease: periods.RelativeDelta("memory_used"),
		}
		return section
	}

	comparison, err := period.Compare(periods, *a.compare)
	if err != nil {
		section.Err = err
		return section
	}
	section.Comparison = &comparison
	return section
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrNoDataInPeriod):
		return "no_data"
	case errors.Is(err, ErrDataSource):
		return "data_source"
	default:
		return "other"
	}
}
