package insights

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aevon-lab/aevon-insights/internal/core/bucket"
	"github.com/aevon-lab/aevon-insights/internal/core/config"
	"github.com/aevon-lab/aevon-insights/internal/metrics"
	"golang.org/x/sync/errgroup"
)

const defaultSchedulerWorkers = 4

// SchedulerConfig selects what the scheduler refreshes.
type SchedulerConfig struct {
	Interval   time.Duration
	Projects   []int64
	Categories []Category
	Step       bucket.TimeStep
	Window     time.Duration // trailing window ending at the last complete bucket
	Workers    int
}

// SchedulerConfigFrom resolves the scheduler section of the service config.
// An empty category list selects every category.
func SchedulerConfigFrom(c config.SchedulerConfig) (SchedulerConfig, error) {
	step, err := bucket.ParseTimeStep(c.Step)
	if err != nil {
		return SchedulerConfig{}, fmt.Errorf("invalid scheduler.step: %w", err)
	}
	categories := Categories
	if len(c.Categories) > 0 {
		if categories, err = normalizeCategories(c.Categories); err != nil {
			return SchedulerConfig{}, fmt.Errorf("invalid scheduler.categories: %w", err)
		}
	}
	return SchedulerConfig{
		Interval:   c.Interval,
		Projects:   c.Projects,
		Categories: categories,
		Step:       step,
		Window:     c.Window,
		Workers:    c.Workers,
	}, nil
}

// Scheduler refreshes the latest report of every configured project on an interval.
type Scheduler struct {
	service *Service
	cfg     SchedulerConfig
	nowFn   func() time.Time
}

// NewScheduler creates a scheduler. Categories default to all, Step to hourly
// buckets, Window to one day.
func NewScheduler(service *Service, cfg SchedulerConfig) *Scheduler {
	if len(cfg.Categories) == 0 {
		cfg.Categories = Categories
	}
	if cfg.Step.IsZero() {
		cfg.Step = bucket.Hour
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultSchedulerWorkers
	}
	return &Scheduler{
		service: service,
		cfg:     cfg,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Start refreshes immediately and then on every tick until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting insights refresh scheduler",
		"interval", s.cfg.Interval,
		"projects", len(s.cfg.Projects),
		"step", s.cfg.Step.String(),
		"window", s.cfg.Window,
		"workers", s.cfg.Workers,
	)

	s.refreshAll(ctx)

	for {
		select {
		case <-ticker.C:
			s.refreshAll(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")
			return nil
		}
	}
}

// refreshAll rebuilds every project's report, at most Workers at a time.
// A failing project is logged and does not stop the others.
func (s *Scheduler) refreshAll(ctx context.Context) {
	bucketing, err := bucket.Resolve(s.cfg.Step)
	if err != nil {
		slog.Error("[Scheduler] Invalid step", "step", s.cfg.Step.String(), "error", err)
		return
	}
	end := bucketing.Truncate(s.nowFn())
	start := end.Add(-s.cfg.Window)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for _, projectID := range s.cfg.Projects {
		g.Go(func() error {
			req := Request{
				Categories: s.cfg.Categories,
				ProjectID:  projectID,
				Start:      start,
				End:        end,
				Step:       s.cfg.Step,
			}
			report, err := s.service.Refresh(gctx, req, TriggerScheduler)
			if err != nil {
				slog.Error("[Scheduler] Refresh failed", "project_id", projectID, "error", err)
				return nil
			}
			recordNewEvents(report)
			return nil
		})
	}

	_ = g.Wait()
	metrics.SchedulerLastRun.Set(float64(s.nowFn().Unix()))
	slog.Debug("[Scheduler] Refresh complete", "projects", len(s.cfg.Projects), "end", end)
}

func recordNewEvents(report *Report) {
	project := strconv.FormatInt(report.ProjectID, 10)
	for c, section := range report.Insights {
		if section.Comparison == nil {
			continue
		}
		metrics.NewEvents.WithLabelValues(project, string(c)).Set(float64(len(section.Comparison.NewEvents)))
	}
}
