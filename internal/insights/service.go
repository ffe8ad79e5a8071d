package insights

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aevon-lab/aevon-insights/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// Builds triggered by different callers.
const (
	TriggerAPI       = "api"
	TriggerScheduler = "scheduler"
	TriggerCLI       = "cli"
)

// Service fronts a Builder for the HTTP layer and the scheduler. Identical
// concurrent requests share one build, and the latest report per project is kept
// in memory.
type Service struct {
	builder *Builder
	group   singleflight.Group

	mu     sync.RWMutex
	latest map[int64]latestReport
}

type latestReport struct {
	report      *Report
	refreshedAt time.Time
}

// NewService creates a service around builder.
func NewService(builder *Builder) *Service {
	return &Service{
		builder: builder,
		latest:  make(map[int64]latestReport),
	}
}

// Build computes a report, sharing the result with concurrent identical calls.
//
// The shared build does not inherit the cancellation of the caller that started
// it, so one disconnected client cannot fail the others. Each caller returns as
// soon as its own ctx is done.
func (s *Service) Build(ctx context.Context, req Request, trigger string) (*Report, error) {
	ch := s.group.DoChan(requestKey(req), func() (interface{}, error) {
		return s.builder.Build(context.WithoutCancel(ctx), req, nil)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrDataSource, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		metrics.RecordReport(trigger)
		return res.Val.(*Report), nil
	}
}

// Refresh builds a report and stores it as the latest for its project.
func (s *Service) Refresh(ctx context.Context, req Request, trigger string) (*Report, error) {
	report, err := s.Build(ctx, req, trigger)
	if err != nil {
		return nil, err
	}
	refreshedAt := time.Now()
	s.mu.Lock()
	if prev, ok := s.latest[report.ProjectID]; !ok || !prev.refreshedAt.After(refreshedAt) {
		s.latest[report.ProjectID] = latestReport{report: report, refreshedAt: refreshedAt}
	}
	s.mu.Unlock()
	return report, nil
}

// Latest returns the most recently refreshed report of a project.
func (s *Service) Latest(projectID int64) (*Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.latest[projectID]
	return l.report, ok
}

// requestKey identifies a request for deduplication. Zero windows resolve to the
// current day inside Build, so they key by date.
func requestKey(req Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d|", req.ProjectID)
	for _, c := range req.Categories {
		sb.WriteString(string(c))
		sb.WriteByte(',')
	}
	fmt.Fprintf(&sb, "|%s|%s|%s",
		keyTime(req.Start), keyTime(req.End), req.Step.String())
	return sb.String()
}

func keyTime(t time.Time) string {
	if t.IsZero() {
		return "default:" + time.Now().UTC().Format(time.DateOnly)
	}
	return t.UTC().Format(time.RFC3339Nano)
}
