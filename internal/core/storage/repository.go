package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aevon-lab/aevon-insights/internal/core/bucket"
)

// ErrInvalidRequest is returned when an AggregationRequest references unknown
// columns or an empty window. Adapters never send such a request to the database.
var ErrInvalidRequest = errors.New("invalid aggregation request")

// MetricOp is the reduce operator applied to one event column per bucket.
type MetricOp string

const (
	// OpCount counts non-null values of Field (count(session_id)).
	OpCount MetricOp = "count"
	// OpAvg averages non-null values of Field.
	OpAvg MetricOp = "avg"
)

// Columns of the events table that may be grouped, filtered or aggregated.
// Identifiers are interpolated into SQL, so requests are checked against this set.
var Columns = map[string]struct{}{
	"session_id":            {},
	"name":                  {},
	"source":                {},
	"message":               {},
	"url_host":              {},
	"url_path":              {},
	"success":               {},
	"duration":              {},
	"avg_cpu":               {},
	"avg_used_js_heap_size": {},
}

// MetricSpec names one aggregated output column.
type MetricSpec struct {
	Name  string   // output column, e.g. "sessions"
	Op    MetricOp // count | avg
	Field string   // events column, e.g. "session_id"
}

// Condition is an equality filter on an events column (e.g. name = 'click_rage').
type Condition struct {
	Field string
	Value string
}

// AggregationRequest describes one bucketed aggregation over the events table:
// project, event type, window, bucket width, grouping dimensions and metrics.
//
// Response contract: rows ordered by bucket descending, one row per
// (bucket, dimension tuple) with at least one matching event, plus one row with
// null dimensions for every bucket of Bucketing.Sequence(Start, End) that has none.
type AggregationRequest struct {
	ProjectID  int64
	EventType  string
	Conditions []Condition
	Start      time.Time
	End        time.Time
	Bucketing  bucket.Bucketing
	Dimensions []string
	Metrics    []MetricSpec
}

// Validate checks every identifier against Columns and the window against the bucketing.
func (r AggregationRequest) Validate() error {
	if r.EventType == "" {
		return fmt.Errorf("%w: event type is required", ErrInvalidRequest)
	}
	if r.Bucketing.Width() <= 0 {
		return fmt.Errorf("%w: bucketing is not resolved", ErrInvalidRequest)
	}
	if !r.End.After(r.Start) {
		return fmt.Errorf("%w: end must be after start", ErrInvalidRequest)
	}
	if len(r.Metrics) == 0 {
		return fmt.Errorf("%w: at least one metric is required", ErrInvalidRequest)
	}
	for _, dim := range r.Dimensions {
		if _, ok := Columns[dim]; !ok {
			return fmt.Errorf("%w: unknown dimension %q", ErrInvalidRequest, dim)
		}
	}
	for _, cond := range r.Conditions {
		if _, ok := Columns[cond.Field]; !ok {
			return fmt.Errorf("%w: unknown condition field %q", ErrInvalidRequest, cond.Field)
		}
	}
	seen := make(map[string]struct{}, len(r.Metrics))
	for _, m := range r.Metrics {
		if _, ok := Columns[m.Field]; !ok {
			return fmt.Errorf("%w: unknown metric field %q", ErrInvalidRequest, m.Field)
		}
		if m.Op != OpCount && m.Op != OpAvg {
			return fmt.Errorf("%w: unsupported metric operator %q", ErrInvalidRequest, m.Op)
		}
		if !isIdentifier(m.Name) {
			return fmt.Errorf("%w: invalid metric name %q", ErrInvalidRequest, m.Name)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("%w: duplicate metric name %q", ErrInvalidRequest, m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}

// SourceColumns lists the distinct events columns the request reads:
// dimensions first, then metric fields.
func (r AggregationRequest) SourceColumns() []string {
	cols := make([]string, 0, len(r.Dimensions)+len(r.Metrics))
	seen := make(map[string]struct{}, cap(cols))
	add := func(col string) {
		if _, ok := seen[col]; !ok {
			seen[col] = struct{}{}
			cols = append(cols, col)
		}
	}
	for _, dim := range r.Dimensions {
		add(dim)
	}
	for _, m := range r.Metrics {
		add(m.Field)
	}
	return cols
}

// BucketedRow is one (bucket, dimension tuple) result row. A nil dimension is SQL NULL
// (the outer-join row of an empty bucket); a nil metric is an undefined aggregate.
type BucketedRow struct {
	Bucket  time.Time
	Dims    map[string]*string
	Metrics map[string]*float64
}

// Dim returns the named dimension and whether it is non-null.
func (r BucketedRow) Dim(name string) (string, bool) {
	v, ok := r.Dims[name]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Metric returns the named metric and whether it is defined.
func (r BucketedRow) Metric(name string) (float64, bool) {
	v, ok := r.Metrics[name]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Conn is a scoped session against the event store.
type Conn interface {
	// QueryBuckets runs one aggregation request and returns its rows in the
	// order described on AggregationRequest.
	QueryBuckets(ctx context.Context, req AggregationRequest) ([]BucketedRow, error)

	// Close releases the session. Closing twice is a no-op.
	Close() error
}

// Source hands out sessions against the event store.
type Source interface {
	Acquire(ctx context.Context) (Conn, error)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// EventWriter loads raw events into the store. Used for fixtures and backfills;
// the insights pipeline itself is read-only.
type EventWriter interface {
	InsertEvents(ctx context.Context, events []Event) (int, error)
}
