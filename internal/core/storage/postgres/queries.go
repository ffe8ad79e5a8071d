package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/aevon-lab/aevon-insights/internal/core/bucket"
	"github.com/aevon-lab/aevon-insights/internal/core/storage"
	"github.com/lib/pq"
)

const queryValidateSchema = `
	SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_name = 'events'
	)
`

// queryInsertEvent has one placeholder per storage.EventColumns entry.
var queryInsertEvent = `
	INSERT INTO events (` + strings.Join(storage.EventColumns, ", ") + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

// bucketExpr truncates events.datetime to the bucket start the same way
// bucket.Bucketing.Truncate does, so joined buckets line up with the generated series.
func bucketExpr(b bucket.Bucketing) string {
	switch b.Step().Unit() {
	case bucket.UnitHour:
		return "date_trunc('hour', datetime, 'UTC')"
	case bucket.UnitDay:
		return "date_trunc('day', datetime, 'UTC')"
	case bucket.UnitWeek:
		// ISO weeks start on Monday.
		return "date_trunc('week', datetime, 'UTC')"
	default:
		secs := b.Seconds()
		return fmt.Sprintf("to_timestamp(floor(extract(epoch FROM datetime) / %d) * %d)", secs, secs)
	}
}

func metricExpr(m storage.MetricSpec) string {
	switch m.Op {
	case storage.OpCount:
		return fmt.Sprintf("count(e.%s) AS %s", m.Field, m.Name)
	default:
		return fmt.Sprintf("avg(e.%s) AS %s", m.Field, m.Name)
	}
}

// buildBucketQuery renders one validated request. The bucket series is passed as a
// timestamptz array and outer-joined against the filtered events, so every bucket of
// the window yields at least one row.
//
// Column order matches storage.ScanBucketedRows: bucket, dimensions, metrics.
func buildBucketQuery(req storage.AggregationRequest) (string, []interface{}) {
	var buckets pq.StringArray
	for ts := range req.Bucketing.Sequence(req.Start, req.End) {
		buckets = append(buckets, ts.Format(time.RFC3339))
	}

	args := []interface{}{buckets, req.ProjectID, req.EventType, req.Start.UTC(), req.End.UTC()}
	where := []string{
		"project_id = $2",
		"event_type = $3",
		"datetime >= $4",
		"datetime < $5",
	}
	for _, cond := range req.Conditions {
		args = append(args, cond.Value)
		where = append(where, fmt.Sprintf("%s = $%d", cond.Field, len(args)))
	}

	outer := []string{"b.hh"}
	group := []string{"b.hh"}
	for _, dim := range req.Dimensions {
		outer = append(outer, "e."+dim)
		group = append(group, "e."+dim)
	}
	for _, m := range req.Metrics {
		outer = append(outer, metricExpr(m))
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(outer, ", "))
	sb.WriteString("\nFROM unnest($1::timestamptz[]) AS b(hh)\nLEFT JOIN (\n\tSELECT ")
	sb.WriteString(strings.Join(req.SourceColumns(), ", "))
	sb.WriteString(", ")
	sb.WriteString(bucketExpr(req.Bucketing))
	sb.WriteString(" AS dtime\n\tFROM events\n\tWHERE ")
	sb.WriteString(strings.Join(where, " AND "))
	sb.WriteString("\n) AS e ON e.dtime = b.hh\nGROUP BY ")
	sb.WriteString(strings.Join(group, ", "))
	sb.WriteString("\nORDER BY b.hh DESC")

	return sb.String(), args
}
