package duckdb

import (
	"fmt"
	"strings"

	"github.com/aevon-lab/aevon-insights/internal/core/bucket"
	"github.com/aevon-lab/aevon-insights/internal/core/storage"
)

// timestampLayout is how timestamps are bound; events.datetime is a naive UTC TIMESTAMP.
const timestampLayout = "2006-01-02 15:04:05.999999"

var queryInsertEvent = `
	INSERT INTO events (` + strings.Join(storage.EventColumns, ", ") + `)
	VALUES (?, ?, CAST(? AS TIMESTAMP), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func bucketExpr(b bucket.Bucketing) string {
	switch b.Step().Unit() {
	case bucket.UnitHour:
		return "CAST(date_trunc('hour', datetime) AS TIMESTAMP)"
	case bucket.UnitDay:
		return "CAST(date_trunc('day', datetime) AS TIMESTAMP)"
	case bucket.UnitWeek:
		return "CAST(date_trunc('week', datetime) AS TIMESTAMP)"
	default:
		return fmt.Sprintf("time_bucket(to_seconds(%d), datetime, TIMESTAMP '1970-01-01 00:00:00')", b.Seconds())
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

// buildBucketQuery renders one validated request. The bucket series comes from
// range() over [first, limit) stepping by the bucket width; every bucket is fixed
// width in UTC so the series matches bucket.Bucketing.Sequence.
func buildBucketQuery(req storage.AggregationRequest) (string, []interface{}) {
	first, limit, _, _ := req.Bucketing.Span(req.Start, req.End)

	args := []interface{}{
		first.UTC().Format(timestampLayout),
		limit.UTC().Format(timestampLayout),
		req.Bucketing.Seconds(),
		req.ProjectID,
		req.EventType,
		req.Start.UTC().Format(timestampLayout),
		req.End.UTC().Format(timestampLayout),
	}
	where := []string{
		"project_id = ?",
		"event_type = ?",
		"datetime >= CAST(? AS TIMESTAMP)",
		"datetime < CAST(? AS TIMESTAMP)",
	}
	for _, cond := range req.Conditions {
		args = append(args, cond.Value)
		where = append(where, cond.Field+" = ?")
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
	sb.WriteString("\nFROM range(CAST(? AS TIMESTAMP), CAST(? AS TIMESTAMP), to_seconds(CAST(? AS BIGINT))) AS b(hh)\nLEFT JOIN (\n\tSELECT ")
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
