package storage

import (
	"slices"
	"time"
)

// FillBuckets returns rows ordered by bucket descending with one synthetic row
// (null dimensions, zero counts, undefined averages) for every bucket of the
// request window that rows do not contain. Rows sharing a bucket keep their order.
// Sources that outer-join against the bucket sequence already satisfy this and
// pass through unchanged apart from the ordering guarantee.
func FillBuckets(rows []BucketedRow, req AggregationRequest) []BucketedRow {
	present := make(map[time.Time]struct{}, len(rows))
	for _, row := range rows {
		present[row.Bucket.UTC()] = struct{}{}
	}

	out := make([]BucketedRow, 0, len(rows))
	out = append(out, rows...)
	for ts := range req.Bucketing.Sequence(req.Start, req.End) {
		if _, ok := present[ts]; ok {
			continue
		}
		out = append(out, EmptyRow(ts, req))
	}

	slices.SortStableFunc(out, func(a, b BucketedRow) int {
		return b.Bucket.Compare(a.Bucket)
	})
	return out
}

// EmptyRow builds the row an outer join yields for a bucket without events:
// count metrics are 0, averages and dimensions are null.
func EmptyRow(ts time.Time, req AggregationRequest) BucketedRow {
	row := BucketedRow{
		Bucket:  ts,
		Dims:    make(map[string]*string, len(req.Dimensions)),
		Metrics: make(map[string]*float64, len(req.Metrics)),
	}
	for _, dim := range req.Dimensions {
		row.Dims[dim] = nil
	}
	for _, m := range req.Metrics {
		if m.Op == OpCount {
			zero := 0.0
			row.Metrics[m.Name] = &zero
			continue
		}
		row.Metrics[m.Name] = nil
	}
	return row
}
