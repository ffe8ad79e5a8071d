package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ScanBucketedRows reads the column layout every SQL adapter selects:
// bucket, then req.Dimensions in order, then req.Metrics in order.
//
// Aggregates are scanned through decimal.NullDecimal so numeric (PostgreSQL avg of an
// integer column), double and bigint results share one path and SQL NULL survives.
func ScanBucketedRows(rows *sql.Rows, req AggregationRequest) ([]BucketedRow, error) {
	var out []BucketedRow
	for rows.Next() {
		var ts time.Time
		dims := make([]sql.NullString, len(req.Dimensions))
		metrics := make([]decimal.NullDecimal, len(req.Metrics))

		dest := make([]interface{}, 0, 1+len(dims)+len(metrics))
		dest = append(dest, &ts)
		for i := range dims {
			dest = append(dest, &dims[i])
		}
		for i := range metrics {
			dest = append(dest, &metrics[i])
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan bucketed row: %w", err)
		}

		row := BucketedRow{
			Bucket:  ts.UTC(),
			Dims:    make(map[string]*string, len(dims)),
			Metrics: make(map[string]*float64, len(metrics)),
		}
		for i, dim := range req.Dimensions {
			if dims[i].Valid {
				v := dims[i].String
				row.Dims[dim] = &v
			} else {
				row.Dims[dim] = nil
			}
		}
		for i, m := range req.Metrics {
			if metrics[i].Valid {
				v := metrics[i].Decimal.InexactFloat64()
				row.Metrics[m.Name] = &v
			} else {
				row.Metrics[m.Name] = nil
			}
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bucketed rows: %w", err)
	}
	return out, nil
}
