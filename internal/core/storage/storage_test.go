package storage

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aevon-lab/aevon-insights/internal/core/bucket"
	"github.com/stretchr/testify/require"
)

func TestAggregationRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *AggregationRequest)
		wantErr bool
	}{
		{name: "valid", mutate: func(*AggregationRequest) {}},
		{name: "missing event type", mutate: func(r *AggregationRequest) { r.EventType = "" }, wantErr: true},
		{name: "unresolved bucketing", mutate: func(r *AggregationRequest) { r.Bucketing = bucket.Bucketing{} }, wantErr: true},
		{name: "empty window", mutate: func(r *AggregationRequest) { r.End = r.Start }, wantErr: true},
		{name: "no metrics", mutate: func(r *AggregationRequest) { r.Metrics = nil }, wantErr: true},
		{name: "unknown dimension", mutate: func(r *AggregationRequest) { r.Dimensions = []string{"tenant"} }, wantErr: true},
		{name: "unknown condition", mutate: func(r *AggregationRequest) {
			r.Conditions = []Condition{{Field: "1=1 OR name", Value: "x"}}
		}, wantErr: true},
		{name: "unknown metric field", mutate: func(r *AggregationRequest) { r.Metrics[0].Field = "password" }, wantErr: true},
		{name: "unsupported operator", mutate: func(r *AggregationRequest) { r.Metrics[0].Op = "sum" }, wantErr: true},
		{name: "unsafe metric name", mutate: func(r *AggregationRequest) { r.Metrics[0].Name = "x; --" }, wantErr: true},
		{name: "duplicate metric name", mutate: func(r *AggregationRequest) {
			r.Metrics = append(r.Metrics, MetricSpec{Name: "sessions", Op: OpAvg, Field: "duration"})
		}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := testRequest(t)
			tc.mutate(&req)
			err := req.Validate()
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAggregationRequest_SourceColumns(t *testing.T) {
	req := testRequest(t)
	req.Dimensions = []string{"url_host", "url_path"}
	req.Metrics = []MetricSpec{
		{Name: "sessions", Op: OpCount, Field: "session_id"},
		{Name: "hosts", Op: OpCount, Field: "url_host"},
		{Name: "avg_duration", Op: OpAvg, Field: "duration"},
	}

	require.Equal(t, []string{"url_host", "url_path", "session_id", "duration"}, req.SourceColumns())
}

func TestFillBuckets(t *testing.T) {
	req := testRequest(t)
	req.End = req.Start.Add(3 * time.Hour)
	req.Metrics = append(req.Metrics, MetricSpec{Name: "avg_duration", Op: OpAvg, Field: "duration"})

	name := "TypeError"
	sessions, duration := 4.0, 12.0
	present := BucketedRow{
		Bucket:  req.Start.Add(time.Hour),
		Dims:    map[string]*string{"name": &name},
		Metrics: map[string]*float64{"sessions": &sessions, "avg_duration": &duration},
	}

	rows := FillBuckets([]BucketedRow{present}, req)
	require.Len(t, rows, 3)
	require.Equal(t, req.Start.Add(2*time.Hour), rows[0].Bucket)
	require.Equal(t, present, rows[1])
	require.Equal(t, req.Start, rows[2].Bucket)

	empty := rows[0]
	_, ok := empty.Dim("name")
	require.False(t, ok)
	count, ok := empty.Metric("sessions")
	require.True(t, ok)
	require.Zero(t, count)
	_, ok = empty.Metric("avg_duration")
	require.False(t, ok)
}

func TestFillBuckets_KeepsOrderWithinBucket(t *testing.T) {
	req := testRequest(t)
	a, b := "a", "b"
	rows := FillBuckets([]BucketedRow{
		{Bucket: req.Start, Dims: map[string]*string{"name": &b}},
		{Bucket: req.Start, Dims: map[string]*string{"name": &a}},
	}, req)

	require.Len(t, rows, 2)
	first, _ := rows[0].Dim("name")
	require.Equal(t, "b", first)
}

func TestScanBucketedRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	req := testRequest(t)
	req.Metrics = append(req.Metrics, MetricSpec{Name: "avg_duration", Op: OpAvg, Field: "duration"})

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"hh", "name", "sessions", "avg_duration"}).
		AddRow(req.Start, "TypeError", int64(2), "153.2500000000000000").
		AddRow(req.Start, nil, int64(0), nil))

	rows, err := db.Query("SELECT")
	require.NoError(t, err)
	defer rows.Close()

	out, err := ScanBucketedRows(rows, req)
	require.NoError(t, err)
	require.Len(t, out, 2)

	avg, ok := out[0].Metric("avg_duration")
	require.True(t, ok)
	require.InDelta(t, 153.25, avg, 1e-9)

	_, ok = out[1].Dim("name")
	require.False(t, ok)
	_, ok = out[1].Metric("avg_duration")
	require.False(t, ok)
}

func testRequest(t *testing.T) AggregationRequest {
	t.Helper()

	b, err := bucket.Resolve(bucket.Hour)
	require.NoError(t, err)

	return AggregationRequest{
		ProjectID:  1307,
		EventType:  "ERROR",
		Start:      time.Date(2022, 4, 19, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2022, 4, 19, 1, 0, 0, 0, time.UTC),
		Bucketing:  b,
		Dimensions: []string{"name"},
		Metrics:    []MetricSpec{{Name: "sessions", Op: OpCount, Field: "session_id"}},
	}
}
