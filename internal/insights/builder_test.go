package insights

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aevon-lab/aevon-insights/internal/core/bucket"
	"github.com/aevon-lab/aevon-insights/internal/core/storage"
	"github.com/aevon-lab/aevon-insights/internal/core/storage/memory"
	storagemocks "github.com/aevon-lab/aevon-insights/internal/mocks/storage"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const projectID = 1307

var (
	windowStart = time.Date(2022, 4, 19, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2022, 4, 21, 0, 0, 0, 0, time.UTC)
	currentHour = time.Date(2022, 4, 20, 23, 0, 0, 0, time.UTC)
	prevHour    = currentHour.Add(-time.Hour)
	olderHour   = currentHour.Add(-2 * time.Hour)
)

func errorEvent(ts time.Time, session int64, name string) storage.Event {
	return storage.Event{ProjectID: projectID, Type: "ERROR", Datetime: ts.Add(5 * time.Minute), SessionID: session, Name: name}
}

func errorEvents() []storage.Event {
	return []storage.Event{
		errorEvent(currentHour, 1, "TypeError"),
		errorEvent(currentHour, 2, "TypeError"),
		errorEvent(currentHour, 3, "TypeError"),
		errorEvent(currentHour, 4, "RangeError"),
		errorEvent(currentHour, 5, "NewError"),
		errorEvent(prevHour, 6, "TypeError"),
		errorEvent(prevHour, 7, "RangeError"),
		errorEvent(prevHour, 8, "RangeError"),
		errorEvent(prevHour, 9, "OldError"),
		// Older buckets never take part in the comparison.
		errorEvent(olderHour, 10, "AncientError"),
	}
}

func newTestBuilder(source storage.Source) *Builder {
	b := NewBuilder(source, bucket.Hour)
	b.nowFn = func() time.Time { return time.Date(2022, 4, 21, 10, 0, 0, 0, time.UTC) }
	return b
}

func errorsRequest() Request {
	return Request{
		Categories: []Category{Errors},
		ProjectID:  projectID,
		Start:      windowStart,
		End:        windowEnd,
		Step:       bucket.Hour,
	}
}

func TestBuilder_BuildErrors(t *testing.T) {
	b := newTestBuilder(memory.NewSource(errorEvents()...))

	report, err := b.Build(context.Background(), errorsRequest(), nil)
	require.NoError(t, err)
	require.NoError(t, report.Err())

	section, ok := report.Section(Errors)
	require.True(t, ok)
	require.NotNil(t, section.Comparison)
	require.Equal(t, currentHour, section.CurrentBucket)
	require.Equal(t, prevHour, section.PreviousBucket)

	cmp := section.Comparison
	require.Equal(t, []string{"NewError"}, cmp.NewEvents)

	require.Len(t, cmp.Increase, 2)
	require.Equal(t, "TypeError", cmp.Increase[0].Key)
	require.Equal(t, 2.0, *cmp.Increase[0].Delta)
	require.Equal(t, "RangeError", cmp.Increase[1].Key)
	require.Equal(t, -1.0, *cmp.Increase[1].Delta)

	require.Equal(t, "TypeError", cmp.Ratio[0].Key)
	var total float64
	for _, kv := range cmp.Ratio {
		total += kv.Value
	}
	require.InDelta(t, 1.0, total, 1e-9)
}

func TestBuilder_BuildIsIdempotent(t *testing.T) {
	b := NewBuilder(memory.NewSource(errorEvents()...), bucket.Hour)
	req := errorsRequest()
	req.Categories = Categories

	first, err := b.Build(context.Background(), req, nil)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	second, err := b.Build(context.Background(), req, nil)
	require.NoError(t, err)
	require.Equal(t, first, second)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	c, err := json.Marshal(second)
	require.NoError(t, err)
	require.JSONEq(t, string(a), string(c))
	require.Equal(t, string(a), string(c))
}

func TestBuilder_BuildNetworkRanksRegressionsFirst(t *testing.T) {
	ok, failed := true, false
	fast, slow := 100.0, 400.0
	request := func(ts time.Time, session int64, path string, success *bool, duration *float64) storage.Event {
		return storage.Event{
			ProjectID: projectID, Type: "REQUEST", Datetime: ts, SessionID: session,
			URLHost: "api.example.com", URLPath: path, Success: success, Duration: duration,
		}
	}

	source := memory.NewSource(
		// /checkout: 1.0 -> 0.5 success, slower.
		request(prevHour, 1, "/checkout", &ok, &fast),
		request(currentHour, 2, "/checkout", &ok, &fast),
		request(currentHour, 3, "/checkout", &failed, &slow),
		// /search: 0.5 -> 1.0 success.
		request(prevHour, 4, "/search", &ok, &fast),
		request(prevHour, 5, "/search", &failed, &fast),
		request(currentHour, 6, "/search", &ok, &fast),
		// New path in the current period.
		request(currentHour, 7, "/profile", &ok, &fast),
	)

	req := errorsRequest()
	req.Categories = []Category{Network}
	report, err := newTestBuilder(source).Build(context.Background(), req, nil)
	require.NoError(t, err)

	section, _ := report.Section(Network)
	require.NoError(t, section.Err)
	cmp := section.Comparison

	require.Equal(t, []string{"api.example.com/profile"}, cmp.NewEvents)
	require.Equal(t, "api.example.com/checkout", cmp.Increase[0].Key)
	require.InDelta(t, -0.5, *cmp.Increase[0].Delta, 1e-9)
	require.InDelta(t, 150, *cmp.Increase[0].Deltas["avg_duration"], 1e-9)
	require.Equal(t, "api.example.com/search", cmp.Increase[1].Key)

	// Ratio is the current period ordered by success rate, lowest first.
	require.Equal(t, "api.example.com/checkout", cmp.Ratio[0].Key)
	require.InDelta(t, 0.5, cmp.Ratio[0].Value, 1e-9)
}

func TestBuilder_BuildResources(t *testing.T) {
	perf := func(ts time.Time, session int64, host string, cpu, mem float64) storage.Event {
		return storage.Event{
			ProjectID: projectID, Type: "PERFORMANCE", Datetime: ts, SessionID: session,
			URLHost: host, AvgCPU: &cpu, AvgUsedJSHeapSize: &mem,
		}
	}
	source := memory.NewSource(
		perf(prevHour, 1, "a", 10, 100),
		perf(currentHour, 2, "a", 20, 150),
		perf(currentHour, 3, "b", 40, 150),
	)

	req := errorsRequest()
	req.Categories = []Category{Resources}
	report, err := newTestBuilder(source).Build(context.Background(), req, nil)
	require.NoError(t, err)

	section, _ := report.Section(Resources)
	require.NoError(t, section.Err)
	require.NotNil(t, section.Resources)
	require.InDelta(t, 20, *section.Resources.CPUIncrease, 1e-9)
	require.InDelta(t, 0.5, *section.Resources.MemoryIncrease, 1e-9)
}

func TestBuilder_CategoryFailuresAreIsolated(t *testing.T) {
	// No rage clicks at all: the share ratio has no denominator.
	b := newTestBuilder(memory.NewSource(errorEvents()...))
	req := errorsRequest()
	req.Categories = []Category{Rage, Errors}

	report, err := b.Build(context.Background(), req, nil)
	require.NoError(t, err)

	rage, _ := report.Section(Rage)
	require.ErrorIs(t, rage.Err, ErrNoDataInPeriod)
	require.Equal(t, []Category{Rage}, report.Failed())
	require.ErrorIs(t, report.Err(), ErrNoDataInPeriod)

	errs, _ := report.Section(Errors)
	require.NoError(t, errs.Err)
	require.NotNil(t, errs.Comparison)
}

func TestBuilder_ValidationFailsBeforeQuerying(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Request)
		wantErr error
	}{
		{name: "empty selection", mutate: func(r *Request) { r.Categories = nil }, wantErr: ErrEmptySelection},
		{name: "unknown category", mutate: func(r *Request) { r.Categories = []Category{"sessions"} }, wantErr: ErrInvalidCategory},
		{name: "zero project", mutate: func(r *Request) { r.ProjectID = 0 }, wantErr: ErrInvalidWindow},
		{name: "end before start", mutate: func(r *Request) { r.Start, r.End = r.End, r.Start }, wantErr: ErrInvalidWindow},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			source := storagemocks.NewSource(t)
			req := errorsRequest()
			tc.mutate(&req)

			_, err := newTestBuilder(source).Build(context.Background(), req, nil)
			require.ErrorIs(t, err, tc.wantErr)
			require.True(t, IsValidation(err))
		})
	}
}

func TestBuilder_BorrowedConnIsNotClosed(t *testing.T) {
	source := storagemocks.NewSource(t)
	conn := storagemocks.NewConn(t)
	conn.EXPECT().QueryBuckets(mock.Anything, mock.Anything).
		RunAndReturn(memoryQuery(t, errorEvents())).
		Once()

	report, err := newTestBuilder(source).Build(context.Background(), errorsRequest(), conn)
	require.NoError(t, err)
	require.NoError(t, report.Err())
}

func TestBuilder_OwnedConnReleasedOnFailure(t *testing.T) {
	source := storagemocks.NewSource(t)
	conn := storagemocks.NewConn(t)
	dbErr := errors.New("connection reset by peer")

	source.EXPECT().Acquire(mock.Anything).Return(conn, nil).Once()
	conn.EXPECT().QueryBuckets(mock.Anything, mock.MatchedBy(func(r storage.AggregationRequest) bool {
		return r.EventType == "ERROR"
	})).Return(nil, dbErr).Once()
	conn.EXPECT().QueryBuckets(mock.Anything, mock.MatchedBy(func(r storage.AggregationRequest) bool {
		return r.EventType == "PERFORMANCE"
	})).Return(nil, nil).Once()
	conn.EXPECT().Close().Return(nil).Once()

	req := errorsRequest()
	req.Categories = []Category{Resources, Errors}
	report, err := newTestBuilder(source).Build(context.Background(), req, nil)
	require.NoError(t, err)

	errs, _ := report.Section(Errors)
	require.ErrorIs(t, errs.Err, ErrDataSource)
	require.ErrorIs(t, errs.Err, dbErr)

	resources, _ := report.Section(Resources)
	require.NoError(t, resources.Err)
	require.Nil(t, resources.Resources.CPUIncrease)
}

func TestBuilder_AcquireFailure(t *testing.T) {
	source := storagemocks.NewSource(t)
	source.EXPECT().Acquire(mock.Anything).Return(nil, errors.New("too many connections")).Once()

	_, err := newTestBuilder(source).Build(context.Background(), errorsRequest(), nil)
	require.ErrorIs(t, err, ErrDataSource)
	require.False(t, IsValidation(err))
}

func TestBuilder_DefaultWindowResolvedAtCallTime(t *testing.T) {
	b := newTestBuilder(memory.NewSource())
	req := errorsRequest()
	req.Start, req.End = time.Time{}, time.Time{}
	req.Step = bucket.TimeStep{}
	req.Categories = []Category{Resources}

	report, err := b.Build(context.Background(), req, nil)
	require.NoError(t, err)
	require.Equal(t, time.Date(2022, 4, 20, 0, 0, 0, 0, time.UTC), report.Start)
	require.Equal(t, time.Date(2022, 4, 21, 0, 0, 0, 0, time.UTC), report.End)
	require.Equal(t, bucket.Hour, report.Step)

	b.nowFn = func() time.Time { return time.Date(2022, 5, 1, 3, 0, 0, 0, time.UTC) }
	report, err = b.Build(context.Background(), req, nil)
	require.NoError(t, err)
	require.Equal(t, time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC), report.End)
}

func TestParseCategories(t *testing.T) {
	got, err := ParseCategories("resources, errors,errors")
	require.NoError(t, err)
	require.Equal(t, []Category{Errors, Resources}, got)

	_, err = ParseCategories(" , ")
	require.ErrorIs(t, err, ErrEmptySelection)

	_, err = ParseCategories("errors,crashes")
	require.ErrorIs(t, err, ErrInvalidCategory)
}

func TestReport_MarshalJSON(t *testing.T) {
	b := newTestBuilder(memory.NewSource(errorEvents()...))
	req := errorsRequest()
	req.Categories = []Category{Errors, Rage, Resources}

	report, err := b.Build(context.Background(), req, nil)
	require.NoError(t, err)

	raw, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded struct {
		Step     string                            `json:"step"`
		Insights map[string]map[string]interface{} `json:"insights"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "hour", decoded.Step)
	require.Contains(t, decoded.Insights["errors"], "ratio")
	require.Contains(t, decoded.Insights["errors"], "increase")
	require.Contains(t, decoded.Insights["errors"], "new_events")
	require.Contains(t, decoded.Insights["rage"], "error")
	require.Contains(t, decoded.Insights["resources"], "cpu_increase")
	require.Nil(t, decoded.Insights["resources"]["memory_increase"])
}

// memoryQuery answers QueryBuckets from an in-memory source.
func memoryQuery(t *testing.T, events []storage.Event) func(context.Context, storage.AggregationRequest) ([]storage.BucketedRow, error) {
	t.Helper()
	source := memory.NewSource(events...)
	return func(ctx context.Context, req storage.AggregationRequest) ([]storage.BucketedRow, error) {
		conn, err := source.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer conn.Close()
		return conn.QueryBuckets(ctx, req)
	}
}
