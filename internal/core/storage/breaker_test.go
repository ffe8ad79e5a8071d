package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aevon-lab/aevon-insights/internal/core/bucket"
	"github.com/aevon-lab/aevon-insights/internal/core/storage"
	storagemocks "github.com/aevon-lab/aevon-insights/internal/mocks/storage"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	conn := storagemocks.NewConn(t)
	source := storagemocks.NewSource(t)
	source.EXPECT().Acquire(mock.Anything).Return(conn, nil)

	dbErr := errors.New("connection refused")
	conn.EXPECT().QueryBuckets(mock.Anything, mock.Anything).Return(nil, dbErr).Times(2)

	breaker := storage.NewBreaker(source, storage.BreakerSettings{FailureThreshold: 2, OpenTimeout: time.Minute})
	c, err := breaker.Acquire(context.Background())
	require.NoError(t, err)

	req := hourRequest(t)
	for i := 0; i < 2; i++ {
		_, err = c.QueryBuckets(context.Background(), req)
		require.ErrorIs(t, err, dbErr)
	}

	_, err = c.QueryBuckets(context.Background(), req)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.Equal(t, gobreaker.StateOpen, breaker.State())
}

func TestBreaker_AcquireFailuresOpenBreaker(t *testing.T) {
	source := storagemocks.NewSource(t)
	dbErr := errors.New("too many clients already")
	source.EXPECT().Acquire(mock.Anything).Return(nil, dbErr).Times(2)

	breaker := storage.NewBreaker(source, storage.BreakerSettings{FailureThreshold: 2, OpenTimeout: time.Minute})
	for i := 0; i < 2; i++ {
		_, err := breaker.Acquire(context.Background())
		require.ErrorIs(t, err, dbErr)
	}
	require.Equal(t, gobreaker.StateOpen, breaker.State())

	// The source is not touched while the breaker is open.
	_, err := breaker.Acquire(context.Background())
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreaker_OpenAfterQueryFailuresBlocksAcquire(t *testing.T) {
	conn := storagemocks.NewConn(t)
	source := storagemocks.NewSource(t)
	source.EXPECT().Acquire(mock.Anything).Return(conn, nil).Once()
	conn.EXPECT().QueryBuckets(mock.Anything, mock.Anything).Return(nil, errors.New("i/o timeout")).Once()

	breaker := storage.NewBreaker(source, storage.BreakerSettings{FailureThreshold: 1, OpenTimeout: time.Minute})
	c, err := breaker.Acquire(context.Background())
	require.NoError(t, err)
	_, err = c.QueryBuckets(context.Background(), hourRequest(t))
	require.Error(t, err)

	_, err = breaker.Acquire(context.Background())
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreaker_InvalidRequestsDoNotTrip(t *testing.T) {
	conn := storagemocks.NewConn(t)
	source := storagemocks.NewSource(t)
	source.EXPECT().Acquire(mock.Anything).Return(conn, nil)

	invalid := errors.Join(storage.ErrInvalidRequest, errors.New("unknown dimension"))
	conn.EXPECT().QueryBuckets(mock.Anything, mock.Anything).Return(nil, invalid).Times(3)

	breaker := storage.NewBreaker(source, storage.BreakerSettings{FailureThreshold: 1})
	c, err := breaker.Acquire(context.Background())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = c.QueryBuckets(context.Background(), hourRequest(t))
		require.ErrorIs(t, err, storage.ErrInvalidRequest)
	}
	require.Equal(t, gobreaker.StateClosed, breaker.State())
}

func TestBreaker_PassesRowsAndClose(t *testing.T) {
	conn := storagemocks.NewConn(t)
	source := storagemocks.NewSource(t)
	source.EXPECT().Acquire(mock.Anything).Return(conn, nil).Once()

	req := hourRequest(t)
	rows := []storage.BucketedRow{storage.EmptyRow(req.Start, req)}
	conn.EXPECT().QueryBuckets(mock.Anything, req).Return(rows, nil).Once()
	conn.EXPECT().Close().Return(nil).Once()

	breaker := storage.NewBreaker(source, storage.BreakerSettings{})
	c, err := breaker.Acquire(context.Background())
	require.NoError(t, err)

	got, err := c.QueryBuckets(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, rows, got)
	require.NoError(t, c.Close())
}

func hourRequest(t *testing.T) storage.AggregationRequest {
	t.Helper()

	b, err := bucket.Resolve(bucket.Hour)
	require.NoError(t, err)

	return storage.AggregationRequest{
		ProjectID: 1,
		EventType: "ERROR",
		Start:     time.Date(2022, 4, 19, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2022, 4, 19, 1, 0, 0, 0, time.UTC),
		Bucketing: b,
		Metrics:   []storage.MetricSpec{{Name: "sessions", Op: storage.OpCount, Field: "session_id"}},
	}
}
