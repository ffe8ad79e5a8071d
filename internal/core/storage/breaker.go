package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerSettings configures the circuit breaker in front of a Source.
type BreakerSettings struct {
	Name             string
	FailureThreshold uint32        // consecutive acquire or query failures before opening
	OpenTimeout      time.Duration // how long the breaker stays open before probing
}

// Breaker wraps a Source so connection acquires and aggregation queries fail fast
// while the event store is unhealthy. Both count toward the same breaker. It never
// retries; an open breaker surfaces gobreaker.ErrOpenState.
type Breaker struct {
	source Source
	cb     *gobreaker.CircuitBreaker[interface{}]
}

// NewBreaker wraps source with a circuit breaker.
func NewBreaker(source Source, settings BreakerSettings) *Breaker {
	threshold := settings.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	name := settings.Name
	if name == "" {
		name = "event-store"
	}

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:    name,
		Timeout: settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellations and malformed requests say nothing about store health.
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrInvalidRequest)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("[Breaker] State changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Breaker{source: source, cb: cb}
}

// Acquire implements Source.
func (b *Breaker) Acquire(ctx context.Context) (Conn, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.source.Acquire(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &breakerConn{conn: v.(Conn), cb: b.cb}, nil
}

// State exposes the breaker state for health reporting.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

type breakerConn struct {
	conn Conn
	cb   *gobreaker.CircuitBreaker[interface{}]
}

func (c *breakerConn) QueryBuckets(ctx context.Context, req AggregationRequest) ([]BucketedRow, error) {
	v, err := c.cb.Execute(func() (interface{}, error) {
		return c.conn.QueryBuckets(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	rows, _ := v.([]BucketedRow)
	return rows, nil
}

func (c *breakerConn) Close() error {
	return c.conn.Close()
}
