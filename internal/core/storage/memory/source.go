package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aevon-lab/aevon-insights/internal/core/storage"
)

// Source keeps events in memory and aggregates them in Go. It backs insightctl
// fixture runs and tests; results match the SQL adapters row for row.
type Source struct {
	mu     sync.RWMutex
	events []storage.Event
}

// NewSource creates a source seeded with events.
func NewSource(events ...storage.Event) *Source {
	return &Source{events: slices.Clone(events)}
}

// InsertEvents implements storage.EventWriter.
func (s *Source) InsertEvents(_ context.Context, events []storage.Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return len(events), nil
}

// Acquire implements storage.Source.
func (s *Source) Acquire(ctx context.Context) (storage.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &conn{source: s}, nil
}

type conn struct {
	source *Source
}

type group struct {
	bucket time.Time
	dims   []*string
	counts []int
	sums   []float64
}

func (c *conn) QueryBuckets(ctx context.Context, req storage.AggregationRequest) ([]storage.BucketedRow, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.source.mu.RLock()
	defer c.source.mu.RUnlock()

	groups := make(map[string]*group)
	var order []string

	for _, evt := range c.source.events {
		if !matches(evt, req) {
			continue
		}

		ts := req.Bucketing.Truncate(evt.Datetime)
		dims := make([]*string, len(req.Dimensions))
		var key strings.Builder
		key.WriteString(ts.Format(time.RFC3339))
		for i, dim := range req.Dimensions {
			key.WriteByte(0)
			if v, ok := evt.Text(dim); ok {
				dims[i] = &v
				key.WriteByte('=')
				key.WriteString(v)
			}
		}

		g, ok := groups[key.String()]
		if !ok {
			g = &group{
				bucket: ts,
				dims:   dims,
				counts: make([]int, len(req.Metrics)),
				sums:   make([]float64, len(req.Metrics)),
			}
			groups[key.String()] = g
			order = append(order, key.String())
		}

		for i, m := range req.Metrics {
			v, ok := evt.Number(m.Field)
			if !ok {
				if _, text := evt.Text(m.Field); !text {
					continue
				}
			}
			g.counts[i]++
			g.sums[i] += v
		}
	}

	rows := make([]storage.BucketedRow, 0, len(order))
	for _, key := range order {
		rows = append(rows, groups[key].row(req))
	}
	slices.SortFunc(rows, func(a, b storage.BucketedRow) int {
		if n := b.Bucket.Compare(a.Bucket); n != 0 {
			return n
		}
		return compareDims(a, b, req.Dimensions)
	})

	return storage.FillBuckets(rows, req), nil
}

func (c *conn) Close() error {
	return nil
}

func (g *group) row(req storage.AggregationRequest) storage.BucketedRow {
	row := storage.BucketedRow{
		Bucket:  g.bucket,
		Dims:    make(map[string]*string, len(req.Dimensions)),
		Metrics: make(map[string]*float64, len(req.Metrics)),
	}
	for i, dim := range req.Dimensions {
		row.Dims[dim] = g.dims[i]
	}
	for i, m := range req.Metrics {
		switch {
		case m.Op == storage.OpCount:
			v := float64(g.counts[i])
			row.Metrics[m.Name] = &v
		case g.counts[i] == 0:
			row.Metrics[m.Name] = nil
		default:
			v := g.sums[i] / float64(g.counts[i])
			row.Metrics[m.Name] = &v
		}
	}
	return row
}

func matches(evt storage.Event, req storage.AggregationRequest) bool {
	if evt.ProjectID != req.ProjectID || evt.Type != req.EventType {
		return false
	}
	if evt.Datetime.Before(req.Start) || !evt.Datetime.Before(req.End) {
		return false
	}
	for _, cond := range req.Conditions {
		if v, ok := evt.Text(cond.Field); !ok || v != cond.Value {
			return false
		}
	}
	return true
}

// compareDims orders rows of one bucket by dimension values, NULL first.
func compareDims(a, b storage.BucketedRow, dims []string) int {
	for _, dim := range dims {
		av, aok := a.Dim(dim)
		bv, bok := b.Dim(dim)
		switch {
		case aok == bok:
			if n := strings.Compare(av, bv); n != 0 {
				return n
			}
		case !aok:
			return -1
		default:
			return 1
		}
	}
	return 0
}
