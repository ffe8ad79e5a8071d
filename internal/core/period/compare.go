package period

import (
	"cmp"
	"errors"
	"slices"

	"github.com/aevon-lab/aevon-insights/internal/core/storage"
	"github.com/montanaflynn/stats"
)

// ErrNoDataInPeriod is returned when a share-of-total needs a non-zero total.
var ErrNoDataInPeriod = errors.New("no data in current period")

// Direction orders increase rankings.
type Direction int

const (
	// Descending ranks the biggest increase first.
	Descending Direction = iota
	// Ascending ranks the worst regression first.
	Ascending
)

// RatioRule selects how the ratio list is computed.
type RatioRule int

const (
	// RatioShare reports each key's share of the current-period metric total.
	RatioShare RatioRule = iota
	// RatioRate reports current rows sorted ascending by a rate metric.
	RatioRate
)

// KeyValue is one ratio entry.
type KeyValue struct {
	Key   string  `json:"key" yaml:"key"`
	Value float64 `json:"value" yaml:"value"`
}

// Change is the per-key delta of a common key. Delta is nil when undefined.
// Deltas holds every compared metric when more than one was requested.
type Change struct {
	Key    string              `json:"key" yaml:"key"`
	Delta  *float64            `json:"delta" yaml:"delta"`
	Deltas map[string]*float64 `json:"deltas,omitempty" yaml:"deltas,omitempty"`
}

// Comparison is the outcome of comparing two periods for one category.
type Comparison struct {
	Ratio     []KeyValue `json:"ratio" yaml:"ratio"`
	Increase  []Change   `json:"increase" yaml:"increase"`
	NewEvents []string   `json:"new_events" yaml:"new_events"`
}

// Options configure Compare. Metrics[0] is the primary metric used for ranking.
type Options struct {
	Metrics     []string
	Direction   Direction
	Ratio       RatioRule
	RatioMetric string
}

// NewKeys returns current keys absent from the previous period, in current order.
func (p Periods) NewKeys() []string {
	prev := toSet(p.PreviousKeys)
	out := make([]string, 0, len(p.CurrentKeys))
	for _, k := range p.CurrentKeys {
		if _, ok := prev[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// CommonKeys returns current keys also present in the previous period, in current order.
func (p Periods) CommonKeys() []string {
	prev := toSet(p.PreviousKeys)
	out := make([]string, 0, len(p.CurrentKeys))
	for _, k := range p.CurrentKeys {
		if _, ok := prev[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Delta returns mean(current) - mean(previous) of metric over the rows of key.
// Null metric values are skipped; nil means one side has no values.
func (p Periods) Delta(key, metric string) *float64 {
	cur, ok := mean(p.values(p.Current, key, metric))
	if !ok {
		return nil
	}
	prev, ok := mean(p.values(p.Previous, key, metric))
	if !ok {
		return nil
	}
	d := cur - prev
	return &d
}

// Changes returns one Change per common key; Delta is taken from metrics[0].
func (p Periods) Changes(metrics ...string) []Change {
	common := p.CommonKeys()
	out := make([]Change, 0, len(common))
	for _, k := range common {
		c := Change{Key: k}
		if len(metrics) > 1 {
			c.Deltas = make(map[string]*float64, len(metrics))
		}
		for i, m := range metrics {
			d := p.Delta(k, m)
			if i == 0 {
				c.Delta = d
			}
			if c.Deltas != nil {
				c.Deltas[m] = d
			}
		}
		out = append(out, c)
	}
	return out
}

// RatioByRate returns keyed current rows sorted ascending by metric. Rows with a
// null key or metric are left out.
func (p Periods) RatioByRate(metric string) []KeyValue {
	out := make([]KeyValue, 0, len(p.Current))
	for _, row := range p.Current {
		k, ok := p.key(row)
		if !ok {
			continue
		}
		v, ok := row.Metric(metric)
		if !ok {
			continue
		}
		out = append(out, KeyValue{Key: k, Value: v})
	}
	slices.SortStableFunc(out, func(a, b KeyValue) int {
		return cmp.Compare(a.Value, b.Value)
	})
	return out
}

// RatioByShare returns each current key's share of the current-period total of
// metric, highest first. A zero total yields ErrNoDataInPeriod.
func (p Periods) RatioByShare(metric string) ([]KeyValue, error) {
	sums := make(map[string][]float64, len(p.CurrentKeys))
	var all []float64
	for _, row := range p.Current {
		k, ok := p.key(row)
		if !ok {
			continue
		}
		v, ok := row.Metric(metric)
		if !ok {
			continue
		}
		sums[k] = append(sums[k], v)
		all = append(all, v)
	}

	total := sum(all)
	if total == 0 {
		return nil, ErrNoDataInPeriod
	}

	out := make([]KeyValue, 0, len(p.CurrentKeys))
	for _, k := range p.CurrentKeys {
		out = append(out, KeyValue{Key: k, Value: sum(sums[k]) / total})
	}
	slices.SortStableFunc(out, func(a, b KeyValue) int {
		return cmp.Compare(b.Value, a.Value)
	})
	return out, nil
}

// MeanDelta returns mean(current) - mean(previous) of metric over all rows of each
// period, ignoring keys. nil when either side has no values.
func (p Periods) MeanDelta(metric string) *float64 {
	cur, prev, ok := p.means(metric)
	if !ok {
		return nil
	}
	d := cur - prev
	return &d
}

// RelativeDelta returns (mean(current) - mean(previous)) / mean(previous) over all
// rows of each period. nil when either side has no values or the previous mean is 0.
func (p Periods) RelativeDelta(metric string) *float64 {
	cur, prev, ok := p.means(metric)
	if !ok || prev == 0 {
		return nil
	}
	d := (cur - prev) / prev
	return &d
}

// Compare classifies keys, computes deltas and ranks them.
func Compare(p Periods, opts Options) (Comparison, error) {
	result := Comparison{
		Increase:  RankIncrease(p.Changes(opts.Metrics...), opts.Direction),
		NewEvents: p.NewKeys(),
	}

	switch opts.Ratio {
	case RatioRate:
		result.Ratio = p.RatioByRate(opts.RatioMetric)
	default:
		ratio, err := p.RatioByShare(opts.RatioMetric)
		if err != nil {
			return Comparison{}, err
		}
		result.Ratio = ratio
	}
	return result, nil
}

func (p Periods) values(rows []storage.BucketedRow, key, metric string) []float64 {
	var out []float64
	for _, row := range rows {
		k, ok := p.key(row)
		if !ok || k != key {
			continue
		}
		if v, ok := row.Metric(metric); ok {
			out = append(out, v)
		}
	}
	return out
}

func (p Periods) means(metric string) (cur, prev float64, ok bool) {
	all := func(rows []storage.BucketedRow) []float64 {
		var out []float64
		for _, row := range rows {
			if v, ok := row.Metric(metric); ok {
				out = append(out, v)
			}
		}
		return out
	}
	cur, ok = mean(all(p.Current))
	if !ok {
		return 0, 0, false
	}
	prev, ok = mean(all(p.Previous))
	return cur, prev, ok
}

func mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	m, err := stats.Mean(values)
	if err != nil {
		return 0, false
	}
	return m, true
}

func sum(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s, err := stats.Sum(values)
	if err != nil {
		return 0
	}
	return s
}

func toSet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}
