// Package period splits bucketed aggregation rows into the two most recent
// periods and compares them key by key.
package period

import (
	"time"

	"github.com/aevon-lab/aevon-insights/internal/core/storage"
)

// KeyFunc extracts the dimension key of a row. ok=false marks a null key: the row
// still belongs to its period, but the key is not tracked.
type KeyFunc func(row storage.BucketedRow) (key string, ok bool)

// DimKey keys rows by one dimension column.
func DimKey(dim string) KeyFunc {
	return func(row storage.BucketedRow) (string, bool) {
		return row.Dim(dim)
	}
}

// ConcatKey keys rows by several dimension columns joined without separator.
// The key is null if any part is null.
func ConcatKey(dims ...string) KeyFunc {
	return func(row storage.BucketedRow) (string, bool) {
		var key string
		for _, dim := range dims {
			v, ok := row.Dim(dim)
			if !ok {
				return "", false
			}
			key += v
		}
		return key, true
	}
}

// Periods holds the rows of the current (most recent) and previous bucket.
type Periods struct {
	Current      []storage.BucketedRow
	Previous     []storage.BucketedRow
	CurrentKeys  []string
	PreviousKeys []string

	// CurrentBucket and PreviousBucket are zero when that period is absent.
	CurrentBucket  time.Time
	PreviousBucket time.Time

	key KeyFunc
}

// Split scans rows in order (bucket descending) and assigns them to the first
// and second distinct bucket seen. Scanning stops at the first row of a third
// distinct bucket; later rows are never read.
func Split(rows []storage.BucketedRow, key KeyFunc) Periods {
	p := Periods{key: key}
	var seen []time.Time
	currentSeen := make(map[string]struct{})
	previousSeen := make(map[string]struct{})

	for _, row := range rows {
		idx := -1
		for i, ts := range seen {
			if ts.Equal(row.Bucket) {
				idx = i
				break
			}
		}
		if idx < 0 {
			if len(seen) == 2 {
				break
			}
			seen = append(seen, row.Bucket)
			idx = len(seen) - 1
		}

		k, ok := key(row)
		if idx == 0 {
			p.Current = append(p.Current, row)
			if ok {
				p.CurrentKeys = appendNew(p.CurrentKeys, currentSeen, k)
			}
			continue
		}
		p.Previous = append(p.Previous, row)
		if ok {
			p.PreviousKeys = appendNew(p.PreviousKeys, previousSeen, k)
		}
	}

	if len(seen) > 0 {
		p.CurrentBucket = seen[0]
	}
	if len(seen) > 1 {
		p.PreviousBucket = seen[1]
	}
	return p
}

// HasPrevious reports whether a previous period was found.
func (p Periods) HasPrevious() bool {
	return !p.PreviousBucket.IsZero()
}

func appendNew(keys []string, seen map[string]struct{}, k string) []string {
	if _, ok := seen[k]; ok {
		return keys
	}
	seen[k] = struct{}{}
	return append(keys, k)
}
