package bucket

import (
	"fmt"
	"iter"
	"time"

	"github.com/jinzhu/now"
)

// weekConfig pins week truncation to Monday 00:00 UTC, the same boundary
// date_trunc('week', ...) uses in PostgreSQL and DuckDB.
var weekConfig = &now.Config{
	WeekStartDay: time.Monday,
	TimeLocation: time.UTC,
}

// Bucketing is a resolved time step: a truncation function plus a fixed bucket width.
// All bucket starts are in UTC.
type Bucketing struct {
	step  TimeStep
	width time.Duration
}

// Resolve maps a time step to its bucketing function and width.
//
//	hour      -> start of hour,            3600s
//	day       -> start of day,             86400s
//	week      -> start of week (Monday),   604800s
//	n minutes -> start of n-minute slot,   n*60s (aligned to the Unix epoch)
func Resolve(step TimeStep) (Bucketing, error) {
	switch step.unit {
	case UnitHour:
		return Bucketing{step: step, width: time.Hour}, nil
	case UnitDay:
		return Bucketing{step: step, width: 24 * time.Hour}, nil
	case UnitWeek:
		return Bucketing{step: step, width: 7 * 24 * time.Hour}, nil
	case UnitMinutes:
		if step.minutes <= 0 {
			return Bucketing{}, fmt.Errorf("%w: minutes must be > 0, got %d", ErrInvalidTimeStep, step.minutes)
		}
		return Bucketing{step: step, width: time.Duration(step.minutes) * time.Minute}, nil
	default:
		return Bucketing{}, fmt.Errorf("%w: unresolved time step", ErrInvalidTimeStep)
	}
}

// Step returns the time step this bucketing was resolved from.
func (b Bucketing) Step() TimeStep { return b.step }

// Width returns the bucket width.
func (b Bucketing) Width() time.Duration { return b.width }

// Seconds returns the bucket width in whole seconds.
func (b Bucketing) Seconds() int64 { return int64(b.width / time.Second) }

// Truncate returns the start of the bucket containing t.
func (b Bucketing) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch b.step.unit {
	case UnitHour:
		return weekConfig.With(t).BeginningOfHour()
	case UnitDay:
		return weekConfig.With(t).BeginningOfDay()
	case UnitWeek:
		return weekConfig.With(t).BeginningOfWeek()
	default:
		secs := b.Seconds()
		if secs <= 0 {
			return t
		}
		unix := t.Unix()
		rem := unix % secs
		if rem < 0 {
			rem += secs
		}
		return time.Unix(unix-rem, 0).UTC()
	}
}

// Sequence enumerates the bucket starts covering [start, end), beginning at
// Truncate(start). The sequence is lazy and can be ranged over any number of times.
func (b Bucketing) Sequence(start, end time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if b.width <= 0 {
			return
		}
		end = end.UTC()
		for ts := b.Truncate(start); ts.Before(end); ts = ts.Add(b.width) {
			if !yield(ts) {
				return
			}
		}
	}
}

// Span returns the first bucket start and the exclusive upper bound of the last bucket
// covering [start, end). ok is false when the window contains no bucket.
func (b Bucketing) Span(start, end time.Time) (first, limit time.Time, count int, ok bool) {
	for ts := range b.Sequence(start, end) {
		if count == 0 {
			first = ts
		}
		limit = ts.Add(b.width)
		count++
	}
	return first, limit, count, count > 0
}
