package period

import (
	"cmp"
	"slices"
)

// RankIncrease orders changes by Delta in the given direction. The sort is stable,
// so equal deltas keep their input order; undefined deltas go last.
func RankIncrease(changes []Change, dir Direction) []Change {
	out := slices.Clone(changes)
	slices.SortStableFunc(out, func(a, b Change) int {
		switch {
		case a.Delta == nil && b.Delta == nil:
			return 0
		case a.Delta == nil:
			return 1
		case b.Delta == nil:
			return -1
		}
		if dir == Ascending {
			return cmp.Compare(*a.Delta, *b.Delta)
		}
		return cmp.Compare(*b.Delta, *a.Delta)
	})
	return out
}
