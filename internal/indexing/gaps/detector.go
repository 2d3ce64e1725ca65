package gaps

import (
	"slices"
)

// Find returns the sorted, disjoint ranges of identifiers in [floor, upper)
// that are not in persisted. persisted may be unsorted and contain duplicates
// or identifiers outside the window.
func Find(persisted []uint64, floor, upper uint64) []Range {
	if upper <= floor {
		return nil
	}

	ids := slices.Clone(persisted)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	var result []Range
	next := floor
	for _, id := range ids {
		if id < next {
			continue
		}
		if id >= upper {
			break
		}
		if id > next {
			result = append(result, Range{Start: next, End: id})
		}
		next = id + 1
	}
	if next < upper {
		result = append(result, Range{Start: next, End: upper})
	}
	return result
}

// FromRanges is Find for persisted data already grouped into ranges.
func FromRanges(persisted []Range, floor, upper uint64) []Range {
	if upper <= floor {
		return nil
	}

	var result []Range
	next := floor
	for _, r := range MergeRanges(persisted) {
		if r.End <= next {
			continue
		}
		if r.Start >= upper {
			break
		}
		if r.Start > next {
			result = append(result, Range{Start: next, End: r.Start})
		}
		next = r.End
	}
	if next < upper {
		result = append(result, Range{Start: next, End: upper})
	}
	return result
}

// Clip restricts gaps to [floor, bound+1): nothing below the floor and
// nothing the remote side has not produced yet. Ranges that become empty
// are removed.
func Clip(gaps []Range, floor, bound uint64) []Range {
	upper := bound + 1
	if bound == Unbounded {
		upper = Unbounded
	}

	var result []Range
	for _, g := range gaps {
		clipped := Range{Start: max(g.Start, floor), End: min(g.End, upper)}
		if !clipped.Empty() {
			result = append(result, clipped)
		}
	}
	return result
}

// Count returns the total number of identifiers covered by ranges.
func Count(ranges []Range) uint64 {
	var total uint64
	for _, r := range ranges {
		total += r.Size()
	}
	return total
}
