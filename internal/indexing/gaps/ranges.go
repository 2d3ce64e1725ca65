// Package gaps computes which identifiers are still missing locally.
//
// All ranges are half-open: Range{Start: 10, End: 15} covers 10..14.
// Detection only looks at persisted state, it never calls a remote source.
package gaps

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Unbounded is the End of a range that extends past every known identifier.
const Unbounded = math.MaxUint64

// Range is a half-open interval [Start, End).
type Range struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// String returns the range in "start-end" format.
func (r Range) String() string {
	if r.End == Unbounded {
		return fmt.Sprintf("%d-", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Size returns the number of identifiers in the range.
func (r Range) Size() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Empty reports whether the range covers nothing.
func (r Range) Empty() bool {
	return r.End <= r.Start
}

// Contains reports whether n is inside the range.
func (r Range) Contains(n uint64) bool {
	return n >= r.Start && n < r.End
}

// Split splits the range into chunks of at most maxSize identifiers.
func (r Range) Split(maxSize uint64) []Range {
	if r.Empty() {
		return nil
	}
	if maxSize == 0 || r.Size() <= maxSize {
		return []Range{r}
	}

	var chunks []Range
	for current := r.Start; current < r.End; {
		end := r.End
		if r.End-current > maxSize {
			end = current + maxSize
		}
		chunks = append(chunks, Range{Start: current, End: end})
		current = end
	}
	return chunks
}

// Overlaps checks if two ranges overlap or are adjacent.
func (r Range) Overlaps(other Range) bool {
	return r.Start <= other.End && other.Start <= r.End
}

// Merge merges two overlapping/adjacent ranges.
func (r Range) Merge(other Range) Range {
	return Range{Start: min(r.Start, other.Start), End: max(r.End, other.End)}
}

// MergeRanges sorts the ranges and coalesces overlapping or adjacent ones.
// Empty ranges are dropped.
func MergeRanges(ranges []Range) []Range {
	sorted := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if !r.Empty() {
			sorted = append(sorted, r)
		}
	}
	if len(sorted) <= 1 {
		return sorted
	}

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	merged := []Range{sorted[0]}
	for _, current := range sorted[1:] {
		last := &merged[len(merged)-1]
		if last.Overlaps(current) {
			*last = last.Merge(current)
		} else {
			merged = append(merged, current)
		}
	}
	return merged
}

// ParseRange parses a "start-end" string into a Range. Both bounds are
// inclusive in the text form, matching how operators write block ranges.
func ParseRange(s string) (Range, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return Range{}, fmt.Errorf("invalid range format: %s", s)
	}
	start, err := strconv.ParseUint(from, 10, 64)
	if err != nil {
		return Range{}, fmt.Errorf("invalid range start %q: %w", from, err)
	}
	end, err := strconv.ParseUint(to, 10, 64)
	if err != nil {
		return Range{}, fmt.Errorf("invalid range end %q: %w", to, err)
	}
	if end == Unbounded {
		return Range{}, fmt.Errorf("range end %d is too large", end)
	}
	if start > end {
		return Range{}, fmt.Errorf("start > end: %d > %d", start, end)
	}
	return Range{Start: start, End: end + 1}, nil
}

// FormatInclusive renders the range the way ParseRange reads it.
func (r Range) FormatInclusive() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End-1)
}
