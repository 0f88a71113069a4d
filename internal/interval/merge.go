package interval

import (
	"sort"
	"time"
)

// Merge buffers every interval by margin on both ends, drops buffered
// intervals that do not overlap [windowStart, windowEnd), sorts the rest
// and merges overlaps into a disjoint ascending list.
//
// Touching intervals (next.Start == curr.End) are NOT merged: adjacency
// with zero gap stays two intervals so the slot sweep sees a zero-length
// gap rather than a false overlap.
func Merge(intervals []Interval, margin time.Duration, windowStart, windowEnd time.Time) []Interval {
	buffered := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		b := Interval{Start: iv.Start.Add(-margin), End: iv.End.Add(margin)}
		if !b.End.After(windowStart) || !b.Start.Before(windowEnd) {
			continue
		}
		buffered = append(buffered, b)
	}
	if len(buffered) == 0 {
		return nil
	}
	sort.Slice(buffered, func(i, j int) bool { return buffered[i].Start.Before(buffered[j].Start) })

	merged := make([]Interval, 0, len(buffered))
	curr := buffered[0]
	for _, next := range buffered[1:] {
		if next.Start.Before(curr.End) {
			if next.End.After(curr.End) {
				curr.End = next.End
			}
			continue
		}
		merged = append(merged, curr)
		curr = next
	}
	return append(merged, curr)
}
