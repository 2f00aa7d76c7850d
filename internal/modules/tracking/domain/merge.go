package domain

import (
	"sort"
	"time"
)

// Span is a closed time range used by the interval union.
type Span struct {
	Start time.Time
	End   time.Time
}

func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// MergeSpans returns the union of spans as sorted, non-overlapping ranges.
// Zero-length and inverted spans contribute nothing and are dropped.
func MergeSpans(spans []Span) []Span {
	sorted := make([]Span, 0, len(spans))
	for _, s := range spans {
		if !s.End.After(s.Start) {
			continue
		}
		sorted = append(sorted, s)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := make([]Span, 0, len(sorted))
	for _, s := range sorted {
		n := len(merged)
		if n > 0 && s.Start.Before(merged[n-1].End) {
			if s.End.After(merged[n-1].End) {
				merged[n-1].End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// UnionDuration is the total time covered by spans, counting overlaps once.
func UnionDuration(spans []Span) time.Duration {
	var total time.Duration
	for _, s := range MergeSpans(spans) {
		total += s.Duration()
	}
	return total
}
