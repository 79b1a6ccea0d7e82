package paypal

import "time"

// MaxDateRangeDays is the widest window the PayPal reporting API accepts in
// a single transactions request. Wider queries are partitioned into chunks
// of at most this many days.
const MaxDateRangeDays = 31

// DateRange is one half-open [Start, End) slice of a requested window.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// SplitDateRange partitions [start, end) into ordered, contiguous,
// non-overlapping ranges of at most maxSpanDays each. A span of exactly
// maxSpanDays yields a single range. Degenerate input (start >= end) yields
// no ranges; callers validate ordering before partitioning.
func SplitDateRange(start, end time.Time, maxSpanDays int) []DateRange {
	maxSpan := time.Duration(maxSpanDays) * 24 * time.Hour

	var ranges []DateRange
	for cursor := start; cursor.Before(end); {
		chunkEnd := cursor.Add(maxSpan)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		ranges = append(ranges, DateRange{Start: cursor, End: chunkEnd})
		cursor = chunkEnd
	}
	return ranges
}
