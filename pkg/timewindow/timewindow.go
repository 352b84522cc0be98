// Package timewindow splits timestamp ranges into provider-safe query
// windows. Some exchange history endpoints silently truncate or reject
// ranges longer than a fixed span (90 days for transfer history), so callers
// iterate windows and concatenate results in chronological order.
package timewindow

import (
	"iter"
	"time"
)

// MaxTransferSpan is the longest range the transfer-history API accepts.
const MaxTransferSpan = 90 * 24 * time.Hour

// Partition yields contiguous [from, to] millisecond windows covering
// [from, to], each spanning at most maxSpan milliseconds. Consecutive windows
// neither overlap nor leave gaps: each window starts one millisecond after
// the previous one ends. The final window is clipped to to. No windows are
// yielded when from >= to or maxSpan <= 0.
func Partition(from, to, maxSpan int64) iter.Seq2[int64, int64] {
	return func(yield func(int64, int64) bool) {
		if maxSpan <= 0 {
			return
		}
		// Window ends land on from + k*maxSpan so repeated runs over the
		// same range produce identical windows.
		boundary := from + maxSpan
		for start := from; start < to; {
			end := boundary
			if end > to {
				end = to
			}
			if !yield(start, end) {
				return
			}
			start = end + 1
			boundary += maxSpan
		}
	}
}

// PartitionSpan is Partition with the span given as a duration.
func PartitionSpan(from, to int64, span time.Duration) iter.Seq2[int64, int64] {
	return Partition(from, to, span.Milliseconds())
}
