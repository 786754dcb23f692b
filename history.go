package main

import "time"

// headCountInterval is the bucket width for the head-count trend history.
const headCountInterval = 5 * time.Second

// HeadCountBucket is the detected count for one fixed time interval.
type HeadCountBucket struct {
	Interval time.Time
	Count    int
}

// headCountHistory coalesces per-frame counts into fixed intervals, newest
// first. A frame landing in the newest bucket's interval overwrites its count
// instead of appending. The history is unbounded for the lifetime of a
// streaming session, so long-running feeds grow it without limit.
type headCountHistory struct {
	buckets []HeadCountBucket
}

// Record stores a count under the interval containing now.
func (h *headCountHistory) Record(now time.Time, count int) {
	interval := now.Truncate(headCountInterval)
	if len(h.buckets) > 0 && h.buckets[0].Interval.Equal(interval) {
		h.buckets[0].Count = count
		return
	}
	h.buckets = append([]HeadCountBucket{{Interval: interval, Count: count}}, h.buckets...)
}

// Buckets returns a copy of the history, newest first.
func (h *headCountHistory) Buckets() []HeadCountBucket {
	out := make([]HeadCountBucket, len(h.buckets))
	copy(out, h.buckets)
	return out
}

// Len returns the number of buckets.
func (h *headCountHistory) Len() int {
	return len(h.buckets)
}

// Reset discards the history.
func (h *headCountHistory) Reset() {
	h.buckets = nil
}
