package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadCountHistoryCoalescesWithinInterval(t *testing.T) {
	h := &headCountHistory{}
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	h.Record(base.Add(2*time.Second), 7)
	h.Record(base.Add(4*time.Second), 9)

	buckets := h.Buckets()
	require.Len(t, buckets, 1)
	assert.Equal(t, base, buckets[0].Interval)
	assert.Equal(t, 9, buckets[0].Count)
}

func TestHeadCountHistoryNewestFirst(t *testing.T) {
	h := &headCountHistory{}
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	h.Record(base.Add(2*time.Second), 3)
	h.Record(base.Add(6*time.Second), 5)
	h.Record(base.Add(11*time.Second), 8)

	buckets := h.Buckets()
	require.Len(t, buckets, 3)
	assert.Equal(t, base.Add(10*time.Second), buckets[0].Interval)
	assert.Equal(t, 8, buckets[0].Count)
	assert.Equal(t, base.Add(5*time.Second), buckets[1].Interval)
	assert.Equal(t, 5, buckets[1].Count)
	assert.Equal(t, base, buckets[2].Interval)
	assert.Equal(t, 3, buckets[2].Count)
}

func TestHeadCountHistoryReset(t *testing.T) {
	h := &headCountHistory{}
	h.Record(time.Now(), 1)
	h.Reset()
	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.Buckets())
}
