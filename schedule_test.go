package newsharvest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pevans/newsharvest/render/rendertest"
	"github.com/pevans/newsharvest/seen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScheduleSweeps verifies expired records are removed on schedule
func TestScheduleSweeps(t *testing.T) {
	var now atomic.Int64
	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	now.Store(start.UnixNano())
	store := seen.NewMemoryStore(seen.WithClock(func() time.Time {
		return time.Unix(0, now.Load()).UTC()
	}))

	ctx := context.Background()
	require.NoError(t, store.Record(ctx, "https://news.example/old"))
	now.Store(start.Add(seen.Retention + time.Hour).UnixNano())

	h := NewHarvester(rendertest.NewProvider(), store, DefaultConfig(), WithSink(nil))
	c, err := h.ScheduleSweeps("@every 10ms")
	require.NoError(t, err)
	defer c.Stop()

	assert.Eventually(t, func() bool {
		has, err := store.Has(ctx, "https://news.example/old")
		return err == nil && !has
	}, 2*time.Second, 10*time.Millisecond)
}

// TestScheduleSweeps_InvalidSpec verifies bad schedules are rejected
func TestScheduleSweeps_InvalidSpec(t *testing.T) {
	h := NewHarvester(rendertest.NewProvider(), seen.NewMemoryStore(), DefaultConfig(), WithSink(nil))

	_, err := h.ScheduleSweeps("every tuesday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sweep schedule")
}
