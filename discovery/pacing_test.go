package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestRandomPacer_DelayWithinBounds verifies draws stay inside [Min, Max]
func TestRandomPacer_DelayWithinBounds(t *testing.T) {
	p := NewRandomPacer()

	for range 1000 {
		d := p.Delay()
		assert.GreaterOrEqual(t, d, 5000*time.Millisecond)
		assert.LessOrEqual(t, d, 12000*time.Millisecond)
	}
}

// TestRandomPacer_DegenerateBounds verifies Max below Min waits Min
func TestRandomPacer_DegenerateBounds(t *testing.T) {
	assert.Equal(t, time.Second, RandomPacer{Min: time.Second, Max: time.Millisecond}.Delay())
	assert.Equal(t, time.Duration(0), RandomPacer{}.Delay())
}

// TestRandomPacer_WaitCancelled verifies Wait returns early on cancellation
func TestRandomPacer_WaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := NewRandomPacer().Wait(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

// TestRandomPacer_Wait verifies a short delay is actually slept
func TestRandomPacer_Wait(t *testing.T) {
	p := RandomPacer{Min: 20 * time.Millisecond, Max: 30 * time.Millisecond}

	start := time.Now()
	assert.NoError(t, p.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

// TestNoPacing verifies the no-op pacer
func TestNoPacing(t *testing.T) {
	assert.NoError(t, NoPacing().Wait(context.Background()))
}
