package discovery

import (
	"context"
	"math/rand/v2"
	"time"
)

// Default inter-article delay bounds.
const (
	DefaultDelayMin = 5000 * time.Millisecond
	DefaultDelayMax = 12000 * time.Millisecond
)

// Pacer spaces out requests to one site.
type Pacer interface {
	Wait(ctx context.Context) error
}

// RandomPacer waits a uniformly random duration in [Min, Max].
type RandomPacer struct {
	Min time.Duration
	Max time.Duration
}

// NewRandomPacer returns a pacer with the default bounds.
func NewRandomPacer() RandomPacer {
	return RandomPacer{Min: DefaultDelayMin, Max: DefaultDelayMax}
}

// Delay draws the next delay. Max below Min is treated as Min.
func (p RandomPacer) Delay() time.Duration {
	if p.Max <= p.Min {
		return max(p.Min, 0)
	}
	return p.Min + rand.N(p.Max-p.Min+1)
}

// Wait sleeps for Delay, returning ctx.Err() if ctx is done first.
func (p RandomPacer) Wait(ctx context.Context) error {
	return sleep(ctx, p.Delay())
}

// NoPacing returns a pacer that never waits.
func NoPacing() Pacer { return noPacer{} }

type noPacer struct{}

func (noPacer) Wait(ctx context.Context) error { return ctx.Err() }

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
