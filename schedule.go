package newsharvest

import (
	"context"
	"fmt"
	"time"

	"github.com/pevans/newsharvest/logger"
	"github.com/robfig/cron/v3"
)

// DefaultSweepTimeout bounds one scheduled sweep.
const DefaultSweepTimeout = time.Minute

// ScheduleSweeps runs Sweep on the cron schedule spec until the returned
// Cron is stopped. spec is a five-field expression or a descriptor such as
// "@daily" or "@every 6h".
func (h *Harvester) ScheduleSweeps(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultSweepTimeout)
		defer cancel()

		removed, err := h.Sweep(ctx)
		if err != nil {
			h.logger.Error("Scheduled sweep failed", logger.Err(err))
			return
		}
		h.logger.Info("Scheduled sweep finished", logger.Int64("removed", removed))
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}

	c.Start()
	return c, nil
}
