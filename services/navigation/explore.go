package navigation

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/localnav/control"
)

// Explore runs MoveToForward at the control rate until ctx is done or a tick fails, then stops
// the base.
func (c *Controller) Explore(ctx context.Context) error {
	cfg := c.Config()
	c.logger.CDebug(ctx, "starting explore mode")
	loop, err := control.NewLoop(c.logger.Sublogger("explore"), cfg.ControlFrequencyHz, c.clock, c.MoveToForward)
	if err != nil {
		return err
	}
	if err := loop.Start(ctx); err != nil {
		return err
	}
	err = loop.Wait()
	loop.Stop()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return multierr.Combine(err, c.stop(ctx))
}
