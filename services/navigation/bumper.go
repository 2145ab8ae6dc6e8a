package navigation

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/localnav/components/base"
	"go.viam.com/localnav/components/bumper"
)

// reactToBumper backs away from an active contact and turns away from it. It reports whether a
// maneuver ran, in which case the rest of the tick is skipped. A failing poll counts as no
// contact.
func (c *Controller) reactToBumper(ctx context.Context, cfg *Config) (bool, error) {
	if c.deps.Bumper == nil {
		return false, nil
	}
	sctx, cancel := c.sensorContext(ctx, cfg)
	event, err := c.deps.Bumper.Poll(sctx)
	cancel()
	if err != nil {
		c.logger.CDebugf(ctx, "ignoring bumper poll error: %v", err)
		return false, nil
	}
	if event == nil || !event.Active {
		return false, nil
	}

	turn := c.bumperTurn(cfg, event.Contact)
	c.logger.CWarnf(ctx, "bumper hit on the %s, backing up then turning at %.2f rad/s", event.Contact, turn)

	back := scaled(cfg, base.VelocityCommand{Forward: cfg.BackVelocity})
	if err := c.publishFor(ctx, cfg, back, seconds(cfg.BackTimeSec)); err != nil {
		return true, multierr.Combine(errors.Wrap(err, "bumper backup failed"), c.stop(ctx))
	}
	rotate := base.VelocityCommand{Turn: turn}
	if err := c.publishFor(ctx, cfg, rotate, seconds(cfg.BumperRotationTimeSec)); err != nil {
		return true, multierr.Combine(errors.Wrap(err, "bumper rotation failed"), c.stop(ctx))
	}
	return true, nil
}

// bumperTurn is the turn rate away from contact. A center hit turns against the last avoidance
// side.
func (c *Controller) bumperTurn(cfg *Config, contact bumper.Contact) float64 {
	rot := cfg.RotationVelocity * cfg.VelocityGain
	switch contact {
	case bumper.Left:
		return -rot
	case bumper.Right:
		return rot
	default:
		return -c.State().PreviousAvoidanceSign * rot
	}
}
