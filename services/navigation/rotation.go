package navigation

import (
	"context"
	"math"
	"time"

	"go.uber.org/multierr"

	"go.viam.com/localnav/components/base"
	"go.viam.com/localnav/spatialmath"
	"go.viam.com/localnav/utils"
)

// RotateTo turns in place until the robot faces targetYaw, in radians in the localizer's frame.
func (c *Controller) RotateTo(ctx context.Context, targetYaw float64) error {
	cfg := c.Config()
	return c.rotationFromTo(ctx, &cfg, targetYaw)
}

// rotationFromTo turns the short way toward target at the match rate, resampling the pose every
// control period. It stops once within the match threshold or as soon as the remaining angle
// changes sign, so a yaw that jitters around the target cannot keep it spinning.
func (c *Controller) rotationFromTo(ctx context.Context, cfg *Config, target float64) (err error) {
	pose, err := c.currentPose(ctx, cfg)
	if err != nil {
		return err
	}
	yaw := spatialmath.Yaw(pose.Pose())
	remaining := utils.AngleDiff(target, yaw)
	if math.Abs(remaining) <= cfg.MatchAngleThreshold {
		return nil
	}
	defer func() {
		err = multierr.Combine(err, c.stop(ctx))
	}()

	dir := utils.SignOr(remaining, 1)
	cmd := base.VelocityCommand{Turn: dir * cfg.MatchRotationVelocity * cfg.VelocityGain}
	return c.rotateUntil(ctx, cfg, cmd, func(yaw float64) bool {
		remaining := utils.AngleDiff(target, yaw)
		return math.Abs(remaining) <= cfg.MatchAngleThreshold || remaining*dir < 0
	})
}

// OneRotation spins the robot a full turn in place, in the direction of the sign of its current
// yaw. A revolution is complete after three yaw sign changes, or after two once |yaw| is back to
// its initial magnitude.
func (c *Controller) OneRotation(ctx context.Context) (err error) {
	cfg := c.Config()
	pose, err := c.currentPose(ctx, &cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, c.stop(ctx))
	}()

	initYaw := spatialmath.Yaw(pose.Pose())
	cmd := base.VelocityCommand{Turn: utils.SignOr(initYaw, 1) * cfg.RotationVelocity * cfg.VelocityGain}
	c.logger.CInfof(ctx, "rotating once from yaw %.3f", initYaw)

	count := 0
	prev := initYaw
	return c.rotateUntil(ctx, &cfg, cmd, func(yaw float64) bool {
		if prev*yaw < 0 {
			count++
		}
		prev = yaw
		return count >= 3 || (count >= 2 && math.Abs(yaw) >= math.Abs(initYaw))
	})
}

// rotateUntil publishes cmd every control period and resamples the yaw until done reports true.
// It fails with ErrRotationTimeout after the configured rotation bound.
func (c *Controller) rotateUntil(ctx context.Context, cfg *Config, cmd base.VelocityCommand, done func(yaw float64) bool) error {
	period := time.Duration(float64(time.Second) / cfg.ControlFrequencyHz)
	limit := seconds(cfg.MaxRotationSec)
	ticker := c.clock.Ticker(period)
	defer ticker.Stop()
	start := c.clock.Now()
	for {
		if c.clock.Since(start) > limit {
			return ErrRotationTimeout
		}
		if err := base.Publish(ctx, c.deps.Base, cmd); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		pose, err := c.currentPose(ctx, cfg)
		if err != nil {
			return err
		}
		if done(spatialmath.Yaw(pose.Pose())) {
			return nil
		}
	}
}
