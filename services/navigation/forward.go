package navigation

import (
	"context"
	"math"

	"go.viam.com/localnav/components/base"
	"go.viam.com/localnav/components/lidar"
	"go.viam.com/localnav/services/navigation/avoidance"
	"go.viam.com/localnav/utils"
)

// MoveToForward runs one tick of free exploration. Sensor failures skip the tick without
// publishing; only actuator and escape failures are returned.
func (c *Controller) MoveToForward(ctx context.Context) error {
	cfg := c.Config()

	if c.deps.Costmap != nil {
		pose, err := c.currentPose(ctx, &cfg)
		if err != nil {
			c.skipTick(ctx, err)
			return nil
		}
		blocked, err := c.lookupCostmap(ctx, &cfg, pose)
		if err != nil {
			c.skipTick(ctx, err)
			return nil
		}
		if blocked {
			c.logger.CWarnf(ctx, "robot at %v is inside a lethal region, escaping", pose)
			return c.escapeFromCostmap(ctx, &cfg)
		}
	}

	reacted, err := c.reactToBumper(ctx, &cfg)
	if err != nil || reacted {
		return err
	}

	scan, err := c.nextScan(ctx, &cfg)
	if err != nil {
		c.skipTick(ctx, err)
		return nil
	}
	return base.Publish(ctx, c.deps.Base, c.forwardCommand(ctx, &cfg, scan))
}

// forwardCommand chooses the exploration command for scan: wall escape, then road center, then
// the gap nearest straight ahead, then emergency avoidance.
func (c *Controller) forwardCommand(ctx context.Context, cfg *Config, scan *lidar.Scan) base.VelocityCommand {
	if cmd, ok := c.wallCommand(ctx, cfg, scan); ok {
		return cmd
	}
	if bearing, ok := avoidance.DetectRoadCenter(scan, cfg.roadParams()); ok {
		c.logger.CDebugf(ctx, "road center at %.3f rad", bearing)
		return c.steer(cfg, bearing, cfg.RoadCenterGain)
	}
	if bearing, ok := cfg.gapSearch().Center(scan, c.nextCenterBit()); ok {
		c.logger.CDebugf(ctx, "gap ahead at %.3f rad", bearing)
		return c.steer(cfg, bearing, cfg.VFHGain)
	}
	return c.emergencyCommand(ctx, cfg, scan)
}

// towardCommand chooses the command for heading to bearing: wall escape, then the gap nearest
// bearing, then emergency avoidance.
func (c *Controller) towardCommand(ctx context.Context, cfg *Config, scan *lidar.Scan, bearing float64) base.VelocityCommand {
	if cmd, ok := c.wallCommand(ctx, cfg, scan); ok {
		return cmd
	}
	if gap, ok := cfg.gapSearch().Toward(scan, bearing); ok {
		c.logger.CDebugf(ctx, "gap toward %.3f rad at %.3f rad", bearing, gap)
		return c.steer(cfg, gap, cfg.VFHGain)
	}
	return c.emergencyCommand(ctx, cfg, scan)
}

// wallCommand handles a frontal wall. It reports false when there is no wall; a wall with no
// usable gap falls through to emergency avoidance.
func (c *Controller) wallCommand(ctx context.Context, cfg *Config, scan *lidar.Scan) (base.VelocityCommand, bool) {
	wall := avoidance.DetectWall(scan, cfg.wallParams())
	if !wall.Found {
		return base.VelocityCommand{}, false
	}
	target, side := avoidance.SelectSide(scan, wall, cfg.EmergencyThreshold)
	c.logger.CDebugf(ctx, "wall at %.2f m (rate %.2f), escaping %s toward %.3f rad", wall.Mean, wall.Rate, side, target)
	if gap, ok := cfg.gapSearch().Toward(scan, target); ok {
		return c.steer(cfg, gap, cfg.VFHGain), true
	}
	return c.emergencyCommand(ctx, cfg, scan), true
}

// steer synthesizes a command for a non-emergency bearing and remembers its side.
func (c *Controller) steer(cfg *Config, bearing, weight float64) base.VelocityCommand {
	if bearing != 0 {
		c.setAvoidanceSign(utils.SignOr(bearing, 1))
	}
	return scaled(cfg, avoidance.Steer(bearing, cfg.ForwardVelocity, weight, cfg.gains()))
}

func scaled(cfg *Config, cmd base.VelocityCommand) base.VelocityCommand {
	return base.VelocityCommand{Forward: cmd.Forward * cfg.VelocityGain, Turn: cmd.Turn * cfg.VelocityGain}
}

// emergencyCommand turns toward the roomier hemisphere, or rotates in place when neither
// hemisphere is clear.
func (c *Controller) emergencyCommand(ctx context.Context, cfg *Config, scan *lidar.Scan) base.VelocityCommand {
	prev := c.State().PreviousAvoidanceSign
	sign, ok := avoidance.EmergencySign(scan, cfg.emergencyParams(), prev)
	if !ok {
		c.logger.CWarnf(ctx, "no clear hemisphere, recovery rotation with sign %+.0f", prev)
		return c.recoveryCommand(cfg, prev)
	}
	c.setAvoidanceSign(sign)
	c.logger.CInfof(ctx, "emergency avoidance with sign %+.0f", sign)
	maxBearing := math.Max(math.Abs(scan.AngleMax), math.Abs(scan.AngleMin))
	return scaled(cfg, avoidance.Steer(sign*maxBearing/6, cfg.ForwardVelocity, cfg.AvoidanceGain, cfg.gains()))
}

func (c *Controller) recoveryCommand(cfg *Config, sign float64) base.VelocityCommand {
	return scaled(cfg, base.VelocityCommand{Turn: sign * cfg.RotationVelocity})
}
