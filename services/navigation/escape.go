package navigation

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/localnav/components/base"
	"go.viam.com/localnav/costmap"
	"go.viam.com/localnav/referenceframe"
	"go.viam.com/localnav/spatialmath"
	"go.viam.com/localnav/utils"
)

// inFrame expresses pose in frame. An empty frame means the frame of pose.
func (c *Controller) inFrame(ctx context.Context, pose *referenceframe.PoseInFrame, frame string) (*referenceframe.PoseInFrame, error) {
	if frame == "" || pose.FrameName() == frame {
		return pose, nil
	}
	if c.deps.Transformer == nil {
		return nil, errors.Errorf("cannot convert a pose from %q to %q without a transformer", pose.FrameName(), frame)
	}
	converted, err := c.deps.Transformer.TransformPose(ctx, pose, frame)
	if err != nil {
		return nil, errors.Wrapf(err, "error converting pose from %q to %q", pose.FrameName(), frame)
	}
	return converted, nil
}

// costmapAt fetches the costmap and expresses pose in its frame.
func (c *Controller) costmapAt(
	ctx context.Context, cfg *Config, pose *referenceframe.PoseInFrame,
) (*costmap.Grid, *referenceframe.PoseInFrame, error) {
	sctx, cancel := c.sensorContext(ctx, cfg)
	grid, err := c.deps.Costmap.Costmap(sctx)
	cancel()
	if err != nil {
		return nil, nil, errors.Wrap(err, "error reading costmap")
	}
	local, err := c.inFrame(ctx, pose, grid.Frame)
	if err != nil {
		return nil, nil, err
	}
	return grid, local, nil
}

// lookupCostmap reports whether any lethal cell lies within the costmap margin of pose.
func (c *Controller) lookupCostmap(ctx context.Context, cfg *Config, pose *referenceframe.PoseInFrame) (bool, error) {
	grid, local, err := c.costmapAt(ctx, cfg, pose)
	if err != nil {
		return false, err
	}
	return grid.Lethal(local.Pose().Point(), cfg.CostmapMargin, cfg.LethalCost), nil
}

// escapeFromCostmap moves the robot out of a lethal region. Each attempt faces the lowest-risk
// cell around the robot and creeps forward until the lookup is clear. Without an improving cell
// it creeps straight ahead.
func (c *Controller) escapeFromCostmap(ctx context.Context, cfg *Config) (err error) {
	defer func() {
		err = multierr.Combine(err, c.stop(ctx))
	}()
	for attempt := 1; attempt <= cfg.MaxEscapeAttempts; attempt++ {
		pose, err := c.currentPose(ctx, cfg)
		if err != nil {
			return err
		}
		grid, local, err := c.costmapAt(ctx, cfg, pose)
		if err != nil {
			return err
		}
		gridYaw := spatialmath.Yaw(local.Pose())
		cells, err := grid.ScoreEscapeCells(local.Pose().Point(), gridYaw, cfg.EscapeMargin, cfg.EscapeDivX, cfg.EscapeDivY)
		if err != nil {
			return err
		}
		if best, ok := costmap.SelectEscape(cells); ok {
			// the cell bearing is in the costmap frame; turn by the same relative angle
			target := utils.WrapAngle(spatialmath.Yaw(pose.Pose()) + utils.AngleDiff(best.Bearing, gridYaw))
			c.logger.CInfof(ctx, "escape attempt %d: cell (%d, %d) with risk %.1f, turning to %.3f rad",
				attempt, best.Col, best.Row, best.Risk, target)
			if err := c.rotationFromTo(ctx, cfg, target); err != nil && !errors.Is(err, ErrRotationTimeout) {
				return err
			}
		} else {
			c.logger.CWarnf(ctx, "escape attempt %d: no cell lowers the risk, creeping straight ahead", attempt)
		}

		free, err := c.creep(ctx, cfg)
		if err != nil {
			return err
		}
		if free {
			c.logger.CInfof(ctx, "escaped lethal region after %d attempt(s)", attempt)
			return nil
		}
	}
	return ErrEscapeFailed
}

// creep drives forward one step at a time, checking the costmap after each step. It reports
// whether the robot is clear.
func (c *Controller) creep(ctx context.Context, cfg *Config) (bool, error) {
	cmd := base.VelocityCommand{Forward: cfg.CreepVelocity * cfg.VelocityGain}
	for step := 0; step < cfg.MaxCreepSteps; step++ {
		if err := c.publishFor(ctx, cfg, cmd, seconds(cfg.CreepStepSec)); err != nil {
			return false, err
		}
		pose, err := c.currentPose(ctx, cfg)
		if err != nil {
			return false, err
		}
		blocked, err := c.lookupCostmap(ctx, cfg, pose)
		if err != nil {
			return false, err
		}
		if !blocked {
			return true, nil
		}
	}
	return false, nil
}
