package navigation

import (
	"context"
	"math"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/localnav/components/base"
	"go.viam.com/localnav/referenceframe"
	"go.viam.com/localnav/services/motion"
	"go.viam.com/localnav/spatialmath"
	"go.viam.com/localnav/utils"
)

// pathReporter is implemented by executors that expose the path they are following.
type pathReporter interface {
	CurrentPath(id motion.ExecutionID) (*motion.Path, error)
}

// goalRun tracks one MoveToGoal call.
type goalRun struct {
	id     motion.ExecutionID
	target *referenceframe.PoseInFrame
	path   *motion.Path
	resets int
}

// MoveToGoal drives to goal through the executor and returns once the execution ends. The robot
// first escapes any lethal region it starts in. While the execution runs, a goal that becomes
// lethal is pulled back along the path and re-dispatched.
func (c *Controller) MoveToGoal(ctx context.Context, goal *referenceframe.PoseInFrame) error {
	if c.deps.Executor == nil {
		return ErrNoExecutor
	}
	cfg := c.Config()

	pose, err := c.currentPose(ctx, &cfg)
	if err != nil {
		return err
	}
	target, err := c.inFrame(ctx, goal, pose.FrameName())
	if err != nil {
		return err
	}
	if c.deps.Costmap != nil {
		blocked, err := c.lookupCostmap(ctx, &cfg, pose)
		if err != nil {
			return err
		}
		if blocked {
			c.logger.CWarnf(ctx, "robot at %v starts inside a lethal region, escaping", pose)
			if err := c.escapeFromCostmap(ctx, &cfg); err != nil {
				return err
			}
			if pose, err = c.currentPose(ctx, &cfg); err != nil {
				return err
			}
		}
	}

	var path *motion.Path
	if c.deps.Planner != nil {
		if path, err = c.deps.Planner.Plan(ctx, pose, target); err != nil {
			c.logger.CWarnf(ctx, "path planner failed, approaching with a heading bias: %v", err)
			path = nil
		}
	}
	target = referenceframe.NewPoseInFrame(target.FrameName(),
		spatialmath.NewPose(target.Pose().Point(), c.approachOrientation(&cfg, pose.Pose(), target.Pose().Point(), path)))

	run := &goalRun{target: target, path: path}
	if run.id, err = c.deps.Executor.Dispatch(ctx, target); err != nil {
		return errors.Wrap(err, "error dispatching goal")
	}
	c.logger.CInfof(ctx, "dispatched goal %v as execution %s", target, run.id)
	return c.monitorGoal(ctx, &cfg, run)
}

// approachOrientation picks the heading the robot should hold on arrival. A planner direction
// wins; otherwise the start to goal direction is biased toward the side the goal lies on.
func (c *Controller) approachOrientation(cfg *Config, start spatialmath.Pose, goal r3.Vector, path *motion.Path) spatialmath.Orientation {
	if path.HasDirection() {
		return spatialmath.OrientationFromDirection(path.Direction.X, path.Direction.Y)
	}
	v := goal.Sub(start.Point())
	yaw := spatialmath.Yaw(start)
	heading := r3.Vector{X: math.Cos(yaw), Y: math.Sin(yaw)}
	cross := heading.X*v.Y - heading.Y*v.X
	direct := math.Atan2(v.Y, v.X)
	if math.Abs(cross) < 1e-9 {
		return spatialmath.OrientationFromDirection(v.X, v.Y)
	}
	return spatialmath.NewYawOrientation(utils.WrapAngle(direct + utils.SignOr(cross, 1)*utils.DegToRad(cfg.AngleBiasDegs)))
}

// monitorGoal polls the execution until it ends. A goal that turns lethal is reset and
// re-dispatched; when no reset is left the execution is cancelled and ErrGoalUnreachable returned.
func (c *Controller) monitorGoal(ctx context.Context, cfg *Config, run *goalRun) error {
	ticker := c.clock.Ticker(time.Duration(float64(time.Second) / cfg.GoalPollHz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return multierr.Combine(ctx.Err(), c.cancelGoal(ctx, run.id))
		case <-ticker.C:
		}

		status, err := c.deps.Executor.Status(ctx, run.id)
		if err != nil {
			return errors.Wrapf(err, "error polling execution %s", run.id)
		}
		switch status.State {
		case motion.PlanStateSucceeded:
			c.logger.CInfof(ctx, "reached goal %v", run.target)
			return nil
		case motion.PlanStateFailed:
			return errors.Wrap(ErrGoalFailed, status.String())
		case motion.PlanStateStopped:
			return ErrGoalCancelled
		case motion.PlanStateUnspecified, motion.PlanStateInProgress:
		}
		if c.deps.Costmap == nil {
			continue
		}

		blocked, err := c.lookupCostmap(ctx, cfg, run.target)
		if err != nil {
			c.logger.CDebugf(ctx, "skipping goal check: %v", err)
			continue
		}
		if !blocked {
			continue
		}
		c.logger.CInfof(ctx, "goal %v is now inside a lethal region", run.target)
		if c.pathOf(ctx, run) == nil {
			c.logger.CWarn(ctx, "no path to walk back along")
		}
		next, ok := c.resetGoal(ctx, cfg, run)
		if err := c.cancelGoal(ctx, run.id); err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrGoalUnreachable, "goal still blocked after %d reset(s)", run.resets)
		}
		run.target = next
		if run.id, err = c.deps.Executor.Dispatch(ctx, next); err != nil {
			return errors.Wrap(err, "error dispatching reset goal")
		}
		c.logger.CInfof(ctx, "re-dispatched reset goal %v as execution %s", next, run.id)
	}
}

// pathOf refreshes the last known path of the run from the executor when it reports one.
func (c *Controller) pathOf(ctx context.Context, run *goalRun) *motion.Path {
	if reporter, ok := c.deps.Executor.(pathReporter); ok {
		if path, err := reporter.CurrentPath(run.id); err == nil && path != nil && len(path.Waypoints) > 0 {
			run.path = path
		} else if err != nil {
			c.logger.CDebugf(ctx, "executor has no path for %s: %v", run.id, err)
		}
	}
	return run.path
}

// resetGoal walks back along the run's path from the waypoint nearest the blocked goal,
// goal_reset_back_interval waypoints further per attempt, until it finds a waypoint outside
// lethal space. Attempts count against goal_reset_retries for the whole goal. The new goal faces
// along the path.
func (c *Controller) resetGoal(ctx context.Context, cfg *Config, run *goalRun) (*referenceframe.PoseInFrame, bool) {
	if run.path == nil || len(run.path.Waypoints) == 0 {
		return nil, false
	}
	anchor := nearestWaypoint(run.path, run.target.Pose().Point())
	for step := 1; run.resets < cfg.GoalResetRetries; step++ {
		run.resets++
		idx := anchor - cfg.GoalResetBackInterval*step
		if idx < 0 {
			return nil, false
		}
		dir := run.path.DirectionAt(idx)
		candidate := referenceframe.NewPoseInFrame(run.target.FrameName(), spatialmath.NewPose(
			run.path.Waypoints[idx], spatialmath.OrientationFromDirection(dir.X, dir.Y)))
		blocked, err := c.lookupCostmap(ctx, cfg, candidate)
		if err != nil {
			c.logger.CDebugf(ctx, "goal reset %d: %v", run.resets, err)
			continue
		}
		if !blocked {
			c.logger.CInfof(ctx, "goal reset %d: falling back to waypoint %d", run.resets, idx)
			return candidate, true
		}
	}
	return nil, false
}

// nearestWaypoint returns the index of the waypoint closest to pt in the plane, the later one on
// ties.
func nearestWaypoint(path *motion.Path, pt r3.Vector) int {
	best, bestDist := 0, math.Inf(1)
	for i, wp := range path.Waypoints {
		if d := math.Hypot(wp.X-pt.X, wp.Y-pt.Y); d <= bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// cancelGoal cancels an execution and waits for the executor to confirm. It runs even if ctx is
// already done.
func (c *Controller) cancelGoal(ctx context.Context, id motion.ExecutionID) error {
	c.logger.CInfof(ctx, "cancelling execution %s", id)
	if err := c.deps.Executor.Cancel(context.WithoutCancel(ctx), id); err != nil {
		return errors.Wrapf(err, "error cancelling execution %s", id)
	}
	return nil
}

// ApproachGoal drives toward goal reactively, without an executor: every control tick steers to
// the gap nearest the goal bearing. It gives up with ErrGoalUnreachable when progress keeps
// reversing or after max_approach_ticks ticks.
func (c *Controller) ApproachGoal(ctx context.Context, goal *referenceframe.PoseInFrame) (err error) {
	cfg := c.Config()
	pose, err := c.currentPose(ctx, &cfg)
	if err != nil {
		return err
	}
	target, err := c.inFrame(ctx, goal, pose.FrameName())
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, c.stop(ctx))
	}()

	goalPt := target.Pose().Point()
	dist := spatialmath.PlanarDistance(pose.Pose(), target.Pose())
	c.logger.CInfof(ctx, "approaching %v, %.2f m away", target, dist)

	var diff float64
	sign := -1.0
	reversals, allowed := 0, 2*cfg.TryCount-1
	ticker := c.clock.Ticker(time.Duration(float64(time.Second) / cfg.ControlFrequencyHz))
	defer ticker.Stop()
	for tick := 0; dist > cfg.GoalTolerance; tick++ {
		if tick >= cfg.MaxApproachTicks {
			return errors.Wrapf(ErrGoalUnreachable, "not within %.2f m after %d ticks", cfg.GoalTolerance, tick)
		}
		if err := c.approachTick(ctx, &cfg, pose, goalPt); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		next, err := c.currentPose(ctx, &cfg)
		if err != nil {
			c.skipTick(ctx, err)
			continue
		}
		pose = next
		prev := dist
		dist = spatialmath.PlanarDistance(pose.Pose(), target.Pose())
		diff += dist - prev
		if math.Abs(diff) > cfg.ProgressDiffThreshold {
			if diff*sign < 0 {
				sign = -sign
				reversals++
				if reversals >= allowed {
					return errors.Wrapf(ErrGoalUnreachable, "progress toward %v reversed %d time(s)", target, reversals)
				}
			}
			diff = 0
		}
	}
	c.logger.CInfof(ctx, "arrived within %.2f m of %v", dist, target)
	return nil
}

// approachTick is one reactive tick toward goalPt, seen from pose.
func (c *Controller) approachTick(ctx context.Context, cfg *Config, pose *referenceframe.PoseInFrame, goalPt r3.Vector) error {
	reacted, err := c.reactToBumper(ctx, cfg)
	if err != nil || reacted {
		return err
	}
	scan, err := c.nextScan(ctx, cfg)
	if err != nil {
		c.skipTick(ctx, err)
		return nil
	}
	bearing := spatialmath.BearingTo(pose.Pose(), goalPt)
	return base.Publish(ctx, c.deps.Base, c.towardCommand(ctx, cfg, scan, bearing))
}
