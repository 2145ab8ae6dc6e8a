package navigation

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"go.viam.com/test"

	"go.viam.com/localnav/components/base/fake"
	"go.viam.com/localnav/costmap"
	"go.viam.com/localnav/logging"
	"go.viam.com/localnav/referenceframe"
	"go.viam.com/localnav/services/motion"
	"go.viam.com/localnav/spatialmath"
	"go.viam.com/localnav/testutils/inject"
	"go.viam.com/localnav/utils"
)

// recordingExecutor dispatches goals and reports a scripted state for each of them.
type recordingExecutor struct {
	mu         sync.Mutex
	goals      []*referenceframe.PoseInFrame
	ids        []motion.ExecutionID
	cancelled  []motion.ExecutionID
	polls      int
	stateForID func(idx, polls int) motion.PlanState
}

func (re *recordingExecutor) inject() *inject.Executor {
	return &inject.Executor{
		DispatchFunc: func(ctx context.Context, goal *referenceframe.PoseInFrame) (motion.ExecutionID, error) {
			re.mu.Lock()
			defer re.mu.Unlock()
			id := uuid.New()
			re.goals = append(re.goals, goal)
			re.ids = append(re.ids, id)
			return id, nil
		},
		StatusFunc: func(ctx context.Context, id motion.ExecutionID) (motion.PlanStatus, error) {
			re.mu.Lock()
			defer re.mu.Unlock()
			re.polls++
			for i, known := range re.ids {
				if known == id {
					return motion.PlanStatus{State: re.stateForID(i, re.polls)}, nil
				}
			}
			return motion.PlanStatus{}, motion.ErrExecutionNotFound
		},
		CancelFunc: func(ctx context.Context, id motion.ExecutionID) error {
			re.mu.Lock()
			defer re.mu.Unlock()
			re.cancelled = append(re.cancelled, id)
			return nil
		},
	}
}

func newGoalController(t *testing.T, deps Dependencies) *Controller {
	t.Helper()
	deps.Base = fake.NewBase()
	deps.Lidar = staticLidar(halfCircleScan(10))
	if deps.Localizer == nil {
		deps.Localizer = staticLocalizer(0, 0, 0)
	}
	c, err := NewController(deps, testConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return c
}

func worldGoal(x, y float64) *referenceframe.PoseInFrame {
	return referenceframe.NewPoseInFrame(referenceframe.World, spatialmath.NewPoseFromPoint(r3.Vector{X: x, Y: y}))
}

func TestMoveToGoalTerminalStates(t *testing.T) {
	for _, tc := range []struct {
		state motion.PlanState
		want  error
	}{
		{motion.PlanStateSucceeded, nil},
		{motion.PlanStateFailed, ErrGoalFailed},
		{motion.PlanStateStopped, ErrGoalCancelled},
	} {
		t.Run(tc.state.String(), func(t *testing.T) {
			re := &recordingExecutor{stateForID: func(idx, polls int) motion.PlanState {
				if polls < 3 {
					return motion.PlanStateInProgress
				}
				return tc.state
			}}
			c := newGoalController(t, Dependencies{Executor: re.inject()})
			err := c.MoveToGoal(context.Background(), worldGoal(2, 2))
			if tc.want == nil {
				test.That(t, err, test.ShouldBeNil)
			} else {
				test.That(t, errors.Is(err, tc.want), test.ShouldBeTrue)
			}
			test.That(t, re.goals, test.ShouldHaveLength, 1)
			test.That(t, re.polls, test.ShouldEqual, 3)
			test.That(t, re.cancelled, test.ShouldBeEmpty)
		})
	}
}

func TestMoveToGoalHeading(t *testing.T) {
	succeed := func(idx, polls int) motion.PlanState { return motion.PlanStateSucceeded }

	// goal to the left is approached with the bias added
	re := &recordingExecutor{stateForID: succeed}
	c := newGoalController(t, Dependencies{Executor: re.inject()})
	test.That(t, c.MoveToGoal(context.Background(), worldGoal(2, 2)), test.ShouldBeNil)
	test.That(t, spatialmath.Yaw(re.goals[0].Pose()), test.ShouldAlmostEqual, math.Pi/4+utils.DegToRad(10), 1e-9)

	// goal to the right subtracts it
	re = &recordingExecutor{stateForID: succeed}
	c = newGoalController(t, Dependencies{Executor: re.inject()})
	test.That(t, c.MoveToGoal(context.Background(), worldGoal(2, -2)), test.ShouldBeNil)
	test.That(t, spatialmath.Yaw(re.goals[0].Pose()), test.ShouldAlmostEqual, -math.Pi/4-utils.DegToRad(10), 1e-9)

	// straight ahead keeps the start to goal direction
	re = &recordingExecutor{stateForID: succeed}
	c = newGoalController(t, Dependencies{Executor: re.inject()})
	test.That(t, c.MoveToGoal(context.Background(), worldGoal(3, 0)), test.ShouldBeNil)
	test.That(t, spatialmath.Yaw(re.goals[0].Pose()), test.ShouldAlmostEqual, 0, 1e-9)

	// a planner direction wins over the bias
	re = &recordingExecutor{stateForID: succeed}
	c = newGoalController(t, Dependencies{
		Executor: re.inject(),
		Planner: &inject.PathPlanner{PlanFunc: func(ctx context.Context, start, goal *referenceframe.PoseInFrame) (*motion.Path, error) {
			return &motion.Path{Waypoints: []r3.Vector{{}, {X: 2, Y: 2}}, Direction: r3.Vector{Y: 1}}, nil
		}},
	})
	test.That(t, c.MoveToGoal(context.Background(), worldGoal(2, 2)), test.ShouldBeNil)
	test.That(t, spatialmath.Yaw(re.goals[0].Pose()), test.ShouldAlmostEqual, math.Pi/2, 1e-9)
	test.That(t, re.goals[0].Pose().Point(), test.ShouldResemble, r3.Vector{X: 2, Y: 2})
}

func TestMoveToGoalNeedsExecutor(t *testing.T) {
	c := newGoalController(t, Dependencies{})
	test.That(t, c.MoveToGoal(context.Background(), worldGoal(1, 0)), test.ShouldBeError, ErrNoExecutor)
}

func TestMoveToGoalConvertsFrames(t *testing.T) {
	re := &recordingExecutor{stateForID: func(idx, polls int) motion.PlanState { return motion.PlanStateSucceeded }}
	c := newGoalController(t, Dependencies{
		Executor: re.inject(),
		Transformer: &inject.Transformer{TransformPoseFunc: func(
			ctx context.Context, pose *referenceframe.PoseInFrame, dst string,
		) (*referenceframe.PoseInFrame, error) {
			test.That(t, dst, test.ShouldEqual, referenceframe.World)
			p := pose.Pose().Point()
			return referenceframe.NewPoseInFrame(dst, spatialmath.NewPoseFromPoint(r3.Vector{X: p.X + 5, Y: p.Y})), nil
		}},
	})
	goal := referenceframe.NewPoseInFrame("map", spatialmath.NewPoseFromPoint(r3.Vector{X: 1}))
	test.That(t, c.MoveToGoal(context.Background(), goal), test.ShouldBeNil)
	test.That(t, re.goals[0].FrameName(), test.ShouldEqual, referenceframe.World)
	test.That(t, re.goals[0].Pose().Point().X, test.ShouldAlmostEqual, 6)
}

// corridorGrid covers [-1, 11) x [-2, 2) at 10cm and marks cells with x at or beyond lethalFromX.
func corridorGrid(t *testing.T, lethalFromX float64) *costmap.Grid {
	t.Helper()
	g, err := costmap.NewGrid(120, 40, 0.1, r3.Vector{X: -1, Y: -2})
	test.That(t, err, test.ShouldBeNil)
	g.Frame = referenceframe.World
	for cy := 0; cy < g.Height; cy++ {
		for cx := 0; cx < g.Width; cx++ {
			if g.CellCenter(cx, cy).X >= lethalFromX {
				test.That(t, g.SetCost(cx, cy, costmap.DefaultLethal), test.ShouldBeNil)
			}
		}
	}
	return g
}

func straightPlanner() *inject.PathPlanner {
	return &inject.PathPlanner{PlanFunc: func(ctx context.Context, start, goal *referenceframe.PoseInFrame) (*motion.Path, error) {
		path := &motion.Path{Direction: r3.Vector{X: 1}}
		for x := 0; x <= 10; x++ {
			path.Waypoints = append(path.Waypoints, r3.Vector{X: float64(x)})
		}
		return path, nil
	}}
}

func TestMoveToGoalResetsBlockedGoal(t *testing.T) {
	re := &recordingExecutor{stateForID: func(idx, polls int) motion.PlanState {
		if idx == 0 {
			return motion.PlanStateInProgress
		}
		return motion.PlanStateSucceeded
	}}
	c := newGoalController(t, Dependencies{
		Executor: re.inject(),
		Planner:  straightPlanner(),
		Costmap:  staticCostmap(corridorGrid(t, 8.5)),
	})

	test.That(t, c.MoveToGoal(context.Background(), worldGoal(10, 0)), test.ShouldBeNil)
	test.That(t, re.goals, test.ShouldHaveLength, 2)
	test.That(t, re.cancelled, test.ShouldResemble, []motion.ExecutionID{re.ids[0]})
	// three waypoints back from the end
	test.That(t, re.goals[1].Pose().Point(), test.ShouldResemble, r3.Vector{X: 7})
	test.That(t, spatialmath.Yaw(re.goals[1].Pose()), test.ShouldAlmostEqual, 0, 1e-9)
}

// pathExecutor reports, for every execution, a path of unit steps from the origin to its goal.
type pathExecutor struct {
	*inject.Executor
	re *recordingExecutor
}

func (pe pathExecutor) CurrentPath(id motion.ExecutionID) (*motion.Path, error) {
	pe.re.mu.Lock()
	defer pe.re.mu.Unlock()
	for i, known := range pe.re.ids {
		if known != id {
			continue
		}
		path := &motion.Path{Direction: r3.Vector{X: 1}}
		for x := 0; x <= int(pe.re.goals[i].Pose().Point().X); x++ {
			path.Waypoints = append(path.Waypoints, r3.Vector{X: float64(x)})
		}
		return path, nil
	}
	return nil, motion.ErrExecutionNotFound
}

func TestMoveToGoalResetsEachBlockOnCurrentPath(t *testing.T) {
	re := &recordingExecutor{stateForID: func(idx, polls int) motion.PlanState {
		if idx < 2 {
			return motion.PlanStateInProgress
		}
		return motion.PlanStateSucceeded
	}}
	far, near := corridorGrid(t, 8.5), corridorGrid(t, 5.5)
	c := newGoalController(t, Dependencies{
		Executor: pathExecutor{Executor: re.inject(), re: re},
		Planner:  straightPlanner(),
		Costmap: &inject.CostmapSource{CostmapFunc: func(ctx context.Context) (*costmap.Grid, error) {
			re.mu.Lock()
			defer re.mu.Unlock()
			if len(re.goals) < 2 {
				return far, nil
			}
			return near, nil
		}},
	})

	test.That(t, c.MoveToGoal(context.Background(), worldGoal(10, 0)), test.ShouldBeNil)
	test.That(t, re.goals, test.ShouldHaveLength, 3)
	test.That(t, re.cancelled, test.ShouldResemble, []motion.ExecutionID{re.ids[0], re.ids[1]})
	// each blocked goal falls back three waypoints along the path the executor reports
	test.That(t, re.goals[1].Pose().Point(), test.ShouldResemble, r3.Vector{X: 7})
	test.That(t, re.goals[2].Pose().Point(), test.ShouldResemble, r3.Vector{X: 4})
}

func TestMoveToGoalUnreachable(t *testing.T) {
	re := &recordingExecutor{stateForID: func(idx, polls int) motion.PlanState { return motion.PlanStateInProgress }}
	c := newGoalController(t, Dependencies{
		Executor: re.inject(),
		Planner:  straightPlanner(),
		Costmap:  staticCostmap(corridorGrid(t, 0.5)),
	})

	err := c.MoveToGoal(context.Background(), worldGoal(10, 0))
	test.That(t, errors.Is(err, ErrGoalUnreachable), test.ShouldBeTrue)
	test.That(t, re.goals, test.ShouldHaveLength, 1)
	test.That(t, re.cancelled, test.ShouldResemble, []motion.ExecutionID{re.ids[0]})
}

func TestMoveToGoalCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	re := &recordingExecutor{stateForID: func(idx, polls int) motion.PlanState {
		if polls >= 2 {
			cancel()
		}
		return motion.PlanStateInProgress
	}}
	c := newGoalController(t, Dependencies{Executor: re.inject()})

	err := c.MoveToGoal(ctx, worldGoal(1, 1))
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	test.That(t, re.cancelled, test.ShouldHaveLength, 1)
}

func TestApproachGoalArrives(t *testing.T) {
	cfg := testConfig()
	cfg.ForwardVelocity = 1
	c, kb := newKinematicController(t, cfg, spatialmath.NewZeroPose(), Dependencies{})

	test.That(t, c.ApproachGoal(context.Background(), worldGoal(2, 0)), test.ShouldBeNil)
	pose, err := kb.CurrentPosition(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PlanarDistance(pose.Pose(), worldGoal(2, 0).Pose()), test.ShouldBeLessThanOrEqualTo, cfg.GoalTolerance)
	test.That(t, kb.StopCount, test.ShouldEqual, 1)
}

func TestApproachGoalGivesUp(t *testing.T) {
	// a robot that never moves runs out of ticks
	cfg := testConfig()
	cfg.MaxApproachTicks = 5
	b := fake.NewBase()
	c, err := NewController(Dependencies{
		Base:      b,
		Lidar:     staticLidar(halfCircleScan(10)),
		Localizer: staticLocalizer(0, 0, 0),
	}, cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	err = c.ApproachGoal(context.Background(), worldGoal(3, 0))
	test.That(t, errors.Is(err, ErrGoalUnreachable), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "after 5 ticks")

	// a robot pushed away from a goal behind it reverses its progress
	cfg = testConfig()
	cfg.ForwardVelocity = 1
	c, _ = newKinematicController(t, cfg, spatialmath.NewZeroPose(), Dependencies{})
	err = c.ApproachGoal(context.Background(), worldGoal(-3, 0))
	test.That(t, errors.Is(err, ErrGoalUnreachable), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "reversed")
}
