// Package builtin implements a motion Executor that plans with a PathPlanner and follows the
// resulting waypoints with a base.
package builtin

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/localnav/components/base"
	"go.viam.com/localnav/logging"
	"go.viam.com/localnav/referenceframe"
	"go.viam.com/localnav/services/motion"
	"go.viam.com/localnav/services/motion/builtin/state"
	"go.viam.com/localnav/spatialmath"
)

// Config configures how waypoints are followed.
type Config struct {
	LinearSpeed       float64       `json:"linear_speed"`
	MaxTurnRate       float64       `json:"max_turn_rate"`
	TurnGain          float64       `json:"turn_gain"`
	WaypointTolerance float64       `json:"waypoint_tolerance"`
	HeadingTolerance  float64       `json:"heading_tolerance_rad"`
	FrequencyHz       float64       `json:"frequency_hz"`
	WaypointTimeout   time.Duration `json:"waypoint_timeout"`
	MaxReplans        int           `json:"max_replans"`
}

// DefaultConfig returns the follower defaults.
func DefaultConfig() Config {
	return Config{
		LinearSpeed:       0.2,
		MaxTurnRate:       0.8,
		TurnGain:          1.5,
		WaypointTolerance: 0.15,
		HeadingTolerance:  math.Pi / 4,
		FrequencyHz:       10,
		WaypointTimeout:   30 * time.Second,
		MaxReplans:        3,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	switch {
	case cfg.LinearSpeed <= 0:
		return errors.Errorf("%s: linear_speed must be positive", path)
	case cfg.MaxTurnRate <= 0:
		return errors.Errorf("%s: max_turn_rate must be positive", path)
	case cfg.WaypointTolerance <= 0:
		return errors.Errorf("%s: waypoint_tolerance must be positive", path)
	case cfg.FrequencyHz <= 0 || cfg.FrequencyHz > 200:
		return errors.Errorf("%s: frequency_hz shouldn't be 0 or above 200Hz", path)
	case cfg.WaypointTimeout <= 0:
		return errors.Errorf("%s: waypoint_timeout must be positive", path)
	case cfg.MaxReplans < 0:
		return errors.Errorf("%s: max_replans can't be negative", path)
	}
	return nil
}

// Executor plans a path to each dispatched goal and follows it in the background.
type Executor struct {
	logger    logging.Logger
	cfg       Config
	base      base.Base
	localizer motion.Localizer
	planner   motion.PathPlanner
	clock     clock.Clock
	state     *state.State
}

// NewExecutor returns an Executor driving b. A nil clock uses the wall clock.
func NewExecutor(
	ctx context.Context,
	logger logging.Logger,
	cfg Config,
	b base.Base,
	localizer motion.Localizer,
	planner motion.PathPlanner,
	clk clock.Clock,
) (*Executor, error) {
	if err := cfg.Validate("executor"); err != nil {
		return nil, err
	}
	if b == nil || localizer == nil || planner == nil {
		return nil, errors.New("executor needs a base, a localizer and a planner")
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Executor{
		logger:    logger,
		cfg:       cfg,
		base:      b,
		localizer: localizer,
		planner:   planner,
		clock:     clk,
		state:     state.NewState(ctx, logger),
	}, nil
}

// Dispatch plans to goal and starts following the path.
func (e *Executor) Dispatch(ctx context.Context, goal *referenceframe.PoseInFrame) (motion.ExecutionID, error) {
	id, err := state.StartExecution(ctx, e.state, goal, e.newFollower)
	if err != nil {
		return id, err
	}
	e.logger.CInfof(ctx, "dispatched execution %s to %s", id, goal)
	return id, nil
}

// Status returns the latest status of an execution.
func (e *Executor) Status(ctx context.Context, id motion.ExecutionID) (motion.PlanStatus, error) {
	return e.state.Status(id)
}

// Cancel stops an execution and waits for it.
func (e *Executor) Cancel(ctx context.Context, id motion.ExecutionID) error {
	return e.state.StopExecution(id)
}

// CurrentPath returns the path an execution is following.
func (e *Executor) CurrentPath(id motion.ExecutionID) (*motion.Path, error) {
	return e.state.Path(id)
}

// Close stops every execution and the base.
func (e *Executor) Close(ctx context.Context) error {
	e.state.Stop()
	return e.base.Stop(ctx, nil)
}

func (e *Executor) newFollower(
	ctx context.Context,
	goal *referenceframe.PoseInFrame,
	seedPath *motion.Path,
	replanCount int,
) (state.PlannerExecutor, error) {
	if replanCount > e.cfg.MaxReplans {
		return nil, errors.Errorf("gave up after %d replans", e.cfg.MaxReplans)
	}
	return &follower{executor: e, goal: goal}, nil
}

// follower plans from the current pose and drives through the waypoints one at a time.
type follower struct {
	executor *Executor
	goal     *referenceframe.PoseInFrame
}

func (f *follower) Plan(ctx context.Context) (*motion.Path, error) {
	start, err := f.executor.localizer.CurrentPosition(ctx)
	if err != nil {
		return nil, err
	}
	path, err := f.executor.planner.Plan(ctx, start, f.goal)
	if err != nil {
		return nil, err
	}
	if len(path.Waypoints) == 0 {
		return nil, errors.New("planner returned an empty path")
	}
	return path, nil
}

func (f *follower) Execute(ctx context.Context, path *motion.Path) (resp state.ExecuteResponse, err error) {
	e := f.executor
	defer func() {
		// the base must stop even when ctx is already cancelled
		err = multierr.Combine(err, e.base.Stop(context.Background(), nil))
	}()

	ticker := e.clock.Ticker(time.Duration(float64(time.Second) / e.cfg.FrequencyHz))
	defer ticker.Stop()

	idx := 0
	waypointStart := e.clock.Now()
	for {
		if err := ctx.Err(); err != nil {
			return state.ExecuteResponse{}, err
		}
		pif, err := e.localizer.CurrentPosition(ctx)
		if err != nil {
			return state.ExecuteResponse{}, err
		}
		pose := pif.Pose()
		for idx < len(path.Waypoints) && planar(pose, path.Waypoints[idx]) <= e.cfg.WaypointTolerance {
			idx++
			waypointStart = e.clock.Now()
		}
		if idx == len(path.Waypoints) {
			return state.ExecuteResponse{}, nil
		}
		if e.clock.Since(waypointStart) > e.cfg.WaypointTimeout {
			return state.ExecuteResponse{Replan: true, ReplanReason: "timed out reaching waypoint"}, nil
		}

		bearing := spatialmath.BearingTo(pose, path.Waypoints[idx])
		cmd := base.VelocityCommand{
			Turn: math.Max(-e.cfg.MaxTurnRate, math.Min(e.cfg.MaxTurnRate, e.cfg.TurnGain*bearing)),
		}
		if math.Abs(bearing) <= e.cfg.HeadingTolerance {
			cmd.Forward = e.cfg.LinearSpeed
		}
		if err := base.Publish(ctx, e.base, cmd); err != nil {
			return state.ExecuteResponse{}, err
		}

		select {
		case <-ctx.Done():
			return state.ExecuteResponse{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func planar(p spatialmath.Pose, target r3.Vector) float64 {
	d := target.Sub(p.Point())
	return math.Hypot(d.X, d.Y)
}
