// Package navigation contains the reactive navigation controller. Each control tick it turns a
// range scan, a pose and bumper events into one velocity command, and it drives goal-directed
// motion through an external executor while keeping the robot and its goal out of lethal
// costmap regions.
package navigation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"go.viam.com/localnav/components/base"
	"go.viam.com/localnav/components/bumper"
	"go.viam.com/localnav/components/lidar"
	"go.viam.com/localnav/control"
	"go.viam.com/localnav/costmap"
	"go.viam.com/localnav/logging"
	"go.viam.com/localnav/referenceframe"
	"go.viam.com/localnav/services/motion"
)

// Mode describes what mode to operate the service in.
type Mode uint8

// The set of known modes.
const (
	ModeManual = Mode(iota)
	ModeExplore
	ModeGoal
)

func (m Mode) String() string {
	switch m {
	case ModeManual:
		return "manual"
	case ModeExplore:
		return "explore"
	case ModeGoal:
		return "goal"
	default:
		return "unknown"
	}
}

// ModeFromString parses a mode name.
func ModeFromString(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "manual":
		return ModeManual, nil
	case "explore":
		return ModeExplore, nil
	case "goal":
		return ModeGoal, nil
	default:
		return ModeManual, errors.Errorf("unknown navigation mode %q", s)
	}
}

var (
	// ErrEscapeFailed is returned when the robot could not leave a lethal costmap region.
	ErrEscapeFailed = errors.New("could not escape lethal costmap region")
	// ErrGoalUnreachable is returned when a goal stays blocked after every reset, or the robot
	// stops making progress toward it.
	ErrGoalUnreachable = errors.New("goal is unreachable")
	// ErrGoalFailed is returned when the executor reports a failed execution.
	ErrGoalFailed = errors.New("goal execution failed")
	// ErrGoalCancelled is returned when the executor stopped before reaching the goal.
	ErrGoalCancelled = errors.New("goal execution was cancelled")
	// ErrRotationTimeout is returned when an in-place rotation runs past its time bound.
	ErrRotationTimeout = errors.New("rotation did not finish in time")
	// ErrNoExecutor is returned by MoveToGoal when no executor was provided.
	ErrNoExecutor = errors.New("navigation controller has no goal executor")
)

// Dependencies are the collaborators of a Controller. Base, Lidar and Localizer are required.
type Dependencies struct {
	Base        base.Base
	Lidar       lidar.Lidar
	Localizer   motion.Localizer
	Bumper      bumper.Bumper
	Costmap     costmap.Source
	Executor    motion.Executor
	Planner     motion.PathPlanner
	Transformer referenceframe.Transformer
	Clock       clock.Clock
}

// State is the part of the controller that persists across ticks.
type State struct {
	// PreviousAvoidanceSign is +1 or -1, never 0.
	PreviousAvoidanceSign float64
	// CenterAlternationBit is 0 or 1.
	CenterAlternationBit int
}

// Controller is the movement controller. Its methods must be called from one goroutine at a
// time; Reconfigure may be called concurrently.
type Controller struct {
	deps   Dependencies
	logger logging.Logger
	clock  clock.Clock

	mu    sync.Mutex
	cfg   Config
	state State

	skipLimiter *rate.Limiter
}

// NewController returns a controller for the given collaborators.
func NewController(deps Dependencies, cfg Config, logger logging.Logger) (*Controller, error) {
	if deps.Base == nil {
		return nil, errors.New("navigation controller needs a base")
	}
	if deps.Lidar == nil {
		return nil, errors.New("navigation controller needs a lidar")
	}
	if deps.Localizer == nil {
		return nil, errors.New("navigation controller needs a localizer")
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Controller{
		deps:        deps,
		logger:      logger,
		clock:       clk,
		cfg:         cfg,
		state:       State{PreviousAvoidanceSign: 1},
		skipLimiter: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}, nil
}

// Reconfigure swaps the configuration. The persisted State is kept.
func (c *Controller) Reconfigure(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
}

// Config returns the configuration in use.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// State returns a copy of the persisted state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setAvoidanceSign(sign float64) {
	if sign == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.PreviousAvoidanceSign = sign
}

// nextCenterBit returns the bit to use for this center query and flips it for the next one.
func (c *Controller) nextCenterBit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	bit := c.state.CenterAlternationBit
	c.state.CenterAlternationBit = 1 - bit
	return bit
}

func (c *Controller) sensorContext(ctx context.Context, cfg *Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, seconds(cfg.SensorTimeoutSec))
}

func (c *Controller) nextScan(ctx context.Context, cfg *Config) (*lidar.Scan, error) {
	sctx, cancel := c.sensorContext(ctx, cfg)
	defer cancel()
	scan, err := c.deps.Lidar.NextScan(sctx)
	if err != nil {
		return nil, errors.Wrap(err, "error reading scan")
	}
	if err := scan.Validate(); err != nil {
		return nil, err
	}
	return scan, nil
}

func (c *Controller) currentPose(ctx context.Context, cfg *Config) (*referenceframe.PoseInFrame, error) {
	sctx, cancel := c.sensorContext(ctx, cfg)
	defer cancel()
	pose, err := c.deps.Localizer.CurrentPosition(sctx)
	if err != nil {
		return nil, errors.Wrap(err, "error reading pose")
	}
	return pose, nil
}

// skipTick logs that a tick was dropped. Repeats are throttled so a dead sensor does not flood
// the log.
func (c *Controller) skipTick(ctx context.Context, err error) {
	if c.skipLimiter.Allow() {
		c.logger.CWarnf(ctx, "skipping control tick: %v", err)
		return
	}
	c.logger.CDebugf(ctx, "skipping control tick: %v", err)
}

func (c *Controller) timedAction(cfg *Config) (control.TimedAction, error) {
	return control.NewTimedAction(c.clock, cfg.ControlFrequencyHz, seconds(cfg.MaxManeuverSec))
}

// publishFor republishes cmd at the control rate for d.
func (c *Controller) publishFor(ctx context.Context, cfg *Config, cmd base.VelocityCommand, d time.Duration) error {
	action, err := c.timedAction(cfg)
	if err != nil {
		return err
	}
	return action.Run(ctx, d, func(ctx context.Context) error {
		return base.Publish(ctx, c.deps.Base, cmd)
	})
}

// stop stops the base, ignoring a canceled ctx so the robot halts even on shutdown.
func (c *Controller) stop(ctx context.Context) error {
	return c.deps.Base.Stop(context.WithoutCancel(ctx), nil)
}
