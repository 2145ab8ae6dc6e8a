package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/golang/geo/r3"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/localnav/config"
	"go.viam.com/localnav/logging"
	"go.viam.com/localnav/referenceframe"
	"go.viam.com/localnav/robots/sim"
	"go.viam.com/localnav/services/motion/builtin"
	"go.viam.com/localnav/services/navigation"
	"go.viam.com/localnav/spatialmath"
	"go.viam.com/localnav/utils"
)

const (
	defaultLogMaxSizeMB  = 10
	defaultLogMaxBackups = 3
	reloadDebounce       = 250 * time.Millisecond
	planSpacing          = 0.25
)

// session holds everything a driving command needs. close releases it in reverse order.
type session struct {
	logger     logging.Logger
	registry   *logging.Registry
	cfg        *config.Config
	robot      *sim.Robot
	executor   *builtin.Executor
	controller *navigation.Controller
	closers    []func() error
}

func (s *session) close(ctx context.Context) error {
	var errs error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, s.closers[i]())
	}
	if s.executor != nil {
		errs = multierr.Append(errs, s.executor.Close(ctx))
	}
	if s.robot != nil {
		errs = multierr.Append(errs, s.robot.Close(ctx))
	}
	return errs
}

// newLogger builds the root logger. The file appender is attached before any sublogger is made so
// every sublogger writes to it too.
func newLogger(c *cli.Context, cfg *config.Config) (logging.Logger, *logging.FileAppender, error) {
	logger := logging.NewLogger("localnav")
	level := logging.INFO
	if cfg != nil && cfg.Log.Level != "" {
		l, err := logging.LevelFromString(cfg.Log.Level)
		if err != nil {
			return nil, nil, err
		}
		level = l
	}
	if c.Bool(flagDebug) {
		level = logging.DEBUG
	}
	logger.SetLevel(level)

	file := c.String(flagLogFile)
	maxSize, maxBackups := defaultLogMaxSizeMB, defaultLogMaxBackups
	if cfg != nil {
		if file == "" {
			file = cfg.Log.File
		}
		if cfg.Log.MaxSizeMB > 0 {
			maxSize = cfg.Log.MaxSizeMB
		}
		if cfg.Log.MaxBackups > 0 {
			maxBackups = cfg.Log.MaxBackups
		}
	}
	if file == "" {
		return logger, nil, nil
	}
	appender := logging.NewFileAppender(file, maxSize, maxBackups)
	logger.AddAppender(appender)
	return logger, appender, nil
}

func readConfig(c *cli.Context) (*config.Config, error) {
	return config.Read(c.Context, c.String(flagConfig), logging.NewBlankLogger("config"))
}

func newSession(c *cli.Context) (*session, error) {
	cfg, err := readConfig(c)
	if err != nil {
		return nil, err
	}
	if cfg.Simulation == nil {
		return nil, errors.Errorf("config %q has no simulation section; only simulated robots are supported", cfg.ConfigFilePath)
	}

	logger, appender, err := newLogger(c, cfg)
	if err != nil {
		return nil, err
	}
	logging.ReplaceGlobal(logger)
	s := &session{logger: logger, cfg: cfg}
	if appender != nil {
		s.closers = append(s.closers, appender.Close)
	}

	s.registry = logging.NewRegistry(logger.GetLevel())
	robotLogger := logger.Sublogger("sim")
	execLogger := logger.Sublogger("executor")
	navLogger := logger.Sublogger("navigation")
	for name, l := range map[string]logging.Logger{
		"localnav.sim":        robotLogger,
		"localnav.executor":   execLogger,
		"localnav.navigation": navLogger,
	} {
		if err := s.registry.Register(name, l); err != nil {
			return nil, multierr.Combine(err, s.close(c.Context))
		}
	}
	if err := s.registry.UpdateConfig(cfg.Log.Patterns, logger); err != nil {
		return nil, multierr.Combine(err, s.close(c.Context))
	}

	s.robot, err = sim.NewRobot(*cfg.Simulation, nil, robotLogger)
	if err != nil {
		return nil, multierr.Combine(err, s.close(c.Context))
	}

	execCfg := builtin.DefaultConfig()
	if cfg.Executor != nil {
		execCfg = *cfg.Executor
	}
	planner := &builtin.LinePlanner{Spacing: planSpacing}
	s.executor, err = builtin.NewExecutor(c.Context, execLogger, execCfg, s.robot, s.robot, planner, nil)
	if err != nil {
		return nil, multierr.Combine(err, s.close(c.Context))
	}

	navCfg := *cfg.NavigationConfig()
	deps := navigation.Dependencies{
		Base:        s.robot,
		Lidar:       s.robot,
		Localizer:   s.robot,
		Costmap:     s.robot,
		Executor:    s.executor,
		Planner:     planner,
		Transformer: cfg.FrameSystem(),
	}
	if navCfg.Bumper != "" {
		deps.Bumper = s.robot
	}
	s.controller, err = navigation.NewController(deps, navCfg, navLogger)
	if err != nil {
		return nil, multierr.Combine(err, s.close(c.Context))
	}
	logger.CInfow(c.Context, "session started", "config", cfg.ConfigFilePath, "level", logger.GetLevel().String())
	return s, nil
}

// finish closes the session and reports what the simulated robot did.
func (s *session) finish(c *cli.Context, runErr error) error {
	stats := s.robot.Stats()
	pif, err := s.robot.CurrentPosition(context.Background())
	if err == nil {
		p := pif.Pose()
		s.logger.CInfow(c.Context, "session finished",
			"x", p.Point().X, "y", p.Point().Y, "yaw_degs", utils.RadToDeg(spatialmath.Yaw(p)),
			"commands", stats.Commands, "stops", stats.Stops, "collisions", stats.Collisions)
	}
	return multierr.Combine(runErr, s.close(context.Background()))
}

// runContext returns the context a driving command runs under.
func runContext(c *cli.Context, name string) context.Context {
	if c.Bool(flagTrace) {
		return logging.EnableDebugMode(c.Context, name)
	}
	return c.Context
}

// ExploreAction drives forward with obstacle avoidance until interrupted or the duration elapses.
func ExploreAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx := runContext(c, "explore")
	if d := c.Duration(flagDuration); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	if c.Bool(flagWatch) {
		w, err := config.NewWatcher(ctx, s.cfg.ConfigFilePath, reloadDebounce, s.logger.Sublogger("config"))
		if err != nil {
			return s.finish(c, err)
		}
		s.closers = append(s.closers, w.Close)
		w.Subscribe(func(cfg *config.Config) {
			s.controller.Reconfigure(*cfg.NavigationConfig())
			if err := s.registry.UpdateConfig(cfg.Log.Patterns, s.logger); err != nil {
				s.logger.CWarnw(ctx, "failed to apply log patterns", "error", err)
			}
		})
	}

	err = s.controller.Explore(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	return s.finish(c, err)
}

// GoalAction drives to the goal given by the x, y and frame flags.
func GoalAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	goal := referenceframe.NewPoseInFrame(
		c.String(flagFrame),
		spatialmath.NewPoseFromPoint(r3.Vector{X: c.Float64(flagX), Y: c.Float64(flagY)}),
	)
	ctx := runContext(c, "goal")
	if c.Bool(flagReactive) {
		err = s.controller.ApproachGoal(ctx, goal)
	} else {
		err = s.controller.MoveToGoal(ctx, goal)
	}
	return s.finish(c, err)
}

// RotateAction rotates to an absolute heading, or makes one full turn.
func RotateAction(c *cli.Context) error {
	if c.Bool(flagFull) == c.IsSet(flagYawDegs) {
		return errors.New("exactly one of --yaw-degs and --full is required")
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx := runContext(c, "rotate")
	if c.Bool(flagFull) {
		err = s.controller.OneRotation(ctx)
	} else {
		err = s.controller.RotateTo(ctx, utils.DegToRad(c.Float64(flagYawDegs)))
	}
	return s.finish(c, err)
}

// ValidateAction reads a config and prints the components it depends on.
func ValidateAction(c *cli.Context) error {
	cfg, err := readConfig(c)
	if err != nil {
		return err
	}
	deps, err := cfg.NavigationConfig().Validate("navigation")
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s is valid\n", cfg.ConfigFilePath)
	for _, d := range deps {
		printf(c.App.Writer, "  depends on %s\n", d)
	}
	if cfg.Simulation == nil {
		printf(c.App.Writer, "  no simulation section; components must be provided by a robot\n")
	}
	return nil
}

// SchemaAction prints the JSON schema of the navigation attributes.
func SchemaAction(c *cli.Context) error {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := r.Reflect(&navigation.Config{})
	schema.Title = "localnav navigation attributes"
	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return errors.Wrap(err, "error encoding schema")
	}
	printf(c.App.Writer, "%s\n", out)
	return nil
}

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format, a...)
}
