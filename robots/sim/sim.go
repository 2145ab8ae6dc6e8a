// Package sim implements a simulated differential drive robot in a 2D world. A single Robot
// serves as the base, the localizer, the lidar, the bumper and the costmap source of a
// navigation controller.
package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"

	"go.viam.com/localnav/components/base"
	"go.viam.com/localnav/components/bumper"
	"go.viam.com/localnav/costmap"
	"go.viam.com/localnav/logging"
	"go.viam.com/localnav/referenceframe"
	"go.viam.com/localnav/spatialmath"
	"go.viam.com/localnav/utils"
)

// Names are the component names the simulated robot answers to.
type Names struct {
	Base           string `json:"base"`
	Lidar          string `json:"lidar"`
	MovementSensor string `json:"movement_sensor"`
	Bumper         string `json:"bumper"`
}

// LidarConfig describes the simulated range sensor.
type LidarConfig struct {
	Samples  int     `json:"samples"`
	AngleMin float64 `json:"angle_min_rad"`
	AngleMax float64 `json:"angle_max_rad"`
	RangeMax float64 `json:"range_max"`
}

// CostmapConfig describes the costmap rendered from the world.
type CostmapConfig struct {
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Resolution      float64 `json:"resolution"`
	OriginX         float64 `json:"origin_x"`
	OriginY         float64 `json:"origin_y"`
	InflationRadius float64 `json:"inflation_radius"`
	DecayDistance   float64 `json:"decay_distance"`
	LethalCost      int     `json:"lethal_cost"`
}

// Config configures the simulated robot.
type Config struct {
	Frame       string        `json:"frame,omitempty"`
	StartX      float64       `json:"start_x"`
	StartY      float64       `json:"start_y"`
	StartYawRad float64       `json:"start_yaw_rad"`
	Radius      float64       `json:"radius"`
	BumperArc   float64       `json:"bumper_center_arc_rad"`
	Names       Names         `json:"names"`
	Lidar       LidarConfig   `json:"lidar"`
	Costmap     CostmapConfig `json:"costmap"`
	World       World         `json:"world"`
}

// DefaultConfig returns a robot in an empty 10m x 10m room with a 180 degree lidar.
func DefaultConfig() Config {
	return Config{
		Frame:     referenceframe.World,
		Radius:    0.2,
		BumperArc: 0.35,
		Names: Names{
			Base:           "base",
			Lidar:          "lidar",
			MovementSensor: "movement_sensor",
			Bumper:         "bumper",
		},
		Lidar: LidarConfig{
			Samples:  181,
			AngleMin: -math.Pi / 2,
			AngleMax: math.Pi / 2,
			RangeMax: 8,
		},
		Costmap: CostmapConfig{
			Width:           220,
			Height:          220,
			Resolution:      0.05,
			OriginX:         -5.5,
			OriginY:         -5.5,
			InflationRadius: 0.25,
			DecayDistance:   0.5,
			LethalCost:      costmap.DefaultLethal,
		},
		World: World{Walls: Box(-5, -5, 5, 5)},
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	switch {
	case !(cfg.Radius > 0):
		return utils.NewConfigValidationError(path, errors.New("radius must be positive"))
	case cfg.BumperArc < 0:
		return utils.NewConfigValidationError(path, errors.New("bumper_center_arc_rad can't be negative"))
	case cfg.Names.Base == "":
		return utils.NewConfigValidationFieldRequiredError(path, "names.base")
	case cfg.Names.Lidar == "":
		return utils.NewConfigValidationFieldRequiredError(path, "names.lidar")
	case cfg.Names.MovementSensor == "":
		return utils.NewConfigValidationFieldRequiredError(path, "names.movement_sensor")
	case cfg.Lidar.Samples < 2:
		return utils.NewConfigValidationError(path, errors.New("lidar.samples must be at least 2"))
	case !(cfg.Lidar.AngleMax > cfg.Lidar.AngleMin):
		return utils.NewConfigValidationError(path, errors.New("lidar.angle_max_rad must exceed lidar.angle_min_rad"))
	case !(cfg.Lidar.RangeMax > 0):
		return utils.NewConfigValidationError(path, errors.New("lidar.range_max must be positive"))
	case cfg.Costmap.Width <= 0 || cfg.Costmap.Height <= 0:
		return utils.NewConfigValidationError(path, errors.New("costmap dimensions must be positive"))
	case !(cfg.Costmap.Resolution > 0):
		return utils.NewConfigValidationError(path, errors.New("costmap.resolution must be positive"))
	case cfg.Costmap.InflationRadius < 0 || cfg.Costmap.DecayDistance < 0:
		return utils.NewConfigValidationError(path, errors.New("costmap inflation distances can't be negative"))
	case cfg.Costmap.LethalCost <= 0:
		return utils.NewConfigValidationError(path, errors.New("costmap.lethal_cost must be positive"))
	}
	return cfg.World.Validate(path + ".world")
}

// Resolve returns an error naming every entry of deps the simulated robot does not provide.
func (cfg *Config) Resolve(deps []string) error {
	provided := lo.Compact([]string{cfg.Names.Base, cfg.Names.Lidar, cfg.Names.MovementSensor, cfg.Names.Bumper})
	if missing := lo.Uniq(lo.Without(deps, provided...)); len(missing) > 0 {
		return errors.Errorf("simulated robot provides %v, missing %v", provided, missing)
	}
	return nil
}

// Robot is a simulated unicycle. Its pose advances with the clock at the last commanded velocity.
// Motion that would overlap an obstacle is refused and latches a bumper contact.
type Robot struct {
	logger logging.Logger
	cfg    Config
	clock  clock.Clock

	mu      sync.Mutex
	x, y    float64
	th      float64
	cmd     base.VelocityCommand
	last    time.Time
	contact *bumper.Contact

	gridOnce sync.Once
	grid     *costmap.Grid
	gridErr  error

	commands   atomic.Int64
	stops      atomic.Int64
	scans      atomic.Int64
	collisions atomic.Int64
}

// NewRobot returns a robot at the configured start pose. A nil clock uses the wall clock.
func NewRobot(cfg Config, clk clock.Clock, logger logging.Logger) (*Robot, error) {
	if err := cfg.Validate("simulation"); err != nil {
		return nil, err
	}
	if cfg.Frame == "" {
		cfg.Frame = referenceframe.World
	}
	if clk == nil {
		clk = clock.New()
	}
	r := &Robot{
		logger: logger,
		cfg:    cfg,
		clock:  clk,
		x:      cfg.StartX,
		y:      cfg.StartY,
		th:     utils.WrapAngle(cfg.StartYawRad),
		last:   clk.Now(),
	}
	if _, d := cfg.World.Nearest(r3.Vector{X: r.x, Y: r.y}); d < cfg.Radius {
		return nil, errors.Errorf("start pose (%.2f, %.2f) overlaps an obstacle", r.x, r.y)
	}
	return r, nil
}

// advanceLocked integrates the current command up to now in steps of at most half the robot
// radius. Translation into an obstacle is dropped for the rest of the interval and recorded as a
// bumper contact; rotation always happens.
func (r *Robot) advanceLocked() {
	now := r.clock.Now()
	dt := now.Sub(r.last).Seconds()
	r.last = now
	if dt <= 0 || (r.cmd.Forward == 0 && r.cmd.Turn == 0) {
		return
	}
	v, w := r.cmd.Forward, r.cmd.Turn
	steps := max(1, int(math.Ceil(math.Abs(v)*dt/(r.cfg.Radius/2))))
	h := dt / float64(steps)
	blocked := false
	for range steps {
		nx, ny := r.x, r.y
		if math.Abs(w) < 1e-9 {
			nx += v * h * math.Cos(r.th)
			ny += v * h * math.Sin(r.th)
		} else {
			nx += v / w * (math.Sin(r.th+w*h) - math.Sin(r.th))
			ny -= v / w * (math.Cos(r.th+w*h) - math.Cos(r.th))
		}
		if !blocked {
			if pt, d := r.cfg.World.Nearest(r3.Vector{X: nx, Y: ny}); d < r.cfg.Radius {
				blocked = true
				contact := r.contactAt(pt)
				r.contact = &contact
				r.collisions.Inc()
				r.logger.Debugf("collision near (%.2f, %.2f) on the %s side", nx, ny, contact)
			} else {
				r.x, r.y = nx, ny
			}
		}
		r.th = utils.WrapAngle(r.th + w*h)
	}
}

// contactAt maps an obstacle point to the part of the bumper facing it.
func (r *Robot) contactAt(pt r3.Vector) bumper.Contact {
	bearing := utils.WrapAngle(math.Atan2(pt.Y-r.y, pt.X-r.x) - r.th)
	switch {
	case bearing > r.cfg.BumperArc:
		return bumper.Left
	case bearing < -r.cfg.BumperArc:
		return bumper.Right
	default:
		return bumper.Center
	}
}

// SetVelocity starts moving at the given velocities. Forward speed is linear.Y, turn rate angular.Z.
func (r *Robot) SetVelocity(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advanceLocked()
	r.cmd = base.CommandFromVelocities(linear, angular)
	r.commands.Inc()
	return nil
}

// Stop halts the robot.
func (r *Robot) Stop(ctx context.Context, extra map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advanceLocked()
	r.cmd = base.VelocityCommand{}
	r.stops.Inc()
	return nil
}

// CurrentPosition returns the true pose of the robot.
func (r *Robot) CurrentPosition(ctx context.Context) (*referenceframe.PoseInFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advanceLocked()
	return referenceframe.NewPoseInFrame(r.cfg.Frame, spatialmath.NewPose2D(r.x, r.y, r.th)), nil
}

// Teleport moves the robot to a pose without collision checks.
func (r *Robot) Teleport(x, y, yaw float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advanceLocked()
	r.x, r.y, r.th = x, y, utils.WrapAngle(yaw)
}

// Command returns the velocity the robot is currently executing.
func (r *Robot) Command() base.VelocityCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cmd
}

// Stats is a snapshot of robot counters.
type Stats struct {
	Commands   int64
	Stops      int64
	Scans      int64
	Collisions int64
}

// Stats returns the counters.
func (r *Robot) Stats() Stats {
	return Stats{
		Commands:   r.commands.Load(),
		Stops:      r.stops.Load(),
		Scans:      r.scans.Load(),
		Collisions: r.collisions.Load(),
	}
}

// Names returns the component names the robot answers to.
func (r *Robot) Names() Names {
	return r.cfg.Names
}

// Close stops the robot.
func (r *Robot) Close(ctx context.Context) error {
	return r.Stop(ctx, nil)
}
