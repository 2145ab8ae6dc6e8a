package navigation

import (
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"go.viam.com/localnav/services/navigation/avoidance"
	"go.viam.com/localnav/utils"
)

// Config describes how to configure the navigation controller. Every threshold is in meters,
// radians, seconds or their rates unless its name says otherwise.
type Config struct {
	Base           string `json:"base"`
	Lidar          string `json:"lidar"`
	MovementSensor string `json:"movement_sensor"`
	Bumper         string `json:"bumper,omitempty"`

	SafeDistance    float64 `json:"safe_distance"`
	SafeSpace       float64 `json:"safe_space"`
	ScanThreshold   float64 `json:"scan_threshold"`
	ForwardAngleRad float64 `json:"forward_angle_rad"`

	ForwardVelocity       float64 `json:"forward_velocity"`
	BackVelocity          float64 `json:"back_velocity"`
	BackTimeSec           float64 `json:"back_time_sec"`
	BumperRotationTimeSec float64 `json:"bumper_rotation_time_sec"`
	RotationVelocity      float64 `json:"rotation_velocity"`

	EmergencyThreshold     float64 `json:"emergency_threshold"`
	EmergencyDiffThreshold float64 `json:"emergency_diff_threshold"`
	RoadCenterThreshold    float64 `json:"road_center_threshold"`
	RoadThreshold          float64 `json:"road_threshold"`

	CurveGain      float64 `json:"curve_gain"`
	VelocityGain   float64 `json:"velocity_gain"`
	RotationGain   float64 `json:"rotation_gain"`
	AvoidanceGain  float64 `json:"avoidance_gain"`
	VFHGain        float64 `json:"vfh_gain"`
	RoadCenterGain float64 `json:"road_center_gain"`

	WallForwardAngleRad        float64 `json:"wall_forward_angle_rad"`
	WallRateThreshold          float64 `json:"wall_rate_threshold"`
	WallDistanceUpperThreshold float64 `json:"wall_distance_upper_threshold"`
	WallDistanceLowerThreshold float64 `json:"wall_distance_lower_threshold"`

	AngleBiasDegs     float64 `json:"angle_bias_degs"`
	CostmapMargin     float64 `json:"costmap_margin"`
	EscapeMargin      float64 `json:"escape_margin"`
	EscapeDivX        int     `json:"escape_div_x"`
	EscapeDivY        int     `json:"escape_div_y"`
	LethalCost        int     `json:"lethal_cost"`
	CreepVelocity     float64 `json:"creep_velocity"`
	CreepStepSec      float64 `json:"creep_step_sec"`
	MaxCreepSteps     int     `json:"max_creep_steps"`
	MaxEscapeAttempts int     `json:"max_escape_attempts"`

	MatchRotationVelocity float64 `json:"match_rotation_velocity"`
	MatchAngleThreshold   float64 `json:"match_angle_threshold"`
	MaxRotationSec        float64 `json:"max_rotation_sec"`

	GoalPollHz            float64 `json:"goal_poll_hz"`
	GoalResetRetries      int     `json:"goal_reset_retries"`
	GoalResetBackInterval int     `json:"goal_reset_back_interval"`
	GoalTolerance         float64 `json:"goal_tolerance"`
	ProgressDiffThreshold float64 `json:"progress_diff_threshold"`
	TryCount              int     `json:"try_count"`
	MaxApproachTicks      int     `json:"max_approach_ticks"`

	SensorTimeoutSec   float64 `json:"sensor_timeout_sec"`
	ControlFrequencyHz float64 `json:"control_frequency_hz"`
	MaxManeuverSec     float64 `json:"max_maneuver_sec"`
}

// DefaultConfig returns the configuration used for any attribute left unset.
func DefaultConfig() Config {
	return Config{
		SafeDistance:    0.75,
		SafeSpace:       0.6,
		ScanThreshold:   1.5,
		ForwardAngleRad: 0.09,

		ForwardVelocity:       0.2,
		BackVelocity:          -0.2,
		BackTimeSec:           0.5,
		BumperRotationTimeSec: 1.5,
		RotationVelocity:      0.5,

		EmergencyThreshold:     0.5,
		EmergencyDiffThreshold: 0.3,
		RoadCenterThreshold:    5.0,
		RoadThreshold:          1.5,

		CurveGain:      2.0,
		VelocityGain:   1.0,
		RotationGain:   1.0,
		AvoidanceGain:  0.3,
		VFHGain:        0.5,
		RoadCenterGain: 0.8,

		WallForwardAngleRad:        0.17,
		WallRateThreshold:          0.8,
		WallDistanceUpperThreshold: 5.0,
		WallDistanceLowerThreshold: 0.5,

		AngleBiasDegs:     10,
		CostmapMargin:     0.3,
		EscapeMargin:      1.5,
		EscapeDivX:        5,
		EscapeDivY:        5,
		LethalCost:        100,
		CreepVelocity:     0.1,
		CreepStepSec:      0.5,
		MaxCreepSteps:     10,
		MaxEscapeAttempts: 3,

		MatchRotationVelocity: 0.2,
		MatchAngleThreshold:   0.1,
		MaxRotationSec:        30,

		GoalPollHz:            2,
		GoalResetRetries:      5,
		GoalResetBackInterval: 3,
		GoalTolerance:         0.5,
		ProgressDiffThreshold: 0.1,
		TryCount:              1,
		MaxApproachTicks:      600,

		SensorTimeoutSec:   1.0,
		ControlFrequencyHz: 10,
		MaxManeuverSec:     10,
	}
}

// ConfigFromAttributes decodes attrs over the defaults. Keys absent from attrs keep their default.
func ConfigFromAttributes(attrs map[string]interface{}) (*Config, error) {
	cfg := DefaultConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error creating attribute decoder")
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, errors.Wrap(err, "error decoding navigation attributes")
	}
	return &cfg, nil
}

// Validate creates the list of implicit dependencies.
func (cfg *Config) Validate(path string) ([]string, error) {
	var deps []string
	if cfg.Base == "" {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "base")
	}
	deps = append(deps, cfg.Base)
	if cfg.Lidar == "" {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "lidar")
	}
	deps = append(deps, cfg.Lidar)
	if cfg.MovementSensor == "" {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "movement_sensor")
	}
	deps = append(deps, cfg.MovementSensor)
	if cfg.Bumper != "" {
		deps = append(deps, cfg.Bumper)
	}

	positive := []struct {
		name  string
		value float64
	}{
		{"safe_distance", cfg.SafeDistance},
		{"safe_space", cfg.SafeSpace},
		{"scan_threshold", cfg.ScanThreshold},
		{"forward_angle_rad", cfg.ForwardAngleRad},
		{"rotation_velocity", cfg.RotationVelocity},
		{"rotation_gain", cfg.RotationGain},
		{"avoidance_gain", cfg.AvoidanceGain},
		{"vfh_gain", cfg.VFHGain},
		{"road_center_gain", cfg.RoadCenterGain},
		{"wall_forward_angle_rad", cfg.WallForwardAngleRad},
		{"costmap_margin", cfg.CostmapMargin},
		{"escape_margin", cfg.EscapeMargin},
		{"creep_step_sec", cfg.CreepStepSec},
		{"match_rotation_velocity", cfg.MatchRotationVelocity},
		{"match_angle_threshold", cfg.MatchAngleThreshold},
		{"max_rotation_sec", cfg.MaxRotationSec},
		{"goal_poll_hz", cfg.GoalPollHz},
		{"goal_tolerance", cfg.GoalTolerance},
		{"sensor_timeout_sec", cfg.SensorTimeoutSec},
		{"control_frequency_hz", cfg.ControlFrequencyHz},
		{"max_maneuver_sec", cfg.MaxManeuverSec},
	}
	for _, p := range positive {
		if !(p.value > 0) || !utils.IsFinite(p.value) {
			return nil, utils.NewConfigValidationError(path, errors.Errorf("%s must be a positive number, got %v", p.name, p.value))
		}
	}
	if cfg.ForwardVelocity < 0 {
		return nil, utils.NewConfigValidationError(path, errors.New("forward_velocity cannot be negative"))
	}
	if cfg.BackVelocity > 0 {
		return nil, utils.NewConfigValidationError(path, errors.New("back_velocity cannot be positive"))
	}
	if cfg.WallRateThreshold < 0 || cfg.WallRateThreshold > 1 {
		return nil, utils.NewConfigValidationError(path, errors.New("wall_rate_threshold must be between 0 and 1"))
	}
	if cfg.WallDistanceLowerThreshold >= cfg.WallDistanceUpperThreshold {
		return nil, utils.NewConfigValidationError(path,
			errors.New("wall_distance_lower_threshold must be below wall_distance_upper_threshold"))
	}
	if cfg.EscapeDivX <= 0 || cfg.EscapeDivX%2 == 0 || cfg.EscapeDivY <= 0 || cfg.EscapeDivY%2 == 0 {
		return nil, utils.NewConfigValidationError(path, errors.New("escape_div_x and escape_div_y must be odd and positive"))
	}
	if cfg.LethalCost <= 0 {
		return nil, utils.NewConfigValidationError(path, errors.New("lethal_cost must be positive"))
	}
	if cfg.MaxCreepSteps < 1 || cfg.MaxEscapeAttempts < 1 || cfg.MaxApproachTicks < 1 || cfg.TryCount < 1 {
		return nil, utils.NewConfigValidationError(path,
			errors.New("max_creep_steps, max_escape_attempts, max_approach_ticks and try_count must be at least 1"))
	}
	if cfg.GoalResetRetries < 0 || cfg.GoalResetBackInterval < 1 {
		return nil, utils.NewConfigValidationError(path,
			errors.New("goal_reset_retries cannot be negative and goal_reset_back_interval must be at least 1"))
	}
	return deps, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (cfg *Config) gapSearch() avoidance.GapSearch {
	return avoidance.GapSearch{
		SafeDistance: cfg.SafeDistance,
		SafeSpace:    cfg.SafeSpace,
		Threshold:    cfg.ScanThreshold,
		ForwardAngle: cfg.ForwardAngleRad,
	}
}

func (cfg *Config) wallParams() avoidance.WallParams {
	return avoidance.WallParams{
		ForwardAngle:  cfg.WallForwardAngleRad,
		RateThreshold: cfg.WallRateThreshold,
		Upper:         cfg.WallDistanceUpperThreshold,
		Lower:         cfg.WallDistanceLowerThreshold,
	}
}

func (cfg *Config) roadParams() avoidance.RoadParams {
	return avoidance.RoadParams{CenterThreshold: cfg.RoadCenterThreshold, Threshold: cfg.RoadThreshold}
}

func (cfg *Config) emergencyParams() avoidance.EmergencyParams {
	return avoidance.EmergencyParams{Threshold: cfg.EmergencyThreshold, DiffThreshold: cfg.EmergencyDiffThreshold}
}

func (cfg *Config) gains() avoidance.Gains {
	return avoidance.Gains{Curve: cfg.CurveGain, Rotation: cfg.RotationGain}
}
