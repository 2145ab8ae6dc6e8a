// Package config reads the process configuration file and watches it for changes.
package config

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/localnav/logging"
	"go.viam.com/localnav/referenceframe"
	"go.viam.com/localnav/robots/sim"
	"go.viam.com/localnav/services/motion/builtin"
	"go.viam.com/localnav/services/navigation"
	"go.viam.com/localnav/utils"
)

// A Config describes the configuration of a localnav process.
type Config struct {
	// Navigation holds the navigation attributes. Keys left out keep their defaults.
	Navigation map[string]interface{}      `json:"navigation"`
	Simulation *sim.Config                 `json:"simulation,omitempty"`
	Executor   *builtin.Config             `json:"executor,omitempty"`
	Frames     []referenceframe.LinkConfig `json:"frames,omitempty"`
	Log        LogConfig                   `json:"log"`

	ConfigFilePath string `json:"-"`

	navigation  *navigation.Config
	frameSystem *referenceframe.StaticFrameSystem
}

// LogConfig configures log output.
type LogConfig struct {
	Level      string                        `json:"level,omitempty"`
	File       string                        `json:"file,omitempty"`
	MaxSizeMB  int                           `json:"max_size_mb,omitempty"`
	MaxBackups int                           `json:"max_backups,omitempty"`
	Patterns   []logging.LoggerPatternConfig `json:"patterns,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (lc *LogConfig) Validate(path string) error {
	if lc.Level != "" {
		if _, err := logging.LevelFromString(lc.Level); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	if lc.MaxSizeMB < 0 || lc.MaxBackups < 0 {
		return utils.NewConfigValidationError(path, errors.New("max_size_mb and max_backups can't be negative"))
	}
	for i, p := range lc.Patterns {
		if err := p.Validate(); err != nil {
			return utils.NewConfigValidationError(fmt.Sprintf("%s.patterns.%d", path, i), err)
		}
	}
	return nil
}

// Ensure decodes the navigation attributes and validates every section. Every invalid section is
// reported.
func (c *Config) Ensure() error {
	var errs error

	navCfg, err := navigation.ConfigFromAttributes(c.Navigation)
	if err != nil {
		errs = multierr.Append(errs, utils.NewConfigValidationError("navigation", err))
	} else {
		deps, err := navCfg.Validate("navigation")
		if err != nil {
			errs = multierr.Append(errs, err)
		} else if c.Simulation != nil {
			if err := c.Simulation.Resolve(deps); err != nil {
				errs = multierr.Append(errs, utils.NewConfigValidationError("navigation", err))
			}
		}
		c.navigation = navCfg
	}

	if c.Simulation != nil {
		errs = multierr.Append(errs, c.Simulation.Validate("simulation"))
	}
	if c.Executor != nil {
		errs = multierr.Append(errs, c.Executor.Validate("executor"))
	}

	framesValid := true
	for i := range c.Frames {
		if err := c.Frames[i].Validate(fmt.Sprintf("frames.%d", i)); err != nil {
			errs = multierr.Append(errs, err)
			framesValid = false
		}
	}
	if framesValid {
		fs, err := referenceframe.NewStaticFrameSystem(c.Frames)
		if err != nil {
			errs = multierr.Append(errs, utils.NewConfigValidationError("frames", err))
		}
		c.frameSystem = fs
	}

	errs = multierr.Append(errs, c.Log.Validate("log"))
	return errs
}

// NavigationConfig returns the decoded navigation config. It is nil until Ensure succeeds.
func (c *Config) NavigationConfig() *navigation.Config {
	return c.navigation
}

// FrameSystem returns the frame system built from the configured frames. It is nil until Ensure
// succeeds.
func (c *Config) FrameSystem() *referenceframe.StaticFrameSystem {
	return c.frameSystem
}
