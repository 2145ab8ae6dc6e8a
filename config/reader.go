package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"

	"go.viam.com/localnav/logging"
	"go.viam.com/localnav/referenceframe"
	"go.viam.com/localnav/robots/sim"
	"go.viam.com/localnav/services/motion/builtin"
)

// fileConfig mirrors Config on disk. Sections with defaults are decoded over them.
type fileConfig struct {
	Navigation map[string]interface{}      `json:"navigation"`
	Simulation json.RawMessage             `json:"simulation,omitempty"`
	Executor   json.RawMessage             `json:"executor,omitempty"`
	Frames     []referenceframe.LinkConfig `json:"frames,omitempty"`
	Log        LogConfig                   `json:"log"`
}

// Read reads a config from the given file. ${VAR} references are expanded from the environment
// before parsing.
func Read(ctx context.Context, filePath string, logger logging.Logger) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading config file %q", filePath)
	}
	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies where, if applicable, the file
// the reader originated from. The config is validated before it is returned.
func FromReader(ctx context.Context, originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	var fc fileConfig
	if err := decodeStrict(r, &fc); err != nil {
		return nil, errors.Wrap(err, "cannot parse config")
	}

	cfg := &Config{
		Navigation:     fc.Navigation,
		Frames:         fc.Frames,
		Log:            fc.Log,
		ConfigFilePath: originalPath,
	}
	if len(fc.Simulation) > 0 {
		simCfg := sim.DefaultConfig()
		if err := decodeStrict(bytes.NewReader(fc.Simulation), &simCfg); err != nil {
			return nil, errors.Wrap(err, "cannot parse simulation config")
		}
		cfg.Simulation = &simCfg
	}
	if len(fc.Executor) > 0 {
		execCfg := builtin.DefaultConfig()
		if err := decodeStrict(bytes.NewReader(fc.Executor), &execCfg); err != nil {
			return nil, errors.Wrap(err, "cannot parse executor config")
		}
		cfg.Executor = &execCfg
	}

	if err := cfg.Ensure(); err != nil {
		return nil, err
	}
	logger.CDebugw(ctx, "read config", "path", originalPath,
		"simulated", cfg.Simulation != nil, "frames", len(cfg.Frames))
	return cfg, nil
}

func decodeStrict(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
