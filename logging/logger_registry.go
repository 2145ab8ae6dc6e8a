package logging

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// Registry tracks named loggers so their levels can be driven by pattern configs.
type Registry struct {
	mu           sync.RWMutex
	loggers      map[string]Logger
	logConfig    []LoggerPatternConfig
	defaultLevel Level
}

// NewRegistry returns an empty registry. Loggers not matched by any pattern are set to defaultLevel.
func NewRegistry(defaultLevel Level) *Registry {
	return &Registry{
		loggers:      make(map[string]Logger),
		defaultLevel: defaultLevel,
	}
}

// Register adds the logger under name and applies the current pattern config to it.
func (lr *Registry) Register(name string, logger Logger) error {
	lr.mu.Lock()
	lr.loggers[name] = logger
	lr.mu.Unlock()
	return lr.updateLoggerLevelWithCfg(name)
}

// LoggerNamed returns the logger registered under name.
func (lr *Registry) LoggerNamed(name string) (logger Logger, ok bool) {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	logger, ok = lr.loggers[name]
	return
}

// Names returns the registered logger names in sorted order.
func (lr *Registry) Names() []string {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	registeredNames := make([]string, 0, len(lr.loggers))
	for name := range lr.loggers {
		registeredNames = append(registeredNames, name)
	}
	sort.Strings(registeredNames)
	return registeredNames
}

func (lr *Registry) updateLoggerLevelWithCfg(name string) error {
	lr.mu.RLock()
	defer lr.mu.RUnlock()

	logger, ok := lr.loggers[name]
	if !ok {
		return fmt.Errorf("logger named %s not recognized", name)
	}
	level := lr.defaultLevel
	for _, lpc := range lr.logConfig {
		if !validatePattern(lpc.Pattern) {
			continue
		}
		r, err := regexp.Compile(buildRegexFromPattern(lpc.Pattern))
		if err != nil {
			return err
		}
		if r.MatchString(name) {
			level, err = LevelFromString(lpc.Level)
			if err != nil {
				return err
			}
		}
	}
	logger.SetLevel(level)
	return nil
}

// UpdateConfig replaces the pattern config and re-applies levels to every registered logger. Later
// patterns win over earlier ones. Invalid patterns are reported to errorLogger and skipped.
func (lr *Registry) UpdateConfig(logConfig []LoggerPatternConfig, errorLogger Logger) error {
	for _, lpc := range logConfig {
		if !validatePattern(lpc.Pattern) {
			errorLogger.Warnw("failed to validate a pattern", "pattern", lpc.Pattern)
		}
	}

	lr.mu.Lock()
	lr.logConfig = logConfig
	lr.mu.Unlock()

	for _, name := range lr.Names() {
		if err := lr.updateLoggerLevelWithCfg(name); err != nil {
			return err
		}
	}
	return nil
}
