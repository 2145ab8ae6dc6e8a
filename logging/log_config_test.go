package logging

import (
	"testing"

	"go.viam.com/test"
)

func createTestRegistry(t *testing.T, loggerNames []string) *Registry {
	t.Helper()
	registry := NewRegistry(INFO)
	for _, name := range loggerNames {
		test.That(t, registry.Register(name, NewBlankLogger(name)), test.ShouldBeNil)
	}
	return registry
}

func TestValidatePattern(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		pattern string
		isValid bool
	}{
		{"localnav.navigation", true},
		{"localnav.navigation.*", true},
		{"localnav.*.escape", true},
		{"*.navigation", true},
		{"*", true},
		{"sim-robot.lidar_1", true},

		{"localnav..navigation", false},
		{"localnav.navigation.", false},
		{".localnav", false},
		{"localnav.**", false},
		{"_.localnav", false},
		{"localnav.-", false},
	} {
		test.That(t, validatePattern(tc.pattern), test.ShouldEqual, tc.isValid)
	}
}

func TestRegistryUpdateConfig(t *testing.T) {
	registry := createTestRegistry(t, []string{
		"localnav",
		"localnav.navigation",
		"localnav.navigation.escape",
		"localnav.sim",
	})
	errLogger := NewTestLogger(t)

	err := registry.UpdateConfig([]LoggerPatternConfig{
		{Pattern: "localnav.navigation.*", Level: "debug"},
		{Pattern: "localnav.sim", Level: "error"},
		{Pattern: "bad..pattern", Level: "debug"},
	}, errLogger)
	test.That(t, err, test.ShouldBeNil)

	expected := map[string]Level{
		"localnav":                   INFO,
		"localnav.navigation":        INFO,
		"localnav.navigation.escape": DEBUG,
		"localnav.sim":               ERROR,
	}
	for name, level := range expected {
		logger, ok := registry.LoggerNamed(name)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, logger.GetLevel(), test.ShouldEqual, level)
	}

	// Loggers registered after the config is set pick it up immediately.
	test.That(t, registry.Register("localnav.navigation.goal", NewBlankLogger("goal")), test.ShouldBeNil)
	logger, _ := registry.LoggerNamed("localnav.navigation.goal")
	test.That(t, logger.GetLevel(), test.ShouldEqual, DEBUG)

	// Clearing the config returns everything to the default level.
	test.That(t, registry.UpdateConfig(nil, errLogger), test.ShouldBeNil)
	logger, _ = registry.LoggerNamed("localnav.sim")
	test.That(t, logger.GetLevel(), test.ShouldEqual, INFO)
}

func TestRegistryBadLevel(t *testing.T) {
	registry := createTestRegistry(t, []string{"localnav"})
	err := registry.UpdateConfig([]LoggerPatternConfig{{Pattern: "*", Level: "loud"}}, NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoggerPatternConfigValidate(t *testing.T) {
	test.That(t, LoggerPatternConfig{Pattern: "localnav.*", Level: "warn"}.Validate(), test.ShouldBeNil)

	err := LoggerPatternConfig{Pattern: "localnav..sim", Level: "warn"}.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "invalid logger pattern")

	err = LoggerPatternConfig{Pattern: "localnav", Level: "loud"}.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown log level")
}
