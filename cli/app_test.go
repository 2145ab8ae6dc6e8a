package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

const testConfig = `{
	"navigation": {"base": "base", "lidar": "lidar", "movement_sensor": "movement_sensor", "bumper": "bumper"},
	"simulation": {"start_x": -3, "world": {"circles": [{"x": 0, "y": 0, "radius": 0.5}]}}
}`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "localnav.json")
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).RunContext(context.Background(), append([]string{"localnav"}, args...))
	return out.String(), err
}

func TestSchemaCommand(t *testing.T) {
	out, err := run(t, "schema")
	test.That(t, err, test.ShouldBeNil)

	var schema struct {
		Title      string                     `json:"title"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	test.That(t, json.Unmarshal([]byte(out), &schema), test.ShouldBeNil)
	test.That(t, schema.Title, test.ShouldEqual, "localnav navigation attributes")
	for _, key := range []string{"base", "safe_distance", "road_center_gain", "escape_div_x", "max_approach_ticks"} {
		test.That(t, schema.Properties, test.ShouldContainKey, key)
	}
}

func TestValidateCommand(t *testing.T) {
	out, err := run(t, "validate", "--config", writeConfig(t, testConfig))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "is valid")
	test.That(t, out, test.ShouldContainSubstring, "depends on base")
	test.That(t, out, test.ShouldContainSubstring, "depends on bumper")
	test.That(t, out, test.ShouldNotContainSubstring, "no simulation section")

	out, err = run(t, "validate", "-c",
		writeConfig(t, `{"navigation": {"base": "b", "lidar": "l", "movement_sensor": "m"}}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "no simulation section")

	_, err = run(t, "validate", "--config",
		writeConfig(t, `{"navigation": {"lidar": "l", "movement_sensor": "m"}}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"base" is required`)

	_, err = run(t, "validate", "--config", filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "error reading config file")
}

func TestRotateNeedsOneTarget(t *testing.T) {
	path := writeConfig(t, testConfig)
	_, err := run(t, "rotate", "--config", path)
	test.That(t, err, test.ShouldBeError, "exactly one of --yaw-degs and --full is required")

	_, err = run(t, "rotate", "--config", path, "--full", "--yaw-degs", "90")
	test.That(t, err, test.ShouldBeError, "exactly one of --yaw-degs and --full is required")
}

func TestDrivingNeedsSimulation(t *testing.T) {
	path := writeConfig(t, `{"navigation": {"base": "b", "lidar": "l", "movement_sensor": "m"}}`)
	_, err := run(t, "explore", "--config", path, "--duration", "10ms")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no simulation section")
}

func TestExploreForDuration(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "localnav.log")
	_, err := run(t, "--log-file", logFile, "explore", "--config", writeConfig(t, testConfig), "--trace", "--duration", "300ms")
	test.That(t, err, test.ShouldBeNil)

	logs, err := os.ReadFile(logFile)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(logs), test.ShouldContainSubstring, "session started")
	test.That(t, string(logs), test.ShouldContainSubstring, "session finished")
}
