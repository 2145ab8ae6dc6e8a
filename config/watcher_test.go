package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/localnav/logging"
)

func writeNavigation(t *testing.T, path string, safeDistance string) {
	t.Helper()
	body := fmt.Sprintf(`{"navigation": {
		"base": "base", "lidar": "lidar", "movement_sensor": "movement_sensor",
		"safe_distance": %s
	}}`, safeDistance)
	test.That(t, os.WriteFile(path, []byte(body), 0o600), test.ShouldBeNil)
}

func TestWatcherReloads(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	path := filepath.Join(t.TempDir(), "localnav.json")
	writeNavigation(t, path, "0.75")

	w, err := NewWatcher(context.Background(), path, 20*time.Millisecond, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, w.Close(), test.ShouldBeNil)
	}()
	test.That(t, w.Current(), test.ShouldBeNil)

	received := make(chan *Config, 10)
	w.Subscribe(func(cfg *Config) { received <- cfg })

	writeNavigation(t, path, "1.25")
	select {
	case cfg := <-received:
		test.That(t, cfg.NavigationConfig().SafeDistance, test.ShouldEqual, 1.25)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a reload")
	}
	test.That(t, w.Current().NavigationConfig().SafeDistance, test.ShouldEqual, 1.25)

	// an invalid edit is logged and skipped
	reloads := w.Reloads()
	writeNavigation(t, path, `"far"`)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, logs.FilterMessageSnippet("ignoring invalid config").Len(), test.ShouldBeGreaterThan, 0)
	})
	test.That(t, w.Reloads(), test.ShouldEqual, reloads)
	test.That(t, w.Current().NavigationConfig().SafeDistance, test.ShouldEqual, 1.25)

	// the next valid edit gets through
	writeNavigation(t, path, "0.5")
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, w.Current().NavigationConfig().SafeDistance, test.ShouldEqual, 0.5)
	})
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "localnav.json")
	writeNavigation(t, path, "0.75")

	w, err := NewWatcher(context.Background(), path, 10*time.Millisecond, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o600), test.ShouldBeNil)
	time.Sleep(100 * time.Millisecond)
	test.That(t, w.Reloads(), test.ShouldEqual, 0)

	test.That(t, w.Close(), test.ShouldBeNil)
	test.That(t, w.Close(), test.ShouldBeNil)
}

func TestNewWatcherMissingDirectory(t *testing.T) {
	_, err := NewWatcher(context.Background(), filepath.Join(t.TempDir(), "nope", "localnav.json"),
		time.Millisecond, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
