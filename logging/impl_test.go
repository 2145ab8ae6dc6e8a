package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.viam.com/test"
)

type BasicStruct struct {
	X int
	y string
}

// assertLogMatches fuzzy matches a log line. It checks the shape of the timestamp but not its value
// and the caller's filename but not its line number.
func assertLogMatches(t *testing.T, actual *bytes.Buffer, expected string) {
	t.Helper()

	output, err := actual.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)

	actualParts := strings.Split(strings.TrimSuffix(output, "\n"), "\t")
	expectedParts := strings.Split(expected, "\t")
	test.That(t, len(actualParts), test.ShouldEqual, len(expectedParts))
	test.That(t, len(actualParts[0]), test.ShouldEqual, len(expectedParts[0]))
	// Level and logger name.
	test.That(t, actualParts[1], test.ShouldEqual, expectedParts[1])
	test.That(t, actualParts[2], test.ShouldEqual, expectedParts[2])

	actualFilename, _, found := strings.Cut(actualParts[3], ":")
	test.That(t, found, test.ShouldBeTrue)
	expectedFilename, _, _ := strings.Cut(expectedParts[3], ":")
	test.That(t, actualFilename, test.ShouldEqual, expectedFilename)

	test.That(t, actualParts[4], test.ShouldEqual, expectedParts[4])
	if len(actualParts) == 5 {
		return
	}

	expectedMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(expectedParts[5]), &expectedMap), test.ShouldBeNil)
	actualMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(actualParts[5]), &actualMap), test.ShouldBeNil)
	test.That(t, actualMap, test.ShouldResemble, expectedMap)
}

func TestConsoleOutputFormat(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := &impl{"impl", NewAtomicLevelAt(DEBUG), true, []Appender{NewWriterAppender(notStdout)}}

	logger.Info("impl Info log")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	INFO	impl	logging/impl_test.go:60	impl Info log`)

	logger.Infof("impl %s log", "infof")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	INFO	impl	logging/impl_test.go:64	impl infof log`)

	logger.Warnw("impl logw", "key", "value", "BasicStruct", BasicStruct{1, "alice"})
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	WARN	impl	logging/impl_test.go:68	impl logw	{"key":"value","BasicStruct":{"X":1}}`)

	logger.Debugw("unpaired", "lonely")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	DEBUG	impl	logging/impl_test.go:72	unpaired	{"lonely":"unpaired log key"}`)
}

func TestLevels(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := &impl{"levels", NewAtomicLevelAt(WARN), true, []Appender{NewWriterAppender(notStdout)}}

	logger.Info("dropped")
	logger.Debugf("dropped %d", 1)
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)

	logger.Error("kept")
	test.That(t, notStdout.String(), test.ShouldContainSubstring, "kept")
	notStdout.Reset()

	// A debug context forces C-prefixed calls through.
	logger.CDebugf(EnableDebugMode(context.Background(), ""), "forced %s", "through")
	test.That(t, notStdout.String(), test.ShouldContainSubstring, "forced through")
	notStdout.Reset()
	logger.CDebug(context.Background(), "dropped")
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)

	logger.SetLevel(DEBUG)
	test.That(t, logger.GetLevel(), test.ShouldEqual, DEBUG)
	logger.Debug("now kept")
	test.That(t, notStdout.String(), test.ShouldContainSubstring, "now kept")
}

func TestSublogger(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := &impl{"localnav", NewAtomicLevelAt(INFO), true, []Appender{NewWriterAppender(notStdout)}}

	sub := logger.Sublogger("navigation")
	sub.Infow("tick", "bearing", 0.5)
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	INFO	localnav.navigation	logging/impl_test.go:106	tick	{"bearing":0.5}`)

	// Levels are independent after creation.
	sub.SetLevel(ERROR)
	test.That(t, logger.GetLevel(), test.ShouldEqual, INFO)
}

func TestObservedTestLogger(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.Warnw("tick skipped", "reason", "timeout")
	logger.Info("other")

	entries := observed.FilterMessage("tick skipped").All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].ContextMap()["reason"], test.ShouldEqual, "timeout")
	test.That(t, observed.Len(), test.ShouldEqual, 2)
}

func TestLevelFromStringAndJSON(t *testing.T) {
	for _, tc := range []struct {
		in    string
		level Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"Warn", WARN},
		{"warning", WARN},
		{"error", ERROR},
	} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.level)
	}

	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)

	var level Level
	test.That(t, json.Unmarshal([]byte(`"error"`), &level), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, ERROR)
	out, err := json.Marshal(WARN)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `"Warn"`)
}

func TestContextMethodsReportCaller(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := newImpl("ctx", INFO, true, NewWriterAppender(notStdout))

	logger.CWarnw(context.Background(), "tick skipped", "reason", "timeout")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	WARN	ctx	logging/impl_test.go:0	tick skipped	{"reason":"timeout"}`)

	logger.CDebugf(EnableDebugMode(context.Background(), ""), "gap at %d", 12)
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	DEBUG	ctx	logging/impl_test.go:0	gap at 12`)
}

func TestZapLoggerConfig(t *testing.T) {
	cfg := NewZapLoggerConfig()
	test.That(t, cfg.DisableStacktrace, test.ShouldBeTrue)
	test.That(t, cfg.OutputPaths, test.ShouldResemble, []string{"stdout"})
	test.That(t, cfg.EncoderConfig.MessageKey, test.ShouldEqual, "msg")
	test.That(t, cfg.EncoderConfig.NameKey, test.ShouldEqual, "logger")

	logger := NewBlankLogger("zap")
	test.That(t, logger.AsZap(), test.ShouldNotBeNil)
}
