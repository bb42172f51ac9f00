package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"err":     slog.LevelError,
	} {
		got, err := ParseLevel(in)
		assert.NilError(t, err, in)
		assert.Equal(t, got, want, in)
	}
	_, err := ParseLevel("verbose")
	assert.ErrorContains(t, err, `unknown log level: "verbose"`)
}

func TestCLILevelOverridesConfig(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{CLILevel: "debug", ConfigLevel: "error", Output: &buf})
	assert.NilError(t, err)

	logger.Debug("Task completed")
	assert.Assert(t, strings.Contains(buf.String(), "Task completed"))
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{ConfigLevel: "warn", Format: FormatJSON, Output: &buf})
	assert.NilError(t, err)

	logger.Info("dropped")
	logger.Warn("Key Conveyor_Unknown not found in Monitoring. Skipping update.", "linker", "Conveyor")

	var entry map[string]interface{}
	assert.NilError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, entry["linker"], "Conveyor")
	assert.Equal(t, entry["level"], "WARN")
}

func TestInvalidLevel(t *testing.T) {
	_, err := New(Options{ConfigLevel: "loud"})
	assert.ErrorContains(t, err, "invalid log level")
	f, err := ParseFormat("yaml")
	assert.ErrorContains(t, err, "unknown log format")
	assert.Equal(t, f, FormatText)
}
