package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_FiltersBelowLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelWarn)

	logger.Info("hidden %d", 1)
	logger.Warn("shown %d", 2)
	logger.Error("shown %d", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN]")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "[ERROR]")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestLogger_ReportsCaller(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelDebug)
	logger.Debug("x")

	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestLogLevel_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestParseLevel_AcceptsConfigSpellings(t *testing.T) {
	t.Parallel()

	cases := map[string]LogLevel{
		"debug":     LevelDebug,
		"INFO":      LevelInfo,
		"warn":      LevelWarn,
		"Warning":   LevelWarn,
		"error":     LevelError,
		"FATAL":     LevelFatal,
		"\twarn\n":  LevelWarn,
		"  error  ": LevelError,
		"verbose":   LevelInfo,
		"":          LevelInfo,
	}
	for input, want := range cases {
		assert.Equal(t, want, ParseLevel(input), "ParseLevel(%q)", input)
	}
}

func TestParseLevel_FiltersLikeTheNamedLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, ParseLevel(" WARNING "))
	logger.Info("dropped")
	logger.Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}
