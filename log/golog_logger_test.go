package log

import (
	"bytes"
	"testing"

	"github.com/kataras/golog"
	"github.com/stretchr/testify/assert"
)

func TestNewGologLogger(t *testing.T) {
	logger := NewGologLogger(golog.New())

	assert.NotNil(t, logger)
	assert.Equal(t, LogLevelInfo, logger.GetLevel())
}

func TestNewGologLogger_NilFallsBack(t *testing.T) {
	logger := NewGologLogger(nil)
	assert.NotNil(t, logger.logger)
}

func TestGologLogger_LevelControl(t *testing.T) {
	logger := NewGologLogger(golog.New())

	logger.SetLevel(LogLevelDebug)
	assert.Equal(t, LogLevelDebug, logger.GetLevel())

	logger.SetLevel(LogLevelError)
	assert.Equal(t, LogLevelError, logger.GetLevel())

	logger.SetLevel(LogLevelNone)
	assert.Equal(t, LogLevelNone, logger.GetLevel())
}

func TestGologLogger_FormatsMessages(t *testing.T) {
	var buf bytes.Buffer
	logger := NewGologLoggerTo(&buf, "[test] ", LogLevelDebug)

	logger.Info("connected to %s on port %d", "db", 5432)
	logger.Error("query failed: %v", "boom")

	out := buf.String()
	assert.Contains(t, out, "connected to db on port 5432")
	assert.Contains(t, out, "query failed: boom")
	assert.Contains(t, out, "[test] ")
}

func TestGologLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewGologLoggerTo(&buf, "", LogLevelError)

	logger.Debug("filtered debug")
	logger.Info("filtered info")
	logger.Warn("filtered warn")
	logger.Error("kept error")

	out := buf.String()
	assert.NotContains(t, out, "filtered")
	assert.Contains(t, out, "kept error")
}
