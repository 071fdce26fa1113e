package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiHandlerFansOutByLevel(t *testing.T) {
	var console, file bytes.Buffer
	h := multiHandler{
		slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}
	logger := slog.New(h)

	logger.Debug("only in file")
	logger.Info("everywhere")

	assert.NotContains(t, console.String(), "only in file")
	assert.Contains(t, console.String(), "everywhere")
	assert.Contains(t, file.String(), "only in file")
	assert.Contains(t, file.String(), "everywhere")
}

func TestMultiHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := multiHandler{
		slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}
	logger := slog.New(h).With("run_id", "abc123")

	logger.Info("hello")
	assert.Contains(t, buf.String(), "run_id=abc123")
}

func TestNewLoggerWritesDebugToFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "import.log")

	logger, closeLog, err := newLogger(logFile)
	require.NoError(t, err)

	logger.Debug("debug detail")
	logger.Info("progress")
	closeLog()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "debug detail")
	assert.Contains(t, string(data), "progress")
}

func TestNewLoggerNoFile(t *testing.T) {
	logger, closeLog, err := newLogger("")
	require.NoError(t, err)
	defer closeLog()
	assert.NotNil(t, logger)
}

func TestColorize(t *testing.T) {
	assert.Equal(t, "x", colorize("x", colorRed, false))
	colored := colorize("x", colorRed, true)
	assert.True(t, strings.HasPrefix(colored, colorRed))
	assert.True(t, strings.HasSuffix(colored, colorReset))
}
