package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesJSONWithRunID(t *testing.T) {
	dataDir := t.TempDir()
	opts := Default(dataDir)
	opts.Mirror = nil

	logger, cleanup, err := Setup(opts)
	require.NoError(t, err)

	logger.Info("hello", slog.String("component", "test"))
	cleanup()

	data, err := os.ReadFile(filepath.Join(LogDir(dataDir), "nook.log"))
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, jsoniter.Unmarshal(bytes.TrimSpace(data), &record))
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "test", record["component"])
	assert.NotEmpty(t, record["run"], "every record carries the process run id")
}

func TestSetupMirrors(t *testing.T) {
	dataDir := t.TempDir()
	var mirror bytes.Buffer
	opts := Default(dataDir)
	opts.Mirror = &mirror

	logger, cleanup, err := Setup(opts)
	require.NoError(t, err)
	logger.Warn("watch out")
	cleanup()

	assert.Contains(t, mirror.String(), "watch out")
}

func TestDebugAndMCPOptions(t *testing.T) {
	d := Debug("/tmp/x")
	assert.Equal(t, slog.LevelDebug, d.Level)
	assert.NotNil(t, d.Mirror)

	m := MCP("/tmp/x")
	assert.Equal(t, slog.LevelDebug, m.Level)
	assert.Nil(t, m.Mirror, "MCP mode must never write to stderr")
}

func TestLevelFiltering(t *testing.T) {
	dataDir := t.TempDir()
	opts := Default(dataDir)
	opts.Mirror = nil
	opts.Level = slog.LevelWarn

	logger, cleanup, err := Setup(opts)
	require.NoError(t, err)
	logger.Info("dropped")
	logger.Error("kept")
	cleanup()

	data, err := os.ReadFile(filepath.Join(LogDir(dataDir), "nook.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestRotationAndPrune(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nook.log")

	w, err := newRotatingFile(path, 64, 2)
	require.NoError(t, err)

	line := strings.Repeat("x", 40) + "\n"
	for i := 0; i < 10; i++ {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
		// Rotated names are timestamped to the millisecond; spacing the
		// writes out keeps them distinct.
		time.Sleep(2 * time.Millisecond)
	}
	require.NoError(t, w.Close())

	rotated, err := filepath.Glob(filepath.Join(dir, "nook-*.log"))
	require.NoError(t, err)
	assert.NotEmpty(t, rotated, "rotation should have occurred")
	assert.LessOrEqual(t, len(rotated), 2, "prune keeps at most 2 rotations")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(64+len(line)))
}

func TestCloseIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := newRotatingFile(filepath.Join(dir, "nook.log"), 1024, 1)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
