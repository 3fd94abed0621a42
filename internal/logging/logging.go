// Package logging sets up nook's structured logger: JSON lines to a
// size-rotated file under <data-dir>/logs/, optionally mirrored to
// stderr. Every record carries a per-process run id so interleaved
// daemon restarts can be told apart in one log file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Options controls Setup.
type Options struct {
	// Dir is the directory log files are written to.
	Dir string
	// Level is the minimum level written.
	Level slog.Level
	// MaxBytes rotates the active file when it would grow past this.
	MaxBytes int64
	// Keep is how many rotated files are retained.
	Keep int
	// Mirror, when non-nil, receives a copy of every record. Must be
	// nil when an MCP stdio transport owns the process's stdout/stderr.
	Mirror io.Writer
}

// LogDir returns the log directory under a data directory.
func LogDir(dataDir string) string {
	return filepath.Join(dataDir, "logs")
}

// Default returns info-level options mirrored to stderr.
func Default(dataDir string) Options {
	return Options{
		Dir:      LogDir(dataDir),
		Level:    slog.LevelInfo,
		MaxBytes: 10 << 20,
		Keep:     5,
		Mirror:   os.Stderr,
	}
}

// Debug is Default at debug level.
func Debug(dataDir string) Options {
	o := Default(dataDir)
	o.Level = slog.LevelDebug
	return o
}

// MCP returns options safe for MCP stdio mode: file only, never stderr,
// debug level so protocol problems are diagnosable after the fact.
func MCP(dataDir string) Options {
	o := Default(dataDir)
	o.Level = slog.LevelDebug
	o.Mirror = nil
	return o
}

// Setup opens the rotating log file and returns a logger tagged with a
// fresh run id, plus a cleanup that flushes and closes the file.
func Setup(opts Options) (*slog.Logger, func(), error) {
	w, err := newRotatingFile(filepath.Join(opts.Dir, "nook.log"), opts.MaxBytes, opts.Keep)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = w
	if opts.Mirror != nil {
		out = io.MultiWriter(w, opts.Mirror)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: opts.Level})
	logger := slog.New(handler).With(slog.String("run", uuid.NewString()))

	return logger, func() { _ = w.Close() }, nil
}
