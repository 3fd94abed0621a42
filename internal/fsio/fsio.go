// Package fsio is the real filesystem adapter wired into the orchestrator
// and search engine's FileReader interfaces, grounded on the mtime
// convention internal/watcher already uses for its own os.Stat calls.
package fsio

import (
	"os"
)

// Local reads files directly from the OS filesystem.
type Local struct{}

// New returns a Local file reader.
func New() Local { return Local{} }

// ReadFile reads the entire file at path.
func (Local) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Stat reports whether path exists and, if so, its modification time as
// Unix seconds with nanosecond precision, matching the watcher's
// mtimeSeconds convention.
func (Local) Stat(path string) (exists bool, mtime float64, err error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return false, 0, nil
		}
		return false, 0, statErr
	}
	return true, float64(info.ModTime().UnixNano()) / 1e9, nil
}
