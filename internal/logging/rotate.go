package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// rotatingFile is an io.WriteCloser that renames the active file aside
// once it would grow past maxBytes. Rotated files carry a timestamp
// suffix (nook-20060102T150405.000.log); only the newest keep of them
// survive a rotation.
type rotatingFile struct {
	path     string
	maxBytes int64
	keep     int

	mu   sync.Mutex
	f    *os.File
	size int64
}

func newRotatingFile(path string, maxBytes int64, keep int) (*rotatingFile, error) {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	if keep <= 0 {
		keep = 5
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logging: create log dir: %w", err)
	}
	r := &rotatingFile{path: path, maxBytes: maxBytes, keep: keep}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rotatingFile) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("logging: open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("logging: stat log file: %w", err)
	}
	r.f = f
	r.size = info.Size()
	return nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size+int64(len(p)) > r.maxBytes && r.size > 0 {
		if err := r.rotate(); err != nil {
			// Keep writing to the oversized file rather than drop records.
			fmt.Fprintf(os.Stderr, "logging: rotation failed: %v\n", err)
		}
	}
	n, err := r.f.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

// rotate renames the active file to a timestamped sibling, prunes stale
// rotations beyond keep, and reopens a fresh active file.
func (r *rotatingFile) rotate() error {
	if err := r.f.Close(); err != nil {
		return err
	}
	r.f = nil

	rotated := r.rotatedName(time.Now())
	if err := os.Rename(r.path, rotated); err != nil {
		return err
	}
	r.prune()
	r.size = 0
	return r.open()
}

func (r *rotatingFile) rotatedName(at time.Time) string {
	dir := filepath.Dir(r.path)
	base := strings.TrimSuffix(filepath.Base(r.path), ".log")
	name := fmt.Sprintf("%s-%s.log", base, at.Format("20060102T150405.000"))
	return filepath.Join(dir, name)
}

// prune removes the oldest rotated files beyond keep. Timestamped names
// sort chronologically, so lexicographic order is age order.
func (r *rotatingFile) prune() {
	dir := filepath.Dir(r.path)
	base := strings.TrimSuffix(filepath.Base(r.path), ".log")
	matches, err := filepath.Glob(filepath.Join(dir, base+"-*.log"))
	if err != nil || len(matches) <= r.keep {
		return
	}
	sort.Strings(matches)
	for _, stale := range matches[:len(matches)-r.keep] {
		_ = os.Remove(stale)
	}
}
