// Package profiling wraps runtime/pprof for the daemon's --cpuprofile
// flag and the occasional ad hoc heap snapshot while diagnosing a
// misbehaving worker pool.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
)

// Profiler starts and stops pprof captures. At most one CPU profile can
// be active per process; Profiler enforces that.
type Profiler struct {
	mu        sync.Mutex
	cpuActive bool
}

// NewProfiler returns an idle Profiler.
func NewProfiler() *Profiler {
	return &Profiler{}
}

// StartCPU begins a CPU profile written to path and returns a stop
// function. The stop function is idempotent.
func (p *Profiler) StartCPU(path string) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cpuActive {
		return nil, fmt.Errorf("profiling: cpu profile already active")
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("profiling: create cpu profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("profiling: start cpu profile: %w", err)
	}
	p.cpuActive = true

	var once sync.Once
	stop := func() {
		once.Do(func() {
			pprof.StopCPUProfile()
			_ = f.Close()
			p.mu.Lock()
			p.cpuActive = false
			p.mu.Unlock()
		})
	}
	return stop, nil
}

// WriteHeap writes a garbage-collected heap profile to path.
func (p *Profiler) WriteHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("profiling: create heap profile: %w", err)
	}
	defer f.Close()

	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("profiling: write heap profile: %w", err)
	}
	return nil
}
