package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nook-dev/nook/internal/store"
)

// activeEntry tracks one in-flight unit of dispatched work, whether a
// single job or a flushed batch. The watchdog and the worker that owns
// the entry race to remove it from activeJobs; only the first succeeds,
// which is what guarantees the semaphore slot is released exactly once.
type activeEntry struct {
	started time.Time
	paths   []store.TaskKey
	release func()
}

// watchdogRegistry is the orchestrator's `active_jobs` map.
type watchdogRegistry struct {
	mu      sync.Mutex
	entries map[uint64]*activeEntry
	nextID  uint64
}

func newWatchdogRegistry() *watchdogRegistry {
	return &watchdogRegistry{entries: make(map[uint64]*activeEntry)}
}

// register records a new in-flight job and returns its id plus a finish
// function. finish must be called by the worker when it completes, whether
// successfully or with an error; it is a no-op if the watchdog already
// reaped the entry.
func (r *watchdogRegistry) register(paths []store.TaskKey, release func()) (id uint64, finish func()) {
	r.mu.Lock()
	r.nextID++
	id = r.nextID
	r.entries[id] = &activeEntry{started: time.Now(), paths: paths, release: release}
	r.mu.Unlock()

	finish = func() {
		r.mu.Lock()
		_, ok := r.entries[id]
		if ok {
			delete(r.entries, id)
		}
		r.mu.Unlock()
		if ok {
			release()
		}
	}
	return id, finish
}

// sweep fails and releases every entry whose age exceeds timeout, returning
// the task keys that were marked FAILED so the caller can persist that.
func (r *watchdogRegistry) sweep(timeout time.Duration) []store.TaskKey {
	now := time.Now()
	var stuck []*activeEntry

	r.mu.Lock()
	for id, e := range r.entries {
		if now.Sub(e.started) > timeout {
			stuck = append(stuck, e)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	var failed []store.TaskKey
	for _, e := range stuck {
		e.release()
		failed = append(failed, e.paths...)
	}
	return failed
}

// runWatchdog sweeps every watchdogInterval until ctx is cancelled, marking
// timed-out task rows FAILED in the store.
func (o *Orchestrator) runWatchdog(ctx context.Context) {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stuck := o.active.sweep(o.cfg.TaskTimeout)
			for _, k := range stuck {
				if err := o.store.MarkFailed(ctx, k.Path, k.TaskType); err != nil {
					o.logger.Error("watchdog: mark_failed after timeout failed",
						slog.String("path", k.Path), slog.String("task_type", string(k.TaskType)), slog.String("error", err.Error()))
					continue
				}
				o.logger.Warn("watchdog: task timed out",
					slog.String("path", k.Path), slog.String("task_type", string(k.TaskType)))
			}
		}
	}
}
