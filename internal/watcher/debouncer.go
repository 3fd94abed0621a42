package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid file events per path, firing onFlush once the
// path has been quiet for window. Each path gets its own timer (not one
// timer for the whole batch) so a hot file doesn't delay a quiet one, and
// vice versa. Events for the same path are coalesced according to:
//   - CREATE + MODIFY = CREATE (file is still new)
//   - CREATE + DELETE = nothing (file never really existed)
//   - MODIFY + DELETE = DELETE (file is gone)
//   - DELETE + CREATE = MODIFY (file was replaced)
type Debouncer struct {
	window  time.Duration
	onFlush func(FileEvent)

	mu      sync.Mutex
	pending map[string]*pendingEvent
	timers  map[string]*time.Timer
	stopped bool
}

type pendingEvent struct {
	event   FileEvent
	firstOp Operation
}

// NewDebouncer returns a Debouncer that calls onFlush once per path after
// window has elapsed since that path's last event.
func NewDebouncer(window time.Duration, onFlush func(FileEvent)) *Debouncer {
	return &Debouncer{
		window:  window,
		onFlush: onFlush,
		pending: make(map[string]*pendingEvent),
		timers:  make(map[string]*time.Timer),
	}
}

// Add records an event for event.Path, coalescing it with any event still
// pending for that path and (re)starting that path's debounce timer.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	path := event.Path
	if existing, ok := d.pending[path]; ok {
		coalesced := coalesce(existing.firstOp, event)
		if coalesced == nil {
			delete(d.pending, path)
			if t, ok := d.timers[path]; ok {
				t.Stop()
				delete(d.timers, path)
			}
			return
		}
		existing.event = *coalesced
	} else {
		d.pending[path] = &pendingEvent{event: event, firstOp: event.Operation}
	}

	if t, ok := d.timers[path]; ok {
		t.Stop()
	}
	d.timers[path] = time.AfterFunc(d.window, func() { d.flush(path) })
}

func (d *Debouncer) flush(path string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	pe, ok := d.pending[path]
	delete(d.pending, path)
	delete(d.timers, path)
	d.mu.Unlock()

	if ok {
		d.onFlush(pe.event)
	}
}

// coalesce merges two events for the same path. Returns nil if the events
// cancel each other out (a CREATE immediately deleted).
func coalesce(firstOp Operation, next FileEvent) *FileEvent {
	switch firstOp {
	case OpCreate:
		switch next.Operation {
		case OpModify:
			created := next
			created.Operation = OpCreate
			return &created
		case OpDelete:
			return nil
		default:
			return &next
		}
	case OpModify:
		return &next
	case OpDelete:
		if next.Operation == OpCreate {
			replaced := next
			replaced.Operation = OpModify
			return &replaced
		}
		return &next
	default:
		return &next
	}
}

// Stop stops every pending timer. Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	for _, t := range d.timers {
		t.Stop()
	}
	d.timers = nil
	d.pending = nil
}
