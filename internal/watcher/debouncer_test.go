package watcher

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectingDebouncer(window time.Duration) (*Debouncer, func() []FileEvent) {
	var mu sync.Mutex
	var out []FileEvent
	d := NewDebouncer(window, func(e FileEvent) {
		mu.Lock()
		defer mu.Unlock()
		out = append(out, e)
	})
	snapshot := func() []FileEvent {
		mu.Lock()
		defer mu.Unlock()
		cp := make([]FileEvent, len(out))
		copy(cp, out)
		return cp
	}
	return d, snapshot
}

func TestDebouncerSingleEventPassesThrough(t *testing.T) {
	d, flushed := collectingDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "test.go", Operation: OpCreate, Timestamp: time.Now()})

	require.Eventually(t, func() bool { return len(flushed()) == 1 }, 200*time.Millisecond, 5*time.Millisecond)
	events := flushed()
	assert.Equal(t, "test.go", events[0].Path)
	assert.Equal(t, OpCreate, events[0].Operation)
}

func TestDebouncerRapidModifiesCoalesceToOne(t *testing.T) {
	d, flushed := collectingDebouncer(60 * time.Millisecond)
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Add(FileEvent{Path: "test.go", Operation: OpModify, Timestamp: time.Now()})
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return len(flushed()) == 1 }, 300*time.Millisecond, 5*time.Millisecond)
}

func TestDebouncerCreateThenDeleteEmitsNothing(t *testing.T) {
	d, flushed := collectingDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "temp.go", Operation: OpCreate, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "temp.go", Operation: OpDelete, Timestamp: time.Now()})

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, flushed())
}

func TestDebouncerModifyThenDeleteEmitsDeleteOnly(t *testing.T) {
	d, flushed := collectingDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "existing.go", Operation: OpModify, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "existing.go", Operation: OpDelete, Timestamp: time.Now()})

	require.Eventually(t, func() bool { return len(flushed()) == 1 }, 200*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, OpDelete, flushed()[0].Operation)
}

func TestDebouncerDeleteThenCreateEmitsModify(t *testing.T) {
	d, flushed := collectingDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "replaced.go", Operation: OpDelete, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "replaced.go", Operation: OpCreate, Timestamp: time.Now()})

	require.Eventually(t, func() bool { return len(flushed()) == 1 }, 200*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, OpModify, flushed()[0].Operation)
}

func TestDebouncerCreateThenModifyEmitsCreateOnly(t *testing.T) {
	d, flushed := collectingDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "new.go", Operation: OpCreate, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "new.go", Operation: OpModify, Timestamp: time.Now()})

	require.Eventually(t, func() bool { return len(flushed()) == 1 }, 200*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, OpCreate, flushed()[0].Operation)
}

func TestDebouncerDifferentPathsFlushIndependently(t *testing.T) {
	d, flushed := collectingDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "a.go", Operation: OpCreate, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "b.go", Operation: OpModify, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "c.go", Operation: OpDelete, Timestamp: time.Now()})

	require.Eventually(t, func() bool { return len(flushed()) == 3 }, 200*time.Millisecond, 5*time.Millisecond)

	byPath := make(map[string]Operation)
	for _, e := range flushed() {
		byPath[e.Path] = e.Operation
	}
	assert.Equal(t, OpCreate, byPath["a.go"])
	assert.Equal(t, OpModify, byPath["b.go"])
	assert.Equal(t, OpDelete, byPath["c.go"])
}

func TestDebouncerStopSuppressesLateFlush(t *testing.T) {
	d, flushed := collectingDebouncer(30 * time.Millisecond)
	d.Add(FileEvent{Path: "late.go", Operation: OpCreate, Timestamp: time.Now()})
	d.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, flushed())
}
