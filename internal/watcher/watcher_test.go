package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nook-dev/nook/internal/store"
)

type submission struct {
	path     string
	taskType store.TaskType
	priority int
	mtime    float64
}

type fakeSubmitter struct {
	mu  sync.Mutex
	all []submission
}

func (f *fakeSubmitter) Submit(_ context.Context, taskType store.TaskType, path string, priority int, mtime float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.all = append(f.all, submission{path: path, taskType: taskType, priority: priority, mtime: mtime})
	return nil
}

func (f *fakeSubmitter) snapshot() []submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]submission, len(f.all))
	copy(cp, f.all)
	return cp
}

func (f *fakeSubmitter) has(path string, taskType store.TaskType) bool {
	for _, s := range f.snapshot() {
		if s.path == path && s.taskType == taskType {
			return true
		}
	}
	return false
}

type fakeStateStore struct {
	mu    sync.Mutex
	state map[string]float64
}

func newFakeStateStore(state map[string]float64) *fakeStateStore {
	return &fakeStateStore{state: state}
}

func (f *fakeStateStore) ListFileStates(context.Context) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]float64, len(f.state))
	for k, v := range f.state {
		out[k] = v
	}
	return out, nil
}

func testOptions(dir string) Options {
	return Options{
		SyncDirectories: []string{dir},
		TextExtensions:  []string{".txt"},
		ImageExtensions: []string{".png"},
		DebounceWindow:  30 * time.Millisecond,
	}
}

func TestReconcileSubmitsShotgunForNewFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))

	sub := &fakeSubmitter{}
	w, err := New(sub, newFakeStateStore(nil), testOptions(dir), nil)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(context.Background()))

	path := filepath.Join(dir, "a.txt")
	assert.True(t, sub.has(path, store.TaskEmbed))
	assert.True(t, sub.has(path, store.TaskLLM))
	assert.False(t, sub.has(path, store.TaskOCR))
}

func TestReconcileSubmitsOCRForImages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shot.png"), []byte("fake-png"), 0o644))

	sub := &fakeSubmitter{}
	w, err := New(sub, newFakeStateStore(nil), testOptions(dir), nil)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(context.Background()))

	path := filepath.Join(dir, "shot.png")
	assert.True(t, sub.has(path, store.TaskOCR))
}

func TestReconcileSkipsUnchangedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	info, err := os.Stat(path)
	require.NoError(t, err)
	mtime := mtimeSeconds(info)

	sub := &fakeSubmitter{}
	w, err := New(sub, newFakeStateStore(map[string]float64{path: mtime}), testOptions(dir), nil)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(context.Background()))

	assert.False(t, sub.has(path, store.TaskEmbed))
}

func TestReconcileSubmitsDeleteForMissingFile(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "gone.txt")

	sub := &fakeSubmitter{}
	w, err := New(sub, newFakeStateStore(map[string]float64{missing: 1}), testOptions(dir), nil)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(context.Background()))

	assert.True(t, sub.has(missing, store.TaskDelete))
}

func TestReconcileSkipsIgnoredFolder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vendor"), 0o755))
	ignoredPath := filepath.Join(dir, "vendor", "a.txt")
	require.NoError(t, os.WriteFile(ignoredPath, []byte("hello"), 0o644))

	opts := testOptions(dir)
	opts.IgnoredFolders = []string{"vendor"}

	sub := &fakeSubmitter{}
	w, err := New(sub, newFakeStateStore(nil), opts, nil)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(context.Background()))

	assert.False(t, sub.has(ignoredPath, store.TaskEmbed))
}

func TestLiveCreateSubmitsShotgunAfterDebounce(t *testing.T) {
	dir := t.TempDir()

	sub := &fakeSubmitter{}
	w, err := New(sub, newFakeStateStore(nil), testOptions(dir), nil)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(context.Background()))

	path := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	require.Eventually(t, func() bool {
		return sub.has(path, store.TaskEmbed) && sub.has(path, store.TaskLLM)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestLiveDeleteIsSubmittedImmediately(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doomed.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	sub := &fakeSubmitter{}
	w, err := New(sub, newFakeStateStore(nil), testOptions(dir), nil)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		return sub.has(path, store.TaskDelete)
	}, 2*time.Second, 20*time.Millisecond)
}
