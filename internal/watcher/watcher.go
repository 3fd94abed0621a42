package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nook-dev/nook/internal/ignore"
	"github.com/nook-dev/nook/internal/store"
)

// Priorities mirror the orchestrator's PriorityDelete/PriorityLive values.
// They're duplicated here rather than imported to keep this package's only
// dependency on the orchestrator an interface, not a package import.
const (
	priorityDelete  = 0
	priorityShotgun = 2
)

const mtimeCacheSize = 200_000

// Operation is the kind of filesystem change a FileEvent reports.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one coalesced change handed to the debouncer.
type FileEvent struct {
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Submitter is the orchestrator surface the watcher drives.
type Submitter interface {
	Submit(ctx context.Context, taskType store.TaskType, path string, priority int, mtime float64) error
}

// Store is the store surface the watcher reads for reconciliation.
type Store interface {
	ListFileStates(ctx context.Context) (map[string]float64, error)
}

// Options configures which directories are watched and what is ignored.
type Options struct {
	SyncDirectories   []string
	IgnoredFolders    []string
	SkipHiddenFolders bool
	TextExtensions    []string
	ImageExtensions   []string
	DebounceWindow    time.Duration
}

func (o Options) withDefaults() Options {
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = time.Second
	}
	return o
}

// Watcher reconciles the store against the filesystem once at startup, then
// keeps them in sync live via fsnotify.
type Watcher struct {
	submitter Submitter
	store     Store
	opts      Options
	logger    *slog.Logger

	textExt  map[string]bool
	imageExt map[string]bool
	ignored  *ignore.Matcher

	mtimes *lru.Cache[string, float64]
	fsw    *fsnotify.Watcher
	deb    *Debouncer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Watcher. It does not start watching until Start is called.
func New(submitter Submitter, st Store, opts Options, logger *slog.Logger) (*Watcher, error) {
	opts = opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := lru.New[string, float64](mtimeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("watcher: create mtime cache: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		submitter: submitter,
		store:     st,
		opts:      opts,
		logger:    logger,
		textExt:   extSet(opts.TextExtensions),
		imageExt:  extSet(opts.ImageExtensions),
		ignored:   ignore.NewMatcher(opts.IgnoredFolders...),
		mtimes:    cache,
		fsw:       fsw,
	}
	w.deb = NewDebouncer(opts.DebounceWindow, w.handleDebounced)
	return w, nil
}

func extSet(exts []string) map[string]bool {
	out := make(map[string]bool, len(exts))
	for _, e := range exts {
		out[strings.ToLower(e)] = true
	}
	return out
}

// Start runs the blocking initial reconciliation, begins watching every
// configured root, and launches the live event loop.
func (w *Watcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.ctx = ctx
	w.cancel = cancel

	if err := w.reconcile(ctx); err != nil {
		cancel()
		return err
	}
	for _, root := range w.opts.SyncDirectories {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		if err := w.addRecursive(root); err != nil {
			w.logger.Warn("watcher: add recursive failed", slog.String("root", root), slog.String("error", err.Error()))
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
	return nil
}

// Stop cancels the live event loop and releases the fsnotify handle. Safe
// to call once.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.deb.Stop()
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

// reconcile implements the blocking initial scan: every surviving file not
// in the store's recorded state, or whose mtime has drifted by more than a
// second, gets the shotgun task set; every stored path no longer on disk
// gets DELETE.
func (w *Watcher) reconcile(ctx context.Context) error {
	state, err := w.store.ListFileStates(ctx)
	if err != nil {
		return fmt.Errorf("watcher: list file states: %w", err)
	}

	seen := make(map[string]bool, len(state))
	for _, root := range w.opts.SyncDirectories {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path != root && w.shouldSkipDir(path) {
					return fs.SkipDir
				}
				return nil
			}
			if w.shouldSkipFile(path) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			mtime := mtimeSeconds(info)
			seen[path] = true
			w.mtimes.Add(path, mtime)

			prev, existed := state[path]
			if !existed || math.Abs(mtime-prev) > 1.0 {
				w.submitShotgun(ctx, path, mtime, priorityShotgun)
			}
			return nil
		})
		if err != nil {
			w.logger.Warn("watcher: walk failed", slog.String("root", root), slog.String("error", err.Error()))
		}
	}

	for path := range state {
		if !seen[path] {
			if err := w.submitter.Submit(ctx, store.TaskDelete, path, priorityDelete, 0); err != nil {
				w.logger.Error("watcher: submit delete failed", slog.String("path", path), slog.String("error", err.Error()))
			}
		}
	}
	return nil
}

func mtimeSeconds(info fs.FileInfo) float64 {
	return float64(info.ModTime().UnixNano()) / 1e9
}

func (w *Watcher) shouldSkipDir(path string) bool {
	name := filepath.Base(path)
	if w.opts.SkipHiddenFolders && strings.HasPrefix(name, ".") {
		return true
	}
	return w.ignored.MatchDir(path)
}

func (w *Watcher) shouldSkipFile(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	return !w.textExt[ext] && !w.imageExt[ext]
}

// submitShotgun submits EMBED and LLM unconditionally, and OCR if the path
// is an image: a modified file invalidates every derived artifact.
func (w *Watcher) submitShotgun(ctx context.Context, path string, mtime float64, priority int) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, t := range []store.TaskType{store.TaskEmbed, store.TaskLLM} {
		if err := w.submitter.Submit(ctx, t, path, priority, mtime); err != nil {
			w.logger.Error("watcher: submit failed", slog.String("path", path), slog.String("task_type", string(t)), slog.String("error", err.Error()))
		}
	}
	if w.imageExt[ext] {
		if err := w.submitter.Submit(ctx, store.TaskOCR, path, priority, mtime); err != nil {
			w.logger.Error("watcher: submit ocr failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
}

// addRecursive registers every non-ignored directory under root with
// fsnotify.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.shouldSkipDir(path) {
			return fs.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("watcher: add watch failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil
	})
}

// walkAndShotgun submits the shotgun set for every surviving file under a
// newly created directory.
func (w *Watcher) walkAndShotgun(ctx context.Context, root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && w.shouldSkipDir(path) {
				return fs.SkipDir
			}
			return nil
		}
		if w.shouldSkipFile(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		mtime := mtimeSeconds(info)
		w.mtimes.Add(path, mtime)
		w.submitShotgun(ctx, path, mtime, priorityShotgun)
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFSEvent(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher: fsnotify error", slog.String("error", err.Error()))
		}
	}
}

// handleFSEvent dispatches one raw fsnotify event. DELETE and RENAME (a move
// away from this path) are never debounced; CREATE/WRITE go through the
// per-path debouncer.
func (w *Watcher) handleFSEvent(ctx context.Context, ev fsnotify.Event) {
	switch {
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.handleDelete(ctx, ev.Name)
	case ev.Op&fsnotify.Create != 0:
		info, err := os.Stat(ev.Name)
		if err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				w.logger.Warn("watcher: add recursive on create failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
			}
			w.walkAndShotgun(ctx, ev.Name)
			return
		}
		w.deb.Add(FileEvent{Path: ev.Name, Operation: OpCreate, Timestamp: time.Now()})
	case ev.Op&fsnotify.Write != 0:
		w.deb.Add(FileEvent{Path: ev.Name, Operation: OpModify, Timestamp: time.Now()})
	}
}

// handleDelete submits DELETE for path, and for every stored path nested
// under it if it turns out to have named a directory.
func (w *Watcher) handleDelete(ctx context.Context, path string) {
	if err := w.submitter.Submit(ctx, store.TaskDelete, path, priorityDelete, 0); err != nil {
		w.logger.Error("watcher: submit delete failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	w.mtimes.Remove(path)

	state, err := w.store.ListFileStates(ctx)
	if err != nil {
		w.logger.Error("watcher: list file states for recursive delete failed", slog.String("error", err.Error()))
		return
	}
	prefix := path + string(filepath.Separator)
	for p := range state {
		if strings.HasPrefix(p, prefix) {
			if err := w.submitter.Submit(ctx, store.TaskDelete, p, priorityDelete, 0); err != nil {
				w.logger.Error("watcher: submit nested delete failed", slog.String("path", p), slog.String("error", err.Error()))
			}
		}
	}
}

// handleDebounced is called once per path after its debounce window
// elapses. Only CREATE/MODIFY events ever reach here; DELETE bypasses the
// debouncer entirely.
func (w *Watcher) handleDebounced(event FileEvent) {
	ctx := w.ctx
	info, err := os.Stat(event.Path)
	if err != nil {
		return // vanished before the debounce window elapsed
	}
	if info.IsDir() {
		if err := w.addRecursive(event.Path); err != nil {
			w.logger.Warn("watcher: add recursive on debounced create failed", slog.String("path", event.Path), slog.String("error", err.Error()))
		}
		w.walkAndShotgun(ctx, event.Path)
		return
	}
	if w.shouldSkipFile(event.Path) {
		return
	}

	mtime := mtimeSeconds(info)
	if prev, ok := w.mtimes.Get(event.Path); ok && math.Abs(mtime-prev) < 0.1 {
		return // spurious read-back mtime bump
	}
	w.mtimes.Add(event.Path, mtime)
	w.submitShotgun(ctx, event.Path, mtime, priorityShotgun)
}
