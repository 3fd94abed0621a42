package orchestrator

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nook-dev/nook/internal/models"
	"github.com/nook-dev/nook/internal/parser"
	"github.com/nook-dev/nook/internal/store"
)

const (
	watchdogInterval  = 5 * time.Second
	dispatchPollDelay = 500 * time.Millisecond
)

// Config holds the orchestrator's tunables, sourced 1:1 from config.Config.
type Config struct {
	MaxWorkers      int
	BatchSize       int
	FlushTimeout    time.Duration
	TaskTimeout     time.Duration
	LLMSystemPrompt string
	LLMTemperature  float64
}

// Store is the subset of *store.Store the orchestrator depends on.
type Store interface {
	UpsertTask(ctx context.Context, path string, taskType store.TaskType, status store.Status, mtime float64) error
	MarkCompleted(ctx context.Context, path string, taskType store.TaskType) error
	MarkFailed(ctx context.Context, path string, taskType store.TaskType) error
	RemovePathsBulk(ctx context.Context, paths []string) error
	ListPending(ctx context.Context) ([]store.TaskKey, error)
	SaveOCR(ctx context.Context, path, text, model string) error
	SaveLLM(ctx context.Context, path, text, model string) error
	GetLLM(ctx context.Context, path string) (string, bool, error)
	SaveEmbeddings(ctx context.Context, rows []store.EmbeddingRow) error
}

// FileReader abstracts reading a file's raw bytes, so tests can substitute
// an in-memory filesystem.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
	Stat(path string) (exists bool, mtime float64, err error)
}

// Orchestrator coordinates the priority queue, worker pool, batching
// buffers, and watchdog.
type Orchestrator struct {
	store    Store
	registry *models.Registry
	facade   *parser.Facade
	files    FileReader
	cfg      Config
	logger   *slog.Logger

	textExt  map[string]bool
	imageExt map[string]bool

	queue  *priorityQueue
	sem    *semaphore.Weighted
	active *watchdogRegistry

	buffers batchBuffers

	group  *errgroup.Group
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an Orchestrator. textExtensions/imageExtensions classify EMBED
// targets by extension (config.Config's TextExtensions/ImageExtensions).
func New(st Store, registry *models.Registry, facade *parser.Facade, files FileReader, cfg Config, textExtensions, imageExtensions []string, logger *slog.Logger) *Orchestrator {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 16
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 5 * time.Second
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 300 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		store:    st,
		registry: registry,
		facade:   facade,
		files:    files,
		cfg:      cfg,
		logger:   logger,
		textExt:  extSet(textExtensions),
		imageExt: extSet(imageExtensions),
		queue:    newPriorityQueue(),
		sem:      semaphore.NewWeighted(int64(cfg.MaxWorkers)),
		active:   newWatchdogRegistry(),
	}
	o.buffers = newBatchBuffers(o)
	return o
}

func extSet(exts []string) map[string]bool {
	out := make(map[string]bool, len(exts))
	for _, e := range exts {
		out[strings.ToLower(e)] = true
	}
	return out
}

func (o *Orchestrator) isImagePath(path string) bool {
	return o.imageExt[strings.ToLower(filepath.Ext(path))]
}

func (o *Orchestrator) isTextPath(path string) bool {
	return o.textExt[strings.ToLower(filepath.Ext(path))]
}

// Start launches the dispatcher and watchdog goroutines under one
// cancellable context, coordinated with errgroup. Stale batches are flushed
// from within the dispatcher loop.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	group, gctx := errgroup.WithContext(ctx)
	o.group = group

	group.Go(func() error {
		o.runDispatcher(gctx)
		return nil
	})
	group.Go(func() error {
		o.runWatchdog(gctx)
		return nil
	})
}

// Shutdown cancels the dispatcher/watchdog goroutines and waits for them to
// return. In-flight worker goroutines spawned under the semaphore may still
// be running; their results persist only if already written to the store,
// persisted results survive; anything not yet written to the store is lost.
func (o *Orchestrator) Shutdown(_ context.Context) error {
	if o.cancel != nil {
		o.cancel()
	}
	if o.group != nil {
		return o.group.Wait()
	}
	return nil
}

// Submit upserts the task as PENDING with the supplied mtime, then enqueues
// it in memory only if the backend it requires is currently loaded. If the
// backend is unavailable the task remains PENDING in the store and is
// re-enqueued later by ResumePending.
func (o *Orchestrator) Submit(ctx context.Context, taskType store.TaskType, path string, priority int, mtime float64) error {
	if err := o.store.UpsertTask(ctx, path, taskType, store.StatusPending, mtime); err != nil {
		return err
	}
	if !o.backendReady(taskType, path) {
		return nil
	}
	o.queue.push(Job{Priority: priority, TaskType: taskType, Path: path, Mtime: mtime})
	return nil
}

// backendReady reports whether the backend a task type needs is loaded.
func (o *Orchestrator) backendReady(taskType store.TaskType, path string) bool {
	switch taskType {
	case store.TaskDelete:
		return true
	case store.TaskOCR:
		return o.loaded("ocr")
	case store.TaskLLM:
		return o.loaded("llm")
	case store.TaskEmbedLLM:
		return o.loaded("text")
	case store.TaskEmbed:
		if o.isImagePath(path) {
			return o.loaded("image")
		}
		return o.loaded("text")
	default:
		return false
	}
}

func (o *Orchestrator) loaded(name string) bool {
	b, ok := o.registry.Get(name)
	return ok && b.Loaded()
}

// ResumePending scans the store's PENDING tasks and re-enqueues every one
// matching taskType at PriorityLive. Called when a backend transitions
// from unloaded to loaded.
func (o *Orchestrator) ResumePending(ctx context.Context, taskType store.TaskType) error {
	pending, err := o.store.ListPending(ctx)
	if err != nil {
		return err
	}
	for _, k := range pending {
		if k.TaskType != taskType {
			continue
		}
		o.queue.push(Job{Priority: PriorityLive, TaskType: k.TaskType, Path: k.Path})
	}
	return nil
}

// QueueDepth reports the number of jobs waiting in memory, for status
// reporting.
func (o *Orchestrator) QueueDepth() int { return o.queue.len() }

// runDispatcher is the single dispatcher thread.
func (o *Orchestrator) runDispatcher(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := o.sem.Acquire(ctx, 1); err != nil {
			return
		}

		o.buffers.flushStale(ctx, o.cfg.FlushTimeout)

		job, ok := o.queue.popWait(dispatchPollDelay)
		if !ok {
			o.sem.Release(1)
			continue
		}
		o.route(ctx, job)
	}
}

// route dispatches one popped Job.
func (o *Orchestrator) route(ctx context.Context, job Job) {
	switch job.TaskType {
	case store.TaskEmbed:
		o.sem.Release(1)
		if !o.isTextPath(job.Path) && !o.isImagePath(job.Path) {
			if err := o.store.MarkFailed(ctx, job.Path, store.TaskEmbed); err != nil {
				o.logger.Error("mark_failed for unsupported extension failed", slog.String("path", job.Path), slog.String("error", err.Error()))
			}
			return
		}
		o.buffers.appendEmbed(ctx, job)
	case store.TaskDelete:
		o.sem.Release(1)
		o.buffers.appendDelete(ctx, job)
	default:
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.runSingleJob(ctx, job)
		}()
	}
}

// runSingleJob executes one non-batched job under the slot acquired by the
// dispatcher, registering it with the watchdog and releasing the slot
// exactly once on completion.
func (o *Orchestrator) runSingleJob(ctx context.Context, job Job) {
	_, finish := o.active.register([]store.TaskKey{{Path: job.Path, TaskType: job.TaskType}}, func() { o.sem.Release(1) })
	defer finish()

	switch job.TaskType {
	case store.TaskOCR:
		o.execOCR(ctx, job)
	case store.TaskLLM:
		o.execLLM(ctx, job)
	case store.TaskEmbedLLM:
		o.execEmbedLLM(ctx, job)
	}
}
