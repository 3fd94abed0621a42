// Package app is the composition root: it wires the store, model
// registry, parser facade, orchestrator, watcher, search engine, and MCP
// server into one running instance.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nook-dev/nook/internal/capture"
	"github.com/nook-dev/nook/internal/config"
	"github.com/nook-dev/nook/internal/fsio"
	"github.com/nook-dev/nook/internal/mcpserver"
	"github.com/nook-dev/nook/internal/models"
	"github.com/nook-dev/nook/internal/orchestrator"
	"github.com/nook-dev/nook/internal/parser"
	"github.com/nook-dev/nook/internal/search"
	"github.com/nook-dev/nook/internal/store"
	"github.com/nook-dev/nook/internal/watcher"
)

// DefaultDataDir returns ~/.nook, falling back to a temp directory if the
// home directory cannot be resolved.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".nook")
	}
	return filepath.Join(home, ".nook")
}

// App holds every long-lived component of a running instance.
type App struct {
	Config   config.Config
	Store    *store.Store
	Registry *models.Registry
	Search   *search.Engine

	orchestrator *orchestrator.Orchestrator
	watcher      *watcher.Watcher
	logger       *slog.Logger
}

// Open loads config.json (creating it with defaults on first run), opens
// the store, registers the static model backends, and builds the
// orchestrator/watcher/search engine. It does not start the watcher or
// orchestrator loops: call Start for that.
func Open(ctx context.Context, dataDir string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(ctx, filepath.Join(dataDir, "app.db"), logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	registry := models.NewRegistry()
	registry.Register("text", models.NewStaticEmbedder())
	registry.Register("image", models.NewStaticEmbedder())
	registry.Register("ocr", models.NewStaticOCR())
	registry.Register("llm", models.NewStaticChat())

	facade := parser.NewFacade(cfg.ChunkSize, cfg.ChunkOverlap,
		parser.NewPlainTextExtractor(cfg.TextExtensions...))

	files := fsio.New()

	orchCfg := orchestrator.Config{
		MaxWorkers:      cfg.MaxWorkers,
		BatchSize:       cfg.BatchSize,
		FlushTimeout:    secondsToDuration(cfg.FlushTimeout),
		TaskTimeout:     secondsToDuration(cfg.TaskTimeout),
		LLMSystemPrompt: cfg.LLMSystemPrompt,
		LLMTemperature:  cfg.LLMTemperature,
	}
	orch := orchestrator.New(st, registry, facade, files, orchCfg, cfg.TextExtensions, cfg.ImageExtensions, logger)

	watchOpts := watcher.Options{
		SyncDirectories:   cfg.SyncDirectories,
		IgnoredFolders:    cfg.IgnoredFolders,
		SkipHiddenFolders: cfg.SkipHiddenFolders,
		TextExtensions:    cfg.TextExtensions,
		ImageExtensions:   cfg.ImageExtensions,
	}
	w, err := watcher.New(orch, st, watchOpts, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("build watcher: %w", err)
	}

	engine := search.New(st, registry, files, cfg.TextExtensions, cfg.ImageExtensions, cfg.NumResults)

	return &App{
		Config:       cfg,
		Store:        st,
		Registry:     registry,
		Search:       engine,
		orchestrator: orch,
		watcher:      w,
		logger:       logger,
	}, nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// Start loads every registered backend, starts the orchestrator
// dispatcher, resumes any rows left PENDING from a prior run, then starts
// the filesystem watcher. Start blocks until the watcher's initial
// reconciliation completes.
func (a *App) Start(ctx context.Context) error {
	if err := a.Registry.LoadAll(ctx); err != nil {
		return fmt.Errorf("load backends: %w", err)
	}

	a.orchestrator.Start(ctx)

	for _, tt := range []store.TaskType{store.TaskOCR, store.TaskEmbed, store.TaskEmbedLLM, store.TaskLLM} {
		if err := a.orchestrator.ResumePending(ctx, tt); err != nil {
			a.logger.Error("resume pending failed", slog.String("task_type", string(tt)), slog.String("error", err.Error()))
		}
	}

	if err := a.watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	return nil
}

// Shutdown stops the watcher and orchestrator, unloads every backend, and
// closes the store, in that order.
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.watcher.Stop(); err != nil {
		a.logger.Error("watcher stop failed", slog.String("error", err.Error()))
	}
	if err := a.orchestrator.Shutdown(ctx); err != nil {
		a.logger.Error("orchestrator shutdown failed", slog.String("error", err.Error()))
	}
	if err := a.Registry.UnloadAll(ctx); err != nil {
		a.logger.Error("unload backends failed", slog.String("error", err.Error()))
	}
	return a.Store.Close()
}

// RegisterScreenCapturer wires a screen-capture backend into the registry
// under the "screenshotter" key, giving it the same load/unload
// availability surface as the model backends. The concrete grabber is
// platform code supplied by the embedding application; without one the
// key is simply absent and no capture loop runs.
func (a *App) RegisterScreenCapturer(grabber capture.ScreenGrabber) {
	c := capture.New(grabber, capture.Config{
		Interval:  time.Duration(a.Config.ScreenshotInterval) * time.Second,
		Folder:    a.Config.ScreenshotFolder,
		Retention: time.Duration(a.Config.DeleteScreenshotsAfter) * 24 * time.Hour,
	}, a.logger)
	a.Registry.Register("screenshotter", c)
}

// MCPServer builds the stdio MCP server bound to this App's search engine
// and store.
func (a *App) MCPServer() *mcpserver.Server {
	return mcpserver.New(a.Search, a.Store, a.logger)
}

// ResumePending re-enqueues every PENDING task of taskType, the manual
// trigger behind `nook resume` and the automatic one run at backend load.
func (a *App) ResumePending(ctx context.Context, taskType store.TaskType) error {
	return a.orchestrator.ResumePending(ctx, taskType)
}

// LoadBackends loads every registered model backend without starting the
// watcher or orchestrator loops, for read-mostly CLI commands (search)
// that need working embedders but not a running daemon.
func (a *App) LoadBackends(ctx context.Context) error {
	return a.Registry.LoadAll(ctx)
}

// QueueDepth reports the number of jobs currently waiting in the
// orchestrator's in-memory priority queue, for CLI commands that want to
// wait for a burst of resumed work to drain before exiting.
func (a *App) QueueDepth() int {
	return a.orchestrator.QueueDepth()
}
