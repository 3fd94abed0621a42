// Package watcher keeps the store's task tables in sync with the
// directories named by sync_directories. On start it reconciles the
// store's recorded file states against the filesystem, then watches the
// tree live with fsnotify, debouncing rapid changes per path before
// submitting tasks to the orchestrator.
//
// Usage:
//
//	w, err := watcher.New(orch, st, watcher.Options{SyncDirectories: dirs}, logger)
//	if err != nil {
//	    return err
//	}
//	if err := w.Start(ctx); err != nil {
//	    return err
//	}
//	defer w.Stop()
package watcher
