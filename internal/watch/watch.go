// Package watch re-runs a push whenever the canonical asset root changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RunFunc performs one sync
type RunFunc func(ctx context.Context) error

// Watcher triggers debounced, serialized syncs on filesystem changes below
// a root directory
type Watcher struct {
	root        string
	run         RunFunc
	logger      *slog.Logger
	syncMu      sync.Mutex // guards syncRunning and syncPending
	syncRunning bool       // whether a sync is currently in progress
	syncPending bool       // whether another sync is needed after the current one
	debounce    *debouncer
}

// debouncer implements debouncing for change events
type debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	delay    time.Duration
	callback func()
}

// New creates a watcher for root that calls run once changes have been
// quiet for delay.
func New(root string, delay time.Duration, run RunFunc, logger *slog.Logger) *Watcher {
	return &Watcher{
		root:     root,
		run:      run,
		logger:   logger,
		debounce: &debouncer{delay: delay},
	}
}

// Run performs an initial sync, then watches until ctx is canceled. Sync
// failures are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		_ = fsw.Close()
	}()

	if err := w.addTree(fsw, w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}

	w.logger.Info("performing initial sync before watching", "root", w.root)
	w.performSync(ctx)

	w.logger.Info("watching for changes", "root", w.root, "debounce", w.debounce.delay)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping watcher")
			w.debounce.stop()
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// handleEvent starts watching newly created directories and schedules a sync
func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	// Temp files and staging directories written by claudesync itself.
	if strings.Contains(filepath.Base(event.Name), ".claudesync-") {
		return
	}

	if event.Has(fsnotify.Create) {
		err := w.addTree(fsw, event.Name)
		if err != nil && !errors.Is(err, errNotDir) && !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
		}
	}

	w.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
	w.debounce.trigger(func() {
		w.performSync(ctx)
	})
}

var errNotDir = errors.New("not a directory")

// addTree adds dir and every directory below it to fsw.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if path == dir {
				return errNotDir
			}
			return nil
		}
		if err := fsw.Add(path); err != nil {
			return err
		}
		w.logger.Debug("watching directory", "path", path)
		return nil
	})
}

// performSync executes the sync operation with single-flight semantics.
// If a sync is already in progress, at most one additional run is queued.
func (w *Watcher) performSync(ctx context.Context) {
	w.syncMu.Lock()
	if w.syncRunning {
		w.syncPending = true
		w.syncMu.Unlock()
		w.logger.Info("sync already in progress, queuing pending re-run")
		return
	}
	w.syncRunning = true
	w.syncMu.Unlock()

	for {
		if ctx.Err() != nil {
			w.syncMu.Lock()
			w.syncRunning = false
			w.syncPending = false
			w.syncMu.Unlock()
			return
		}

		if err := w.run(ctx); err != nil {
			w.logger.Error("sync failed", "error", err)
		} else {
			w.logger.Info("sync completed successfully")
		}

		w.syncMu.Lock()
		if !w.syncPending {
			w.syncRunning = false
			w.syncMu.Unlock()
			break
		}
		w.syncPending = false
		w.syncMu.Unlock()

		w.logger.Info("re-running sync due to pending request")
	}
}

// trigger schedules the callback to run after the debounce delay
func (d *debouncer) trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.callback = callback

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		cb := d.callback
		d.mu.Unlock()

		if cb != nil {
			cb()
		}
	})
}

// stop cancels a scheduled callback
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.callback = nil
}
