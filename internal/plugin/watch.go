// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package plugin

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/oops"

	"github.com/fragloop/fragloop/internal/schedule"
)

// DefaultDebounce is how long the watcher waits for a file to settle.
const DefaultDebounce = 300 * time.Millisecond

// Watcher reloads loaded plugins when their files change on disk. Reloads
// are handed to the scheduler so they run on the host context.
type Watcher struct {
	dir      string
	loader   *Loader
	sched    *schedule.Scheduler
	logger   *slog.Logger
	debounce time.Duration
	exts     []string

	fsw     *fsnotify.Watcher
	timers  map[string]*time.Timer
	mu      sync.Mutex
	done    chan struct{}
	stopped sync.WaitGroup
}

// NewWatcher creates a watcher for dir. Files with one of exts (".lua",
// ".yaml") trigger a reload of the plugin they are named after.
func NewWatcher(dir string, loader *Loader, sched *schedule.Scheduler, logger *slog.Logger, exts ...string) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:      dir,
		loader:   loader,
		sched:    sched,
		logger:   logger,
		debounce: DefaultDebounce,
		exts:     exts,
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
}

// SetDebounce overrides the settle delay. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start begins watching. Stop must be called to release the watcher.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return oops.In("plugin").With("dir", w.dir).Wrapf(err, "create watcher")
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close() //nolint:errcheck // add error takes precedence
		return oops.In("plugin").With("dir", w.dir).Wrapf(err, "watch plugins dir")
	}
	w.fsw = fsw

	w.stopped.Add(1)
	go w.loop(ctx)
	w.logger.Info("hot reload enabled", "dir", w.dir)
	return nil
}

// Stop ends watching and cancels pending reloads.
func (w *Watcher) Stop() error {
	if w.fsw == nil {
		return nil
	}
	close(w.done)
	err := w.fsw.Close()
	w.stopped.Wait()

	w.mu.Lock()
	for name, t := range w.timers {
		t.Stop()
		delete(w.timers, name)
	}
	w.mu.Unlock()
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.stopped.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("plugin watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	name, ok := w.pluginName(ev.Name)
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, exists := w.timers[name]; exists {
		t.Stop()
	}
	w.timers[name] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, name)
		w.mu.Unlock()
		w.schedule(name)
	})
}

func (w *Watcher) pluginName(path string) (string, bool) {
	base := filepath.Base(path)
	for _, ext := range w.exts {
		if name, found := strings.CutSuffix(base, ext); found && ValidName(name) {
			return name, true
		}
	}
	return "", false
}

func (w *Watcher) schedule(name string) {
	w.sched.NextFrame(func(ctx context.Context) {
		if !w.loader.Registry().Has(name) {
			return
		}
		w.logger.InfoContext(ctx, "plugin changed on disk, reloading", "plugin", name)
		if err := w.loader.Reload(ctx, name); err != nil {
			w.logger.WarnContext(ctx, "hot reload failed", "plugin", name, "error", err)
		}
	})
}
