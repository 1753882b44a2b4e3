// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

// Package host wires the plugin runtime together: cvars, events, commands,
// the frame scheduler, the offload guard, plugin sources and the key-value
// database. The embedding process drives it by calling Frame once per tick.
package host

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fragloop/fragloop/internal/builtin/pluginmanager"
	"github.com/fragloop/fragloop/internal/command"
	"github.com/fragloop/fragloop/internal/config"
	"github.com/fragloop/fragloop/internal/event"
	"github.com/fragloop/fragloop/internal/offload"
	"github.com/fragloop/fragloop/internal/plugin"
	"github.com/fragloop/fragloop/internal/plugin/capability"
	pluginlua "github.com/fragloop/fragloop/internal/plugin/lua"
	"github.com/fragloop/fragloop/internal/plugin/native"
	"github.com/fragloop/fragloop/internal/schedule"
	"github.com/fragloop/fragloop/internal/store"
	"github.com/fragloop/fragloop/internal/xdg"
	"github.com/fragloop/fragloop/pkg/errutil"
)

// Options configure a Runtime.
type Options struct {
	// Config holds the cvars. Defaults are applied to it in New.
	Config *config.Store
	Logger *slog.Logger
	// Clock drives the scheduler. Defaults to time.Now.
	Clock func() time.Time
	// Natives are extra native plugins available to load.
	Natives []native.Definition
	// FrameObserver, if set, is told how long each frame took.
	FrameObserver func(time.Duration)
}

// Runtime is the plugin host.
type Runtime struct {
	cfg      *config.Store
	events   *event.Dispatcher
	commands *command.Registry
	sched    *schedule.Scheduler
	guard    *offload.Guard
	caps     *capability.Enforcer
	natives  *native.Source
	scripts  *pluginlua.Source
	loader   *plugin.Loader
	logger   *slog.Logger
	observe  func(time.Duration)
	clock    func() time.Time

	mu       sync.RWMutex
	db       store.KV
	watcher  *plugin.Watcher
	version  string
	started  time.Time
	ready    atomic.Bool
	initOnce sync.Once
}

// New builds a runtime. Startup cvar defaults are applied to opts.Config
// for every cvar not already set.
func New(opts Options) (*Runtime, error) {
	if opts.Config == nil {
		opts.Config = config.NewStore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	config.InitializeDefaults(opts.Config)

	r := &Runtime{
		cfg:     opts.Config,
		logger:  opts.Logger,
		observe: opts.FrameObserver,
		clock:   opts.Clock,
		version: plugin.VersionNotSet,
		started: opts.Clock(),
	}
	r.events = event.NewDispatcher(r.logger)
	r.commands = command.NewRegistry(r.commandPrefix, r.logger)
	r.sched = schedule.New(schedule.WithClock(opts.Clock), schedule.WithLogger(r.logger))
	r.guard = offload.NewGuard(r.logger)
	r.caps = capability.NewEnforcer()

	pluginsPath, _ := r.cfg.Get(config.CvarPluginsPath)
	r.natives = native.NewSource()
	r.scripts = pluginlua.NewSource(pluginsPath, r.logger)
	r.loader = plugin.NewLoader(plugin.Services{
		Events:       r.events,
		Commands:     r.commands,
		Config:       r.cfg,
		Scheduler:    r.sched,
		Offload:      r.guard,
		Capabilities: r.caps,
		Database:     r.Database,
		Logger:       r.logger,
	}, r.natives, r.scripts)

	defs := append([]native.Definition{pluginmanager.Definition(r.loader)}, opts.Natives...)
	for _, def := range defs {
		if err := r.natives.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Runtime) commandPrefix() string {
	v, _ := r.cfg.Get(config.CvarCommandPrefix)
	return v
}

// Config returns the cvar store.
func (r *Runtime) Config() *config.Store { return r.cfg }

// Events returns the event dispatcher.
func (r *Runtime) Events() *event.Dispatcher { return r.events }

// Commands returns the command registry.
func (r *Runtime) Commands() *command.Registry { return r.commands }

// Scheduler returns the frame scheduler.
func (r *Runtime) Scheduler() *schedule.Scheduler { return r.sched }

// Offload returns the offload guard.
func (r *Runtime) Offload() *offload.Guard { return r.guard }

// Loader returns the plugin loader.
func (r *Runtime) Loader() *plugin.Loader { return r.loader }

// Database returns the selected key-value backend, or nil before late
// initialization selected one.
func (r *Runtime) Database() store.KV {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.db
}

// PluginsVersion returns the git description of the plugins directory.
func (r *Runtime) PluginsVersion() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Ready reports whether late initialization finished.
func (r *Runtime) Ready() bool { return r.ready.Load() }

// Uptime returns how long the runtime has existed.
func (r *Runtime) Uptime() time.Duration {
	return r.clock().Sub(r.started)
}

// Owner returns the owner SteamID64. An unset or invalid owner is logged
// and reported as an error.
func (r *Runtime) Owner() (int64, error) {
	sid, err := config.Owner(r.cfg)
	if err != nil {
		r.logger.Warn("owner cvar is not set or invalid", "cvar", config.CvarOwner, "error", err)
	}
	return sid, err
}

// Status is a snapshot of the runtime for operators.
type Status struct {
	Ready          bool     `json:"ready"`
	Uptime         string   `json:"uptime"`
	Frame          uint64   `json:"frame"`
	QueuedTasks    int      `json:"queued_tasks"`
	PluginsVersion string   `json:"plugins_version"`
	Plugins        []string `json:"plugins"`
}

// Status returns the current snapshot. It is safe to call from any
// goroutine.
func (r *Runtime) Status() Status {
	return Status{
		Ready:          r.Ready(),
		Uptime:         r.Uptime().Round(time.Second).String(),
		Frame:          r.sched.Frame(),
		QueuedTasks:    r.sched.Len(),
		PluginsVersion: r.PluginsVersion(),
		Plugins:        r.loader.Registry().Names(),
	}
}

// Frame runs one host tick: the frame event, then every due task.
func (r *Runtime) Frame(ctx context.Context) int {
	start := time.Now()
	r.events.Dispatch(ctx, event.Frame, r.sched.Frame()+1)
	n := r.sched.Pump(ctx)
	if r.observe != nil {
		r.observe(time.Since(start))
	}
	return n
}

// Console handles one line typed on the server console. Hooks on the
// console event may block it; otherwise it runs as a command and replies
// go to w.
func (r *Runtime) Console(ctx context.Context, line string, w io.Writer) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if !r.events.Dispatch(ctx, event.Console, line) {
		return
	}
	if _, err := r.commands.HandleConsole(ctx, command.NewConsoleCaller(w), line); err != nil {
		if command.HasCode(err, command.CodeUnknownCommand) {
			_, _ = io.WriteString(w, "unknown command: "+line+"\n")
			return
		}
		r.logger.DebugContext(ctx, "console command failed", "line", line, "error", err)
	}
}

// Initialize queues late initialization for the next frame, so it runs
// once the embedding process is ticking. Calls after the first are no-ops.
func (r *Runtime) Initialize() {
	r.initOnce.Do(func() {
		r.sched.NextFrame(func(ctx context.Context) {
			if err := r.lateInit(ctx); err != nil {
				errutil.LogException(r.logger, "late initialization failed", err)
			}
		})
	})
}

func (r *Runtime) lateInit(ctx context.Context) error {
	config.InitializeDefaults(r.cfg)

	if err := r.openDatabase(ctx); err != nil {
		errutil.LogException(r.logger, "database unavailable, plugins run without one", err)
	}

	pluginsPath, _ := r.cfg.Get(config.CvarPluginsPath)
	if abs, err := filepath.Abs(pluginsPath); err == nil {
		pluginsPath = abs
	}
	version := plugin.PluginsVersion(ctx, pluginsPath)
	r.mu.Lock()
	r.version = version
	r.mu.Unlock()
	r.logger.InfoContext(ctx, "plugins version", "version", version, "path", pluginsPath)

	r.logger.InfoContext(ctx, "loading preset plugins")
	presetErr := r.loader.LoadPreset(ctx, r.presetNames(), pluginsPath)
	if errutil.HasCode(presetErr, config.CodeConfig) {
		return presetErr
	}

	if hot, _ := r.cfg.GetBool(config.CvarHotReload); hot {
		if err := r.startWatcher(ctx, pluginsPath); err != nil {
			errutil.LogException(r.logger, "hot reload unavailable", err)
		}
	}

	r.ready.Store(true)
	r.logger.InfoContext(ctx, "we're good to go", "plugins", r.loader.Registry().Names())
	return presetErr
}

func (r *Runtime) presetNames() []string {
	raw, _ := r.cfg.Get(config.CvarPlugins)
	var names []string
	for _, n := range strings.Split(raw, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func (r *Runtime) openDatabase(ctx context.Context) error {
	backend, _ := r.cfg.Get(config.CvarDatabase)
	boltPath, _ := r.cfg.Get(config.CvarBoltPath)
	if boltPath == "" {
		boltPath = xdg.BoltFile()
	}
	pgURL, _ := r.cfg.Get(config.CvarPostgresURL)

	kv, err := store.Open(ctx, store.Options{
		Backend:     backend,
		BoltPath:    boltPath,
		PostgresURL: pgURL,
	}, r.logger)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.db = kv
	r.mu.Unlock()
	r.logger.InfoContext(ctx, "database selected", "backend", backend)
	return nil
}

func (r *Runtime) startWatcher(ctx context.Context, dir string) error {
	w := plugin.NewWatcher(dir, r.loader, r.sched, r.logger, pluginlua.Ext, ".yaml")
	if err := w.Start(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	r.watcher = w
	r.mu.Unlock()
	return nil
}

// Close unloads every plugin, in reverse name order, stops the watcher and
// closes the database. It must run on the host context.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error

	r.mu.Lock()
	w := r.watcher
	r.watcher = nil
	r.mu.Unlock()
	if w != nil {
		errs = append(errs, w.Stop())
	}

	names := r.loader.Registry().Names()
	slices.Reverse(names)
	for _, name := range names {
		if err := r.loader.Unload(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}

	r.mu.Lock()
	db := r.db
	r.db = nil
	r.mu.Unlock()
	if db != nil {
		errs = append(errs, db.Close())
	}
	return errors.Join(errs...)
}
