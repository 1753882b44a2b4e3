// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package plugin

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/gobwas/glob"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fragloop/fragloop/internal/config"
	"github.com/fragloop/fragloop/internal/event"
	"github.com/fragloop/fragloop/internal/offload"
	"github.com/fragloop/fragloop/internal/plugin/capability"
	"github.com/fragloop/fragloop/pkg/errutil"
)

var tracer = otel.Tracer("fragloop/plugin")

// Loader loads, unloads and reloads plugins.
type Loader struct {
	sources  []Source
	registry *Registry
	cache    *ModuleCache
	svc      Services
	logger   *slog.Logger
}

// NewLoader creates a loader importing modules from sources, searched in order.
func NewLoader(svc Services, sources ...Source) *Loader {
	if svc.Logger == nil {
		svc.Logger = slog.Default()
	}
	return &Loader{
		sources:  sources,
		registry: NewRegistry(),
		cache:    NewModuleCache(),
		svc:      svc,
		logger:   svc.Logger,
	}
}

// Registry returns the registry of loaded plugins.
func (l *Loader) Registry() *Registry { return l.registry }

// Cache returns the module cache.
func (l *Loader) Cache() *ModuleCache { return l.cache }

// Available returns the names of every module the sources can import,
// sorted and without duplicates.
func (l *Loader) Available() ([]string, error) {
	seen := make(map[string]struct{})
	var names []string
	for _, src := range l.sources {
		srcNames, err := src.Names()
		if err != nil {
			return nil, oops.In("plugin").With("source", src.Kind()).Wrap(err)
		}
		for _, n := range srcNames {
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			names = append(names, n)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (l *Loader) source(name string) (Source, bool) {
	for _, src := range l.sources {
		if src.Has(name) {
			return src, true
		}
	}
	return nil, false
}

func (l *Loader) checkContext(ctx context.Context, operation string) error {
	if offload.Active(ctx) {
		return ErrWrongContext(operation, offload.UnitName(ctx))
	}
	return nil
}

func (l *Loader) startSpan(ctx context.Context, operation, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "plugin."+operation,
		trace.WithAttributes(attribute.String("plugin.name", name)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Load imports and instantiates the named plugin. Loading a plugin that is
// already loaded reloads it. A module that imported successfully stays
// cached even when instantiation fails.
func (l *Loader) Load(ctx context.Context, name string) (err error) {
	if err := l.checkContext(ctx, "load"); err != nil {
		return err
	}

	src, ok := l.source(name)
	if !ok {
		err := ErrNoSuchPlugin(name)
		recordOperation(opLoad, err)
		return err
	}
	if l.registry.Has(name) {
		return l.Reload(ctx, name)
	}

	ctx, span := l.startSpan(ctx, opLoad, name)
	defer func() {
		recordOperation(opLoad, err)
		endSpan(span, err)
	}()

	logger := l.logger.With("plugin", name)
	logger.InfoContext(ctx, "loading plugin", "source", src.Kind())

	if err := l.load(ctx, src, name); err != nil {
		errutil.LogException(logger, "failed to load plugin", err)
		return err
	}

	loadedPlugins.Set(float64(l.registry.Len()))
	logger.InfoContext(ctx, "plugin loaded")
	return nil
}

func (l *Loader) load(ctx context.Context, src Source, name string) error {
	mod, cached := l.cache.Get(name)
	if !cached {
		imported, err := src.Import(ctx, name)
		if err != nil {
			return ErrLoad(name, err)
		}
		mod = imported
		l.cache.put(name, mod)
	}

	manifest := mod.Manifest()
	if err := CheckManifest(name, manifest); err != nil {
		return err
	}
	if err := l.grant(name, manifest); err != nil {
		return err
	}

	base := NewBase(name, l.svc)
	p, err := mod.Instantiate(ctx, base)
	if err == nil && p == nil {
		err = oops.Code(CodeLoad).In("plugin").With("plugin", name).
			Errorf("module %s did not construct a plugin", name)
	}
	if err == nil && p.Name() != name {
		err = oops.Code(CodeLoad).In("plugin").With("plugin", name).With("constructed", p.Name()).
			Errorf("module %s constructed plugin %q", name, p.Name())
	}
	if err != nil {
		if rbErr := l.rollback(ctx, base, p); rbErr != nil {
			l.logger.WarnContext(ctx, "failed to roll back plugin registrations", "plugin", name, "error", rbErr)
		}
		if closer, ok := p.(Closer); ok {
			_ = closer.Close() //nolint:errcheck // construction error takes precedence
		}
		l.revoke(name)
		if errutil.HasCode(err, CodeLoad) {
			return err
		}
		return ErrLoad(name, err)
	}

	l.registry.put(name, p)
	return nil
}

// rollback undoes a failed construction. A constructed plugin removes its
// own registrations; whatever is left on base is removed afterwards.
func (l *Loader) rollback(ctx context.Context, base *Base, p Plugin) error {
	var errs []error
	if p != nil {
		errs = append(errs, rollback(ctx, p))
	}
	errs = append(errs, rollback(ctx, base))
	return errors.Join(errs...)
}

// Unload tears down a loaded plugin: it dispatches the unload event, removes
// every hook and command the plugin registered, then drops the registry
// entry. A failure part way leaves the plugin loaded with whatever it still
// has registered.
func (l *Loader) Unload(ctx context.Context, name string) (err error) {
	if err := l.checkContext(ctx, "unload"); err != nil {
		return err
	}

	p, ok := l.registry.Get(name)
	if !ok {
		err := ErrNotLoaded(name)
		recordOperation(opUnload, err)
		return err
	}

	ctx, span := l.startSpan(ctx, opUnload, name)
	defer func() {
		recordOperation(opUnload, err)
		endSpan(span, err)
	}()

	logger := l.logger.With("plugin", name)
	logger.InfoContext(ctx, "unloading plugin")

	if err := l.unload(ctx, name, p); err != nil {
		err = oops.Code(CodeUnload).In("plugin").With("plugin", name).Wrapf(err, "unload plugin %s", name)
		errutil.LogException(logger, "failed to unload plugin", err)
		return err
	}

	loadedPlugins.Set(float64(l.registry.Len()))
	return nil
}

func (l *Loader) unload(ctx context.Context, name string, p Plugin) error {
	if l.svc.Events != nil {
		l.svc.Events.Dispatch(ctx, event.Unload, name)
	}

	for _, h := range p.Hooks() {
		if err := p.RemoveHook(ctx, h); err != nil {
			return err
		}
	}
	for _, c := range p.Commands() {
		if err := p.RemoveCommand(ctx, c); err != nil {
			return err
		}
	}

	if closer, ok := p.(Closer); ok {
		if err := closer.Close(); err != nil {
			return err
		}
	}

	l.registry.remove(name)
	l.revoke(name)
	return nil
}

// Reload replaces a plugin with a fresh instance. When the module was
// imported before, it is executed again and its manifest checked first; if
// either fails the running instance is left untouched. Reloading a plugin
// that is not loaded loads it.
func (l *Loader) Reload(ctx context.Context, name string) (err error) {
	if err := l.checkContext(ctx, "reload"); err != nil {
		return err
	}

	ctx, span := l.startSpan(ctx, opReload, name)
	defer func() {
		recordOperation(opReload, err)
		endSpan(span, err)
	}()

	logger := l.logger.With("plugin", name)

	if mod, ok := l.cache.Get(name); ok {
		err := mod.Exec(ctx)
		if err == nil {
			err = CheckManifest(name, mod.Manifest())
		}
		if err != nil {
			err = ErrLoad(name, err)
			errutil.LogException(logger, "failed to reload plugin module, keeping current instance", err)
			return err
		}
	}

	if err := l.Unload(ctx, name); err != nil && !IsNotLoaded(err) {
		return err
	}

	return l.Load(ctx, name)
}

// LoadPreset loads every plugin named in names from dir. Entries may be glob
// patterns matched against the available plugin names. Plugins whose module
// has already been imported are skipped. A missing dir is a configuration
// error; individual load failures are logged and joined into the returned
// error while the remaining plugins still load.
func (l *Loader) LoadPreset(ctx context.Context, names []string, dir string) (err error) {
	if err := l.checkContext(ctx, "load_preset"); err != nil {
		return err
	}
	defer func() { recordOperation(opLoadPreset, err) }()

	if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
		return oops.Code(config.CodeConfig).
			In("plugin").
			With("dir", dir).
			Hint("qlx_pluginsPath must point to an existing directory").
			Errorf("plugins path %q is not a directory", dir)
	}

	expanded, err := l.expand(names)
	if err != nil {
		return err
	}

	var errs []error
	for _, name := range expanded {
		if l.cache.Has(name) {
			continue
		}
		if err := l.Load(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// expand resolves glob entries against the available plugin names and
// removes duplicates, keeping first occurrence order.
func (l *Loader) expand(names []string) ([]string, error) {
	var available []string
	seen := make(map[string]struct{})
	var out []string
	add := func(n string) {
		if _, dup := seen[n]; dup {
			return
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}

	for _, entry := range names {
		if !isGlob(entry) {
			add(entry)
			continue
		}
		g, err := glob.Compile(entry)
		if err != nil {
			return nil, oops.Code(config.CodeConfig).In("plugin").With("pattern", entry).Wrap(err)
		}
		if available == nil {
			if available, err = l.Available(); err != nil {
				return nil, err
			}
		}
		for _, n := range available {
			if g.Match(n) {
				add(n)
			}
		}
	}
	return out, nil
}

func isGlob(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

func (l *Loader) grant(name string, m *Manifest) error {
	if l.svc.Capabilities == nil || m == nil || m.Capabilities == nil {
		return nil
	}
	if err := l.svc.Capabilities.SetGrants(name, m.Capabilities); err != nil {
		return oops.Code(CodeLoad).In("plugin").With("plugin", name).Wrap(err)
	}
	return nil
}

func (l *Loader) revoke(name string) {
	if l.svc.Capabilities != nil {
		l.svc.Capabilities.RemoveGrants(name)
	}
}

// CheckManifest reports whether the host can load the plugin m describes:
// its requires constraint must accept APIVersion and its capability
// patterns must compile. A nil manifest passes.
func CheckManifest(name string, m *Manifest) error {
	if m == nil {
		return nil
	}
	if err := checkRequires(name, m); err != nil {
		return err
	}
	if m.Capabilities != nil {
		if err := capability.Validate(name, m.Capabilities); err != nil {
			return oops.Code(CodeLoad).In("plugin").With("plugin", name).Wrap(err)
		}
	}
	return nil
}

func checkRequires(name string, m *Manifest) error {
	if m == nil || m.Requires == "" {
		return nil
	}
	c, err := semver.NewConstraint(m.Requires)
	if err != nil {
		return oops.Code(CodeLoad).In("plugin").With("plugin", name).With("requires", m.Requires).Wrap(err)
	}
	if !c.Check(semver.MustParse(APIVersion)) {
		return oops.Code(CodeLoad).
			In("plugin").
			With("plugin", name).
			With("requires", m.Requires).
			With("api_version", APIVersion).
			Errorf("plugin %s requires API %s, host provides %s", name, m.Requires, APIVersion)
	}
	return nil
}

