// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package lua

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/fragloop/fragloop/internal/config"
	"github.com/fragloop/fragloop/internal/plugin"
	"github.com/fragloop/fragloop/internal/plugin/capability"
	"github.com/fragloop/fragloop/internal/plugin/hostfunc"
	"github.com/fragloop/fragloop/internal/schedule"
	"github.com/fragloop/fragloop/internal/store"
)

// SetupFunc is the global every Lua plugin must define. It receives the
// plugin table and registers hooks and commands through it.
const SetupFunc = "setup"

// Module is a compiled Lua plugin file.
type Module struct {
	name    string
	dir     string
	path    string
	sandbox *Sandbox
	logger  *slog.Logger

	mu       sync.RWMutex
	proto    *lua.FunctionProto
	manifest *plugin.Manifest
}

var _ plugin.Module = (*Module)(nil)

// Name implements plugin.Module.
func (m *Module) Name() string { return m.name }

// Manifest implements plugin.Module.
func (m *Module) Manifest() *plugin.Manifest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.manifest
}

// Exec implements plugin.Module. The file and its manifest are read again,
// the manifest is checked against the host and the body is run in a scratch
// state that must define setup. The new code replaces the old only when all
// of that succeeds.
func (m *Module) Exec(ctx context.Context) error {
	proto, manifest, err := m.read()
	if err != nil {
		return err
	}
	if err := plugin.CheckManifest(m.name, manifest); err != nil {
		return err
	}
	if err := m.validate(ctx, proto, manifest); err != nil {
		return err
	}
	m.swap(proto, manifest)
	return nil
}

func (m *Module) read() (*lua.FunctionProto, *plugin.Manifest, error) {
	src, err := os.ReadFile(m.path)
	if err != nil {
		return nil, nil, oops.Code(plugin.CodeLoad).In("lua").With("plugin", m.name).With("path", m.path).Wrap(err)
	}
	proto, err := compile(src, m.path)
	if err != nil {
		return nil, nil, oops.Code(plugin.CodeLoad).In("lua").With("plugin", m.name).With("path", m.path).Wrap(err)
	}
	manifest, err := plugin.LoadManifest(m.dir, m.name)
	if err != nil {
		return nil, nil, err
	}
	return proto, manifest, nil
}

func (m *Module) swap(proto *lua.FunctionProto, manifest *plugin.Manifest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proto = proto
	m.manifest = manifest
}

// validate runs the module body in a throwaway state wired to scratch
// services: host writes land in a private cvar store and database, and
// scheduled functions are never run. setup is looked up but not called.
func (m *Module) validate(ctx context.Context, proto *lua.FunctionProto, manifest *plugin.Manifest) error {
	grants := capability.NewEnforcer()
	if manifest != nil && manifest.Capabilities != nil {
		if err := grants.SetGrants(m.name, manifest.Capabilities); err != nil {
			return oops.Code(plugin.CodeLoad).In("lua").With("plugin", m.name).Wrap(err)
		}
	}
	scratch := store.NewMemory()
	base := plugin.NewBase(m.name, plugin.Services{
		Config:       config.NewStore(),
		Scheduler:    schedule.New(schedule.WithLogger(m.logger)),
		Capabilities: grants,
		Database:     func() store.KV { return scratch },
		Logger:       m.logger,
	})

	L, err := m.sandbox.NewState(ctx, base.Logger())
	if err != nil {
		return err
	}
	p := &Plugin{Base: base, state: L}
	defer func() { _ = p.Close() }()
	hostfunc.New(base, p.invoke).Register(L)

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = p.runBody(ctx, proto)
	return err
}

// Instantiate implements plugin.Module. It runs the module body in a fresh
// state and calls setup(plugin).
func (m *Module) Instantiate(ctx context.Context, base *plugin.Base) (plugin.Plugin, error) {
	m.mu.RLock()
	proto := m.proto
	m.mu.RUnlock()

	L, err := m.sandbox.NewState(ctx, base.Logger())
	if err != nil {
		return nil, err
	}
	p := &Plugin{Base: base, state: L}
	hostfunc.New(base, p.invoke).Register(L)
	self := p.table()

	p.mu.Lock()
	err = p.start(ctx, proto, self)
	p.mu.Unlock()
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Plugin) start(ctx context.Context, proto *lua.FunctionProto, self *lua.LTable) error {
	setup, err := p.runBody(ctx, proto)
	if err != nil {
		return err
	}
	if _, err := p.callLocked(ctx, setup, 0, self); err != nil {
		return oops.Code(plugin.CodeLoad).In("lua").With("plugin", p.Name()).Wrapf(err, "setup failed")
	}
	return nil
}

// runBody executes the module body and returns the setup function it
// defined. p.mu must be held.
func (p *Plugin) runBody(ctx context.Context, proto *lua.FunctionProto) (*lua.LFunction, error) {
	body := p.state.NewFunctionFromProto(proto)
	if _, err := p.callLocked(ctx, body, 0); err != nil {
		return nil, oops.Code(plugin.CodeLoad).In("lua").With("plugin", p.Name()).Wrapf(err, "module body failed")
	}
	setup, ok := p.state.GetGlobal(SetupFunc).(*lua.LFunction)
	if !ok {
		return nil, oops.Code(plugin.CodeLoad).
			In("lua").
			With("plugin", p.Name()).
			Hint("define function setup(plugin) in the plugin file").
			Errorf("plugin %s has no setup function", p.Name())
	}
	return setup, nil
}

func compile(src []byte, name string) (*lua.FunctionProto, error) {
	chunk, err := parse.Parse(bytes.NewReader(src), name)
	if err != nil {
		return nil, err
	}
	return lua.Compile(chunk, name)
}
