// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package plugin_test

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/fragloop/fragloop/internal/plugin"
)

// journal records lifecycle calls across fakes in order.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.entries)
}

type fakePlugin struct {
	*plugin.Base
	log    *journal
	closed bool
}

func (p *fakePlugin) RemoveHook(ctx context.Context, h plugin.Hook) error {
	p.log.add("hook:" + h.Event)
	return p.Base.RemoveHook(ctx, h)
}

func (p *fakePlugin) RemoveCommand(ctx context.Context, c plugin.Command) error {
	p.log.add("command:" + c.Name())
	return p.Base.RemoveCommand(ctx, c)
}

func (p *fakePlugin) Close() error {
	p.closed = true
	p.log.add("close")
	return nil
}

type fakeModule struct {
	name     string
	log      *journal
	manifest *plugin.Manifest
	execErr  error
	// setup runs inside Instantiate after the plugin is constructed.
	setup func(p *fakePlugin) error
	// construct overrides plugin construction entirely.
	construct func(base *plugin.Base) (plugin.Plugin, error)

	mu        sync.Mutex
	execs     int
	instances []*fakePlugin
}

func (m *fakeModule) Name() string               { return m.name }
func (m *fakeModule) Manifest() *plugin.Manifest { return m.manifest }

func (m *fakeModule) Exec(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs++
	return m.execErr
}

func (m *fakeModule) Instantiate(_ context.Context, base *plugin.Base) (plugin.Plugin, error) {
	if m.construct != nil {
		return m.construct(base)
	}
	p := &fakePlugin{Base: base, log: m.log}
	m.mu.Lock()
	m.instances = append(m.instances, p)
	m.mu.Unlock()
	if m.setup != nil {
		if err := m.setup(p); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (m *fakeModule) last() *fakePlugin {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.instances) == 0 {
		return nil
	}
	return m.instances[len(m.instances)-1]
}

type fakeSource struct {
	mu        sync.Mutex
	modules   map[string]*fakeModule
	imports   map[string]int
	importErr map[string]error
}

func newFakeSource(mods ...*fakeModule) *fakeSource {
	s := &fakeSource{
		modules:   make(map[string]*fakeModule),
		imports:   make(map[string]int),
		importErr: make(map[string]error),
	}
	for _, m := range mods {
		s.modules[m.name] = m
	}
	return s
}

func (s *fakeSource) Kind() string { return "fake" }

func (s *fakeSource) Names() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.modules))
	for n := range s.modules {
		names = append(names, n)
	}
	slices.Sort(names)
	return names, nil
}

func (s *fakeSource) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.modules[name]
	return ok
}

func (s *fakeSource) Import(_ context.Context, name string) (plugin.Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imports[name]++
	if err := s.importErr[name]; err != nil {
		return nil, err
	}
	m, ok := s.modules[name]
	if !ok {
		return nil, errors.New("vanished")
	}
	return m, nil
}

func (s *fakeSource) importCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imports[name]
}
