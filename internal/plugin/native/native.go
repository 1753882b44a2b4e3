// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

// Package native provides plugins compiled into the host binary. They are
// registered by name with a factory and loaded through the same lifecycle
// as script plugins.
package native

import (
	"context"
	"slices"
	"sync"

	"github.com/samber/oops"

	"github.com/fragloop/fragloop/internal/plugin"
)

// Factory constructs a plugin bound to base.
type Factory func(ctx context.Context, base *plugin.Base) (plugin.Plugin, error)

// Definition describes a native plugin.
type Definition struct {
	Name     string
	Factory  Factory
	Manifest *plugin.Manifest
}

// Source serves registered native plugins.
type Source struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

var _ plugin.Source = (*Source)(nil)

// NewSource creates a source with defs registered. It panics on an invalid
// definition, as those are programming errors.
func NewSource(defs ...Definition) *Source {
	s := &Source{defs: make(map[string]Definition)}
	for _, def := range defs {
		if err := s.Register(def); err != nil {
			panic(err)
		}
	}
	return s
}

// Register adds or replaces a definition. A replaced definition takes
// effect on the plugin's next reload.
func (s *Source) Register(def Definition) error {
	if !plugin.ValidName(def.Name) {
		return oops.Code(plugin.CodeLoad).In("native").With("plugin", def.Name).Errorf("invalid plugin name %q", def.Name)
	}
	if def.Factory == nil {
		return oops.Code(plugin.CodeLoad).In("native").With("plugin", def.Name).Errorf("plugin %s has no factory", def.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[def.Name] = def
	return nil
}

// Kind implements plugin.Source.
func (s *Source) Kind() string { return "native" }

// Names implements plugin.Source.
func (s *Source) Names() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.defs))
	for n := range s.defs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names, nil
}

// Has implements plugin.Source.
func (s *Source) Has(name string) bool {
	_, ok := s.lookup(name)
	return ok
}

// Import implements plugin.Source.
func (s *Source) Import(_ context.Context, name string) (plugin.Module, error) {
	def, ok := s.lookup(name)
	if !ok {
		return nil, plugin.ErrNoSuchPlugin(name)
	}
	return &module{src: s, def: def}, nil
}

func (s *Source) lookup(name string) (Definition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[name]
	return def, ok
}

type module struct {
	src *Source
	mu  sync.RWMutex
	def Definition
}

func (m *module) Name() string { return m.current().Name }

func (m *module) Manifest() *plugin.Manifest { return m.current().Manifest }

// Exec picks up the latest registered definition.
func (m *module) Exec(_ context.Context) error {
	def, ok := m.src.lookup(m.Name())
	if !ok {
		return plugin.ErrNoSuchPlugin(m.Name())
	}
	m.mu.Lock()
	m.def = def
	m.mu.Unlock()
	return nil
}

func (m *module) Instantiate(ctx context.Context, base *plugin.Base) (plugin.Plugin, error) {
	return m.current().Factory(ctx, base)
}

func (m *module) current() Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.def
}
