// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package lua

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/oops"

	"github.com/fragloop/fragloop/internal/plugin"
)

// Ext is the file extension of Lua plugin modules.
const Ext = ".lua"

// Source discovers <name>.lua files in a plugins directory.
type Source struct {
	dir     string
	sandbox *Sandbox
	logger  *slog.Logger
}

var _ plugin.Source = (*Source)(nil)

// NewSource creates a source reading plugins from dir.
func NewSource(dir string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{dir: dir, sandbox: NewSandbox(), logger: logger}
}

// Kind implements plugin.Source.
func (s *Source) Kind() string { return "lua" }

// Dir returns the plugins directory.
func (s *Source) Dir() string { return s.dir }

// Names implements plugin.Source. A missing directory has no plugins.
func (s *Source) Names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.In("lua").With("dir", s.dir).Wrap(err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Ext) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), Ext)
		if !plugin.ValidName(name) {
			s.logger.Warn("ignoring lua file with invalid plugin name", "file", e.Name())
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Has implements plugin.Source.
func (s *Source) Has(name string) bool {
	if !plugin.ValidName(name) {
		return false
	}
	info, err := os.Stat(s.path(name))
	return err == nil && info.Mode().IsRegular()
}

// Import implements plugin.Source. The module body is compiled and its
// manifest read; nothing runs until the module is instantiated.
func (s *Source) Import(_ context.Context, name string) (plugin.Module, error) {
	if !s.Has(name) {
		return nil, plugin.ErrNoSuchPlugin(name)
	}
	m := &Module{
		name:    name,
		dir:     s.dir,
		path:    s.path(name),
		sandbox: s.sandbox,
		logger:  s.logger,
	}
	proto, manifest, err := m.read()
	if err != nil {
		return nil, err
	}
	m.swap(proto, manifest)
	return m, nil
}

func (s *Source) path(name string) string {
	return filepath.Join(s.dir, name+Ext)
}
