// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

// Package capability checks which host capabilities a plugin's manifest
// grants it.
//
// Grants are gobwas/glob patterns with '.' as the segment separator: '*'
// matches one segment and '**' any number of them. "kv.*" grants "kv.read"
// and "kv.write"; "**" grants everything.
package capability

import (
	"slices"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// CodeInvalidGrant marks a malformed grant pattern.
const CodeInvalidGrant = "INVALID_GRANT"

type grant struct {
	pattern string
	glob    glob.Glob
}

// Enforcer holds the capability grants of loaded plugins. The zero value is
// ready to use.
type Enforcer struct {
	grants map[string][]grant
	mu     sync.RWMutex
}

// NewEnforcer creates an empty enforcer.
func NewEnforcer() *Enforcer {
	return &Enforcer{grants: make(map[string][]grant)}
}

// SetGrants replaces the grants of plugin. Either every pattern compiles and
// the grants are replaced, or nothing changes.
func (e *Enforcer) SetGrants(plugin string, patterns []string) error {
	compiled, err := compile(plugin, patterns)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.grants == nil {
		e.grants = make(map[string][]grant)
	}
	e.grants[plugin] = compiled
	return nil
}

// Validate reports whether patterns would be accepted by SetGrants for
// plugin without registering them.
func Validate(plugin string, patterns []string) error {
	_, err := compile(plugin, patterns)
	return err
}

func compile(plugin string, patterns []string) ([]grant, error) {
	if plugin == "" {
		return nil, oops.Code(CodeInvalidGrant).In("capability").Errorf("plugin name cannot be empty")
	}

	compiled := make([]grant, len(patterns))
	for i, p := range patterns {
		if p == "" {
			return nil, oops.Code(CodeInvalidGrant).In("capability").
				With("plugin", plugin).With("index", i).
				Errorf("capability %d: empty pattern", i)
		}
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, oops.Code(CodeInvalidGrant).In("capability").
				With("plugin", plugin).With("pattern", p).
				Wrapf(err, "capability %d", i)
		}
		compiled[i] = grant{pattern: p, glob: g}
	}
	return compiled, nil
}

// IsRegistered reports whether grants were set for plugin.
func (e *Enforcer) IsRegistered(plugin string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.grants[plugin]
	return ok
}

// RemoveGrants forgets plugin. Unknown plugins are ignored.
func (e *Enforcer) RemoveGrants(plugin string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.grants, plugin)
}

// Grants returns a copy of the patterns granted to plugin, or nil.
func (e *Enforcer) Grants(plugin string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	gs, ok := e.grants[plugin]
	if !ok {
		return nil
	}
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = g.pattern
	}
	return out
}

// Plugins returns the registered plugin names, sorted.
func (e *Enforcer) Plugins() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.grants))
	for name := range e.grants {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Check reports whether plugin holds capability. Unknown plugins and empty
// capabilities are denied.
func (e *Enforcer) Check(plugin, capability string) bool {
	if capability == "" {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, g := range e.grants[plugin] {
		if g.glob.Match(capability) {
			return true
		}
	}
	return false
}
