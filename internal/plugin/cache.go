// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package plugin

import (
	"sync"
)

// ModuleCache keeps the last imported module for each plugin name. Entries
// are never evicted, so an unloaded plugin can be loaded or reloaded later
// without importing it again.
type ModuleCache struct {
	modules map[string]Module
	mu      sync.RWMutex
}

// NewModuleCache creates an empty cache.
func NewModuleCache() *ModuleCache {
	return &ModuleCache{modules: make(map[string]Module)}
}

// Get returns the cached module for name.
func (c *ModuleCache) Get(name string) (Module, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.modules[name]
	return m, ok
}

// Has reports whether a module for name has been imported.
func (c *ModuleCache) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// Len returns the number of cached modules.
func (c *ModuleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.modules)
}

func (c *ModuleCache) put(name string, m Module) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modules[name] = m
}
