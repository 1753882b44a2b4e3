// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package plugin

import (
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Ledger records the hooks and commands a plugin has registered, in
// registration order.
type Ledger struct {
	hooks    []Hook
	commands []Command
	mu       sync.Mutex
}

// Hooks returns a snapshot of the recorded hooks.
func (l *Ledger) Hooks() []Hook {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.hooks)
}

// Commands returns a snapshot of the recorded commands.
func (l *Ledger) Commands() []Command {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.commands)
}

// Len returns the number of recorded hooks and commands.
func (l *Ledger) Len() (hooks, commands int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hooks), len(l.commands)
}

func (l *Ledger) recordHook(h Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, h)
}

func (l *Ledger) recordCommand(c Command) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commands = append(l.commands, c)
}

func (l *Ledger) forgetHook(id ulid.ULID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = slices.DeleteFunc(l.hooks, func(h Hook) bool { return h.ID == id })
}

func (l *Ledger) forgetCommand(id ulid.ULID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commands = slices.DeleteFunc(l.commands, func(c Command) bool { return c.ID == id })
}
