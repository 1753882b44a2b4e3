// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

// Package plugin manages the plugin lifecycle: discovering plugin modules,
// instantiating them, tracking the hooks and commands each instance
// registers, and tearing everything down again on unload or reload.
//
// All lifecycle operations must run on the host context. Code running in an
// offload unit has to hand work back through the frame scheduler.
package plugin

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/fragloop/fragloop/internal/command"
	"github.com/fragloop/fragloop/internal/event"
)

// APIVersion is the plugin API version the host implements. Manifests may
// constrain it through their requires field.
const APIVersion = "1.0.0"

// Hook is an event handler registration owned by a plugin.
type Hook struct {
	ID       ulid.ULID
	Event    string
	Handler  event.Handler
	Priority event.Priority
}

// Command is a command registration owned by a plugin.
type Command = command.Entry

// Plugin is the capability set every loaded plugin instance provides.
type Plugin interface {
	Name() string
	// Hooks returns the hooks the plugin currently has registered, in
	// registration order.
	Hooks() []Hook
	// Commands returns the commands the plugin currently has registered, in
	// registration order.
	Commands() []Command
	RemoveHook(ctx context.Context, hook Hook) error
	RemoveCommand(ctx context.Context, cmd Command) error
}

// Closer is implemented by plugins holding resources that must be released
// once the plugin is unloaded.
type Closer interface {
	Close() error
}

// Module is an imported plugin module. Importing a module loads its code
// once; instantiating it constructs a plugin from that code.
type Module interface {
	Name() string
	// Exec reads the module again from its source and validates it without
	// constructing a plugin. On success the module's code and manifest are
	// replaced in place; on failure the previous ones are kept.
	Exec(ctx context.Context) error
	// Instantiate constructs a plugin bound to base.
	Instantiate(ctx context.Context, base *Base) (Plugin, error)
	// Manifest returns the module's sidecar manifest, or nil if it has none.
	Manifest() *Manifest
}

// Source discovers and imports plugin modules of one kind.
type Source interface {
	// Kind names the source, e.g. "lua" or "native".
	Kind() string
	// Names returns the names of all modules the source can import, sorted.
	Names() ([]string, error)
	Has(name string) bool
	Import(ctx context.Context, name string) (Module, error)
}
