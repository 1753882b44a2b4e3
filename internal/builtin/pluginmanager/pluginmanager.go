// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

// Package pluginmanager is the built-in plugin that lets operators load,
// unload and reload plugins with commands.
package pluginmanager

import (
	"context"
	"fmt"
	"strings"

	"github.com/fragloop/fragloop/internal/command"
	"github.com/fragloop/fragloop/internal/event"
	"github.com/fragloop/fragloop/internal/plugin"
	"github.com/fragloop/fragloop/internal/plugin/native"
)

// Name is the plugin name.
const Name = "plugin_manager"

// Permission is the level required for every command.
const Permission = 5

// Lifecycle is the part of the loader the commands drive.
type Lifecycle interface {
	Load(ctx context.Context, name string) error
	Unload(ctx context.Context, name string) error
	Reload(ctx context.Context, name string) error
	Available() ([]string, error)
	Registry() *plugin.Registry
}

// Definition returns the native plugin definition bound to lc.
func Definition(lc Lifecycle) native.Definition {
	return native.Definition{
		Name: Name,
		Factory: func(_ context.Context, base *plugin.Base) (plugin.Plugin, error) {
			return New(base, lc)
		},
		Manifest: &plugin.Manifest{
			Name:        Name,
			Version:     plugin.APIVersion,
			Description: "Load, unload and reload plugins at runtime",
		},
	}
}

// Plugin is the plugin manager instance.
type Plugin struct {
	*plugin.Base
	lc Lifecycle
}

// New registers the manager's commands on base.
func New(base *plugin.Base, lc Lifecycle) (*Plugin, error) {
	p := &Plugin{Base: base, lc: lc}
	cmds := []plugin.Command{
		{Names: []string{"load"}, Handler: p.lifecycle("load", "Loaded", lc.Load), Usage: "<plugin>"},
		{Names: []string{"unload"}, Handler: p.lifecycle("unload", "Unloaded", lc.Unload), Usage: "<plugin>"},
		{Names: []string{"reload"}, Handler: p.lifecycle("reload", "Reloaded", lc.Reload), Usage: "<plugin>"},
		{Names: []string{"plugins"}, Handler: p.list},
	}
	for _, c := range cmds {
		c.Permission = Permission
		if _, err := p.AddCommand(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Plugin) lifecycle(verb, done string, op func(ctx context.Context, name string) error) command.Handler {
	return func(ctx context.Context, inv *command.Invocation) (event.Result, error) {
		if len(inv.Args) < 2 {
			return event.Continue, command.ErrUsage()
		}
		name := strings.ToLower(inv.Args[1])
		if err := op(ctx, name); err != nil {
			inv.Caller.Reply(ctx, fmt.Sprintf("Could not %s %s: %s", verb, name, err))
			return event.Stop, nil
		}
		inv.Caller.Reply(ctx, fmt.Sprintf("%s %s.", done, name))
		return event.Continue, nil
	}
}

func (p *Plugin) list(ctx context.Context, inv *command.Invocation) (event.Result, error) {
	loaded := p.lc.Registry().Names()
	inv.Caller.Reply(ctx, "Loaded: "+joinOrNone(loaded))

	available, err := p.lc.Available()
	if err != nil {
		return event.Continue, err
	}
	var idle []string
	for _, n := range available {
		if !p.lc.Registry().Has(n) {
			idle = append(idle, n)
		}
	}
	inv.Caller.Reply(ctx, "Available: "+joinOrNone(idle))
	return event.Continue, nil
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
