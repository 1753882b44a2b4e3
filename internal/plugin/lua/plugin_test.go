// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package lua_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragloop/fragloop/internal/event"
	"github.com/fragloop/fragloop/internal/plugin"
	pluginlua "github.com/fragloop/fragloop/internal/plugin/lua"
	"github.com/fragloop/fragloop/internal/plugin/plugintest"
	"github.com/fragloop/fragloop/pkg/errutil"
)

const greeter = `
greeted = 0

function setup(plugin)
  plugin:add_hook("console", function(line)
    if line == "block" then
      return fragloop.RET_STOP_EVENT
    end
  end)

  plugin:add_command({"greet", "hi"}, function(caller, args)
    if #args < 2 then
      return fragloop.RET_USAGE
    end
    greeted = greeted + 1
    caller:reply("hello " .. args[2] .. " from " .. plugin.name)
  end, {usage = "<name>", permission = 1})
end
`

func writePlugin(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+pluginlua.Ext), []byte(src), 0o600))
}

func newLoader(t *testing.T, dir string) (*plugin.Loader, *plugintest.Host) {
	t.Helper()
	host := plugintest.NewHost(t)
	return plugin.NewLoader(host.Services, pluginlua.NewSource(dir, host.Services.Logger)), host
}

func TestSource_Names(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "beta", "function setup(p) end")
	writePlugin(t, dir, "alpha", "function setup(p) end")
	writePlugin(t, dir, "Bad-Name", "function setup(p) end")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o600))

	src := pluginlua.NewSource(dir, nil)
	names, err := src.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names)
	assert.True(t, src.Has("alpha"))
	assert.False(t, src.Has("gamma"))
	assert.False(t, src.Has("../alpha"))
}

func TestSource_MissingDirHasNoPlugins(t *testing.T) {
	names, err := pluginlua.NewSource(filepath.Join(t.TempDir(), "missing"), nil).Names()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSource_ImportSyntaxError(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "broken", "function setup(")

	_, err := pluginlua.NewSource(dir, nil).Import(context.Background(), "broken")
	errutil.AssertErrorCode(t, err, plugin.CodeLoad)
}

func TestLuaPlugin_HooksAndCommands(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "greeter", greeter)
	loader, host := newLoader(t, dir)
	ctx := context.Background()

	require.NoError(t, loader.Load(ctx, "greeter"))

	p, ok := loader.Registry().Get("greeter")
	require.True(t, ok)
	assert.Len(t, p.Hooks(), 1)
	require.Len(t, p.Commands(), 1)
	assert.Equal(t, []string{"greet", "hi"}, p.Commands()[0].Names)

	assert.Equal(t, "hello bob from greeter\n", host.Console(t, "!greet bob"))
	assert.Equal(t, "hello amy from greeter\n", host.Console(t, "hi amy"))
	assert.Contains(t, host.Console(t, "greet"), "Usage: !greet <name>")

	assert.True(t, host.Services.Events.Dispatch(ctx, event.Console, "pass"))
	assert.False(t, host.Services.Events.Dispatch(ctx, event.Console, "block"))
}

func TestLuaPlugin_UnloadRemovesRegistrations(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "greeter", greeter)
	loader, host := newLoader(t, dir)
	ctx := context.Background()

	require.NoError(t, loader.Load(ctx, "greeter"))
	require.NoError(t, loader.Unload(ctx, "greeter"))

	assert.Zero(t, host.Services.Events.Count(event.Console))
	assert.Empty(t, host.Services.Commands.Lookup("greet"))
	assert.False(t, loader.Registry().Has("greeter"))
}

func TestLuaPlugin_MissingSetup(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "nosetup", `x = 1`)
	loader, _ := newLoader(t, dir)

	err := loader.Load(context.Background(), "nosetup")
	errutil.AssertErrorCode(t, err, plugin.CodeLoad)
	assert.Contains(t, err.Error(), "no setup function")
	assert.False(t, loader.Registry().Has("nosetup"))
	assert.True(t, loader.Cache().Has("nosetup"))
}

func TestLuaPlugin_SetupErrorRollsBack(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "halfway", `
function setup(plugin)
  plugin:add_hook("console", function() end)
  plugin:add_command("halfway", function() end)
  error("boom")
end
`)
	loader, host := newLoader(t, dir)

	err := loader.Load(context.Background(), "halfway")
	errutil.AssertErrorCode(t, err, plugin.CodeLoad)
	assert.Zero(t, host.Services.Events.Count(event.Console))
	assert.Empty(t, host.Services.Commands.Lookup("halfway"))
	assert.True(t, host.Logs.Contains("failed to load plugin"))
}

func TestLuaPlugin_ReloadPicksUpNewCode(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "version", `
function setup(plugin)
  plugin:add_command("version", function(caller) caller:reply("v1") end)
end
`)
	loader, host := newLoader(t, dir)
	ctx := context.Background()
	require.NoError(t, loader.Load(ctx, "version"))
	assert.Equal(t, "v1\n", host.Console(t, "version"))

	writePlugin(t, dir, "version", `
function setup(plugin)
  plugin:add_command("version", function(caller) caller:reply("v2") end)
end
`)
	require.NoError(t, loader.Reload(ctx, "version"))
	assert.Equal(t, "v2\n", host.Console(t, "version"))
	assert.Len(t, host.Services.Commands.Lookup("version"), 1)
}

func TestLuaPlugin_ReloadWithBrokenCodeKeepsInstance(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "version", `
function setup(plugin)
  plugin:add_command("version", function(caller) caller:reply("v1") end)
end
`)
	loader, host := newLoader(t, dir)
	ctx := context.Background()
	require.NoError(t, loader.Load(ctx, "version"))

	writePlugin(t, dir, "version", `function setup(plugin`)
	errutil.AssertErrorCode(t, loader.Reload(ctx, "version"), plugin.CodeLoad)

	assert.True(t, loader.Registry().Has("version"))
	assert.Equal(t, "v1\n", host.Console(t, "version"))
}

func TestLuaPlugin_ReloadValidatesBeforeUnloading(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		manifest string
		message  string
	}{
		{
			name:    "runtime error in module body",
			source:  "error('boom at top level')\n" + greeter,
			message: "boom at top level",
		},
		{
			name:    "setup removed",
			source:  "greeted = 0",
			message: "no setup function",
		},
		{
			name:     "incompatible requires",
			source:   greeter,
			manifest: "name: greeter\nversion: 2.0.0\nrequires: \">= 9.0.0\"\n",
			message:  "requires API",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writePlugin(t, dir, "greeter", greeter)
			loader, host := newLoader(t, dir)
			ctx := context.Background()
			require.NoError(t, loader.Load(ctx, "greeter"))
			current, _ := loader.Registry().Get("greeter")

			writePlugin(t, dir, "greeter", tt.source)
			if tt.manifest != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "greeter.yaml"), []byte(tt.manifest), 0o600))
			}

			err := loader.Reload(ctx, "greeter")
			errutil.AssertErrorCode(t, err, plugin.CodeLoad)
			assert.Contains(t, err.Error(), tt.message)

			p, ok := loader.Registry().Get("greeter")
			require.True(t, ok)
			assert.Same(t, current, p)
			assert.Equal(t, "hello bob from greeter\n", host.Console(t, "greet bob"))
			assert.True(t, host.Logs.Contains("keeping current instance"))
		})
	}
}

func TestLuaPlugin_ReloadValidationUsesScratchServices(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "boot", `
fragloop.kv_set("stage", "v1")
function setup(plugin) end
`)
	loader, host := newLoader(t, dir)
	ctx := context.Background()
	require.NoError(t, loader.Load(ctx, "boot"))

	writePlugin(t, dir, "boot", `
fragloop.kv_set("stage", "v2")
fragloop.next_frame(function() fragloop.kv_set("stage", "scheduled") end)
error("half written")
`)
	require.Error(t, loader.Reload(ctx, "boot"))
	host.Pump()

	got, ok, err := host.KV.Get(ctx, "fragloop:plugins:boot:stage")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", got)
	assert.True(t, loader.Registry().Has("boot"))
}

func TestLuaPlugin_ScheduledCallbacks(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "timer", `
function setup(plugin)
  fragloop.next_frame(function(tag) fragloop.kv_set("next", tag) end, "soon")
  fragloop.delay(2, function() fragloop.kv_set("delayed", "yes") end)
end
`)
	loader, host := newLoader(t, dir)
	ctx := context.Background()
	require.NoError(t, loader.Load(ctx, "timer"))

	host.Pump()
	got, ok, err := host.KV.Get(ctx, "fragloop:plugins:timer:next")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "soon", got)

	_, ok, _ = host.KV.Get(ctx, "fragloop:plugins:timer:delayed")
	assert.False(t, ok)

	host.Advance(2 * time.Second)
	host.Pump()
	_, ok, _ = host.KV.Get(ctx, "fragloop:plugins:timer:delayed")
	assert.True(t, ok)
}

func TestLuaPlugin_ClosedStateIgnoresCallbacks(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "late", `
function setup(plugin)
  fragloop.next_frame(function() fragloop.kv_set("ran", "1") end)
end
`)
	loader, host := newLoader(t, dir)
	ctx := context.Background()
	require.NoError(t, loader.Load(ctx, "late"))
	require.NoError(t, loader.Unload(ctx, "late"))

	host.Pump()
	_, ok, _ := host.KV.Get(ctx, "fragloop:plugins:late:ran")
	assert.False(t, ok)
	assert.True(t, host.Logs.Contains("scheduled lua function failed"))
}
