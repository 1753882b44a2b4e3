// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package pluginmanager_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragloop/fragloop/internal/builtin/pluginmanager"
	"github.com/fragloop/fragloop/internal/command"
	"github.com/fragloop/fragloop/internal/plugin"
	pluginlua "github.com/fragloop/fragloop/internal/plugin/lua"
	"github.com/fragloop/fragloop/internal/plugin/native"
	"github.com/fragloop/fragloop/internal/plugin/plugintest"
)

type fixture struct {
	host   *plugintest.Host
	loader *plugin.Loader
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "motd.lua"), []byte(`
function setup(plugin)
  plugin:add_command("motd", function(caller) caller:reply("welcome") end)
end
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.lua"), []byte(`error("nope")`), 0o600))

	host := plugintest.NewHost(t)
	natives := native.NewSource()
	loader := plugin.NewLoader(host.Services, natives, pluginlua.NewSource(dir, host.Services.Logger))
	require.NoError(t, natives.Register(pluginmanager.Definition(loader)))
	require.NoError(t, loader.Load(context.Background(), pluginmanager.Name))
	return &fixture{host: host, loader: loader}
}

func TestCommands(t *testing.T) {
	f := setup(t)

	assert.Equal(t, "Loaded: plugin_manager\nAvailable: broken, motd\n", f.host.Console(t, "plugins"))

	assert.Equal(t, "Loaded motd.\n", f.host.Console(t, "!load motd"))
	assert.Equal(t, "welcome\n", f.host.Console(t, "motd"))
	assert.Equal(t, "Reloaded motd.\n", f.host.Console(t, "reload MOTD"))
	assert.Equal(t, "Loaded: motd, plugin_manager\nAvailable: broken\n", f.host.Console(t, "plugins"))

	assert.Equal(t, "Unloaded motd.\n", f.host.Console(t, "unload motd"))
	assert.False(t, f.loader.Registry().Has("motd"))
}

func TestCommands_Failures(t *testing.T) {
	f := setup(t)

	assert.Contains(t, f.host.Console(t, "load broken"), "Could not load broken:")
	assert.Contains(t, f.host.Console(t, "load ghost"), "no such plugin exists: ghost")
	assert.Contains(t, f.host.Console(t, "unload motd"), "Could not unload motd:")
	assert.Equal(t, "Usage: !load <plugin>\n", f.host.Console(t, "load"))
}

type lowCaller struct{ replies []string }

func (c *lowCaller) Name() string    { return "player" }
func (c *lowCaller) Permission() int { return 0 }
func (c *lowCaller) Reply(_ context.Context, msg string) {
	c.replies = append(c.replies, msg)
}

func TestCommands_RequirePermission(t *testing.T) {
	f := setup(t)
	caller := &lowCaller{}

	handled, err := f.host.Services.Commands.HandleChat(context.Background(), caller, "!load motd")
	assert.True(t, handled)
	assert.True(t, command.HasCode(err, command.CodePermissionDenied))
	assert.False(t, f.loader.Registry().Has("motd"))
}

func TestUnloadSelf(t *testing.T) {
	f := setup(t)

	assert.Equal(t, "Unloaded plugin_manager.\n", f.host.Console(t, "unload plugin_manager"))
	assert.Empty(t, f.host.Services.Commands.Lookup("load"))
}
