// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

//go:build integration

package plugin_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/fragloop/fragloop/internal/plugin"
	pluginlua "github.com/fragloop/fragloop/internal/plugin/lua"
	"github.com/fragloop/fragloop/internal/plugin/plugintest"
)

const counterV1 = `
function setup(plugin)
  plugin:add_command("count", function(caller)
    local n = tonumber(fragloop.kv_get("n") or "0") + 1
    fragloop.kv_set("n", tostring(n))
    caller:reply("v1 " .. n)
  end)
end
`

const counterV2 = `
function setup(plugin)
  plugin:add_command("count", function(caller)
    local n = tonumber(fragloop.kv_get("n") or "0") + 10
    fragloop.kv_set("n", tostring(n))
    caller:reply("v2 " .. n)
  end)
end
`

var _ = Describe("Lua plugin lifecycle", func() {
	var (
		dir     string
		host    *plugintest.Host
		loader  *plugin.Loader
		watcher *plugin.Watcher
		ctx     context.Context
	)

	write := func(name, src string) {
		Expect(os.WriteFile(filepath.Join(dir, name+pluginlua.Ext), []byte(src), 0o600)).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		host = plugintest.NewHost(GinkgoT())
		loader = plugin.NewLoader(host.Services, pluginlua.NewSource(dir, host.Services.Logger))
		watcher = plugin.NewWatcher(dir, loader, host.Services.Scheduler, host.Services.Logger, pluginlua.Ext, ".yaml")
		watcher.SetDebounce(20 * time.Millisecond)
		Expect(watcher.Start(ctx)).To(Succeed())
	})

	AfterEach(func() {
		Expect(watcher.Stop()).To(Succeed())
	})

	It("keeps plugin data across a hot reload", func() {
		write("counter", counterV1)
		Expect(loader.LoadPreset(ctx, []string{"count*"}, dir)).To(Succeed())
		Expect(host.Console(GinkgoT(), "count")).To(Equal("v1 1\n"))

		write("counter", counterV2)
		Eventually(func() string {
			host.Pump()
			return host.Console(GinkgoT(), "count")
		}, 5*time.Second, 50*time.Millisecond).Should(HavePrefix("v2 "))
		Expect(loader.Registry().Len()).To(Equal(1))
	})

	It("keeps the running instance when the new file does not compile", func() {
		write("counter", counterV1)
		Expect(loader.Load(ctx, "counter")).To(Succeed())

		write("counter", "function setup(")
		Eventually(func() bool {
			host.Pump()
			return host.Logs.Contains("hot reload failed")
		}, 5*time.Second, 50*time.Millisecond).Should(BeTrue())

		Expect(loader.Registry().Has("counter")).To(BeTrue())
		Expect(host.Console(GinkgoT(), "count")).To(HavePrefix("v1 "))
	})

	It("ignores changes to plugins that are not loaded", func() {
		write("counter", counterV1)
		Consistently(func() int {
			host.Pump()
			return loader.Registry().Len()
		}, 300*time.Millisecond, 50*time.Millisecond).Should(BeZero())
		Expect(loader.Cache().Has("counter")).To(BeFalse())
	})
})
