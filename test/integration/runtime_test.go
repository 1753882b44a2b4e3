// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/fragloop/fragloop/internal/command"
	"github.com/fragloop/fragloop/internal/config"
	"github.com/fragloop/fragloop/internal/event"
	"github.com/fragloop/fragloop/internal/host"
	"github.com/fragloop/fragloop/internal/plugin"
	"github.com/fragloop/fragloop/internal/plugin/native"
	"github.com/fragloop/fragloop/internal/plugin/plugintest"
)

// shippedPlugins is the repository's plugins directory.
var shippedPlugins = filepath.Join("..", "..", "plugins")

func copyPlugin(dst, name string) {
	for _, ext := range []string{".lua", ".yaml"} {
		data, err := os.ReadFile(filepath.Join(shippedPlugins, name+ext))
		Expect(err).NotTo(HaveOccurred())
		Expect(os.WriteFile(filepath.Join(dst, name+ext), data, 0o600)).To(Succeed())
	}
}

type hostEnv struct {
	rt   *host.Runtime
	logs *plugintest.LogBuffer
}

func startRuntime(cvars map[string]string, natives ...native.Definition) *hostEnv {
	store := config.NewStore()
	for k, v := range cvars {
		Expect(store.Set(k, v)).To(Succeed())
	}
	logs := &plugintest.LogBuffer{}
	rt, err := host.New(host.Options{
		Config:  store,
		Logger:  slog.New(slog.NewTextHandler(logs, nil)),
		Natives: natives,
	})
	Expect(err).NotTo(HaveOccurred())

	rt.Initialize()
	rt.Frame(context.Background())
	Expect(rt.Ready()).To(BeTrue(), logs.String())
	return &hostEnv{rt: rt, logs: logs}
}

func (e *hostEnv) console(line string) string {
	var out bytes.Buffer
	e.rt.Console(context.Background(), line, &out)
	return out.String()
}

func (e *hostEnv) close() {
	Expect(e.rt.Close(context.Background())).To(Succeed())
}

var _ = Describe("Shipped motd plugin", func() {
	var (
		dir   string
		cvars map[string]string
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		copyPlugin(dir, "motd")
		cvars = map[string]string{
			config.CvarPluginsPath: dir,
			config.CvarPlugins:     "plugin_manager, motd",
			config.CvarDatabase:    "bolt",
			config.CvarBoltPath:    filepath.Join(GinkgoT().TempDir(), "fragloop.db"),
		}
	})

	It("keeps its message across restarts in the bolt database", func() {
		env := startRuntime(cvars)
		Expect(env.console("motd")).To(ContainSubstring("Welcome!"))
		Expect(env.console("setmotd frag night at nine")).To(Equal("Message of the day updated.\n"))
		Expect(env.console("motd")).To(Equal("frag night at nine\n"))
		env.close()

		env = startRuntime(cvars)
		defer env.close()
		Expect(env.console("motd")).To(Equal("frag night at nine\n"))
	})

	It("disappears when unloaded and comes back on load", func() {
		env := startRuntime(cvars)
		defer env.close()

		Expect(env.console("unload motd")).To(Equal("Unloaded motd.\n"))
		Expect(env.console("motd")).To(Equal("unknown command: motd\n"))
		Expect(env.console("plugins")).To(ContainSubstring("Available: motd"))

		Expect(env.console("load motd")).To(Equal("Loaded motd.\n"))
		Expect(env.console("motd")).To(ContainSubstring("Welcome!"))
	})

	It("shows usage when setmotd has no message", func() {
		env := startRuntime(cvars)
		defer env.close()

		Expect(env.console("setmotd")).To(ContainSubstring("Usage: !setmotd <message>"))
	})
})

// escalator loads plugins from a background unit: the direct attempt fails
// and the retry through the scheduler succeeds.
func escalator(rt **host.Runtime, direct chan<- error) native.Definition {
	return native.Definition{
		Name: "escalator",
		Factory: func(_ context.Context, base *plugin.Base) (plugin.Plugin, error) {
			_, err := base.AddCommand(plugin.Command{
				Names: []string{"bgload"},
				Handler: func(ctx context.Context, inv *command.Invocation) (event.Result, error) {
					name := inv.Args[1]
					base.Go(ctx, func(ctx context.Context) {
						direct <- (*rt).Loader().Load(ctx, name)
						base.NextFrame(func(ctx context.Context) {
							if err := (*rt).Loader().Load(ctx, name); err != nil {
								base.Logger().Error("deferred load failed", "error", err)
							}
						})
					})
					return event.Continue, nil
				},
			})
			return base, err
		},
	}
}

var _ = Describe("Loading from a background unit", func() {
	It("fails fast off the host context and succeeds through the scheduler", func() {
		dir := GinkgoT().TempDir()
		copyPlugin(dir, "motd")

		var rt *host.Runtime
		direct := make(chan error, 1)
		env := startRuntime(map[string]string{
			config.CvarPluginsPath: dir,
			config.CvarPlugins:     "plugin_manager, escalator",
			config.CvarDatabase:    "memory",
		}, escalator(&rt, direct))
		rt = env.rt
		defer env.close()

		Expect(env.console("bgload motd")).To(BeEmpty())

		var err error
		Eventually(direct).Should(Receive(&err))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("escalator-1-offload"))
		Expect(rt.Loader().Registry().Has("motd")).To(BeFalse())

		Eventually(func() bool {
			rt.Frame(context.Background())
			return rt.Loader().Registry().Has("motd")
		}).Should(BeTrue())
	})
})
