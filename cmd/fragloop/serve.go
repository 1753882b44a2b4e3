// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/fragloop/fragloop/internal/config"
	"github.com/fragloop/fragloop/internal/host"
	"github.com/fragloop/fragloop/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return newServeCmd(nil)
}

func newServeCmd(deps *ServeDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the plugin host",
		Long: `Run the plugin host. The host ticks at qlx_tickRate frames per second on
the main OS thread, loads the preset plugins on the first frame and reads
console commands from standard input.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, deps)
		},
	}

	flags := cmd.Flags()
	flags.String("plugins", "plugin_manager", "comma separated plugins to load at startup (globs allowed)")
	flags.String("plugins-path", "plugins", "directory holding plugin modules")
	flags.String("database", "bolt", "key-value backend: bolt, postgres or memory")
	flags.String("command-prefix", "!", "chat command prefix")
	flags.String("owner", "-1", "owner id")
	flags.String("bolt-path", "", "bolt database file (default: XDG_DATA_HOME/fragloop/fragloop.db)")
	flags.String("postgres-url", "", "postgres connection URL")
	flags.Int("tick-rate", 40, "frames per second, clamped to 1-1000")
	flags.Bool("hot-reload", false, "reload plugins when their files change")
	flags.String("log-format", "json", "log format (json or text)")
	flags.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")

	return cmd
}

// runServeWithDeps runs the host until a shutdown signal or ctx ends.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	deps.setDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := config.NewStore()
	if err := config.Load(cfg, resolveConfigPath(), cmd.Flags()); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	config.InitializeDefaults(cfg)

	format, _ := cfg.Get(config.CvarLogFormat)
	logger := logging.SetDefault(logging.Options{
		Service: "fragloop",
		Version: version,
		Format:  format,
		Level:   "info",
		Writer:  cmd.ErrOrStderr(),
	})

	rate, err := cfg.GetInt(config.CvarTickRate)
	if err != nil {
		return fmt.Errorf("invalid tick rate: %w", err)
	}

	ctx, cancel := deps.SignalContext(ctx)
	defer cancel()

	var rt *host.Runtime
	var obsServer ObservabilityServer
	var observe func(time.Duration)
	if addr, _ := cfg.Get(config.CvarMetricsAddr); addr != "" {
		obsServer = deps.ObservabilityServerFactory(addr, func() bool { return rt.Ready() }, logger)
		observe = obsServer.Metrics().ObserveFrame
	}

	rt, err = host.New(host.Options{
		Config:        cfg,
		Logger:        logger,
		FrameObserver: observe,
	})
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}

	if obsServer != nil {
		obsServer.SetStatus(func() any { return rt.Status() })
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability", logger)
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer stopCancel()
			if err := obsServer.Stop(stopCtx); err != nil {
				logger.Warn("error stopping observability server", "error", err)
			}
		}()
	}

	rt.Initialize()
	go readConsole(deps.Console, rt, cmd.OutOrStdout())

	cmd.Println("fragloop host started")
	logger.Info("host ticking", "tick_rate", rate)

	var loopErr error
	deps.MainThread(func() {
		loopErr = tickLoop(ctx, rt, time.Second/time.Duration(rate), deps.Call)
	})
	if loopErr != nil {
		return fmt.Errorf("shutdown: %w", loopErr)
	}

	logger.Info("shutdown complete")
	return nil
}

// tickLoop runs frames on the main thread until ctx ends, then closes the
// runtime on the main thread too.
func tickLoop(ctx context.Context, rt *host.Runtime, interval time.Duration, call func(func())) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down...")
			closeCtx, closeCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer closeCancel()
			var err error
			call(func() { err = rt.Close(closeCtx) })
			return err
		case <-ticker.C:
			call(func() { rt.Frame(ctx) })
		}
	}
}

// readConsole queues every console line for the next frame.
func readConsole(r io.Reader, rt *host.Runtime, out io.Writer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		rt.Scheduler().NextFrame(func(ctx context.Context) {
			rt.Console(ctx, line, out)
		})
	}
}

// monitorServerErrors cancels the host when a background server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			logger.Error("server failed, shutting down", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
