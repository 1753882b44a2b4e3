// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

// Package plugintest builds in-memory host services for plugin tests.
package plugintest

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fragloop/fragloop/internal/command"
	"github.com/fragloop/fragloop/internal/config"
	"github.com/fragloop/fragloop/internal/event"
	"github.com/fragloop/fragloop/internal/offload"
	"github.com/fragloop/fragloop/internal/plugin"
	"github.com/fragloop/fragloop/internal/plugin/capability"
	"github.com/fragloop/fragloop/internal/schedule"
	"github.com/fragloop/fragloop/internal/store"
)

// T is the part of testing.TB the helpers need. GinkgoT satisfies it too.
type T interface {
	Helper()
}

// Host bundles the services handed to plugins together with the fakes
// tests inspect.
type Host struct {
	Services plugin.Services
	KV       *store.Memory
	Logs     *LogBuffer
	Now      time.Time
	mu       sync.Mutex
}

// NewHost creates services backed by in-memory collaborators. The scheduler
// clock is controlled with Advance.
func NewHost(t T) *Host {
	t.Helper()
	h := &Host{
		KV:   store.NewMemory(),
		Logs: &LogBuffer{},
		Now:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(h.Logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cvars := config.NewStore()
	config.InitializeDefaults(cvars)

	h.Services = plugin.Services{
		Events: event.NewDispatcher(logger),
		Commands: command.NewRegistry(func() string {
			v, _ := cvars.Get("qlx_commandPrefix")
			return v
		}, logger),
		Config:       cvars,
		Scheduler:    schedule.New(schedule.WithClock(h.clock), schedule.WithLogger(logger)),
		Offload:      offload.NewGuard(logger),
		Capabilities: capability.NewEnforcer(),
		Database:     func() store.KV { return h.KV },
		Logger:       logger,
	}
	return h
}

func (h *Host) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Now
}

// Advance moves the scheduler clock forward by d.
func (h *Host) Advance(d time.Duration) {
	h.mu.Lock()
	h.Now = h.Now.Add(d)
	h.mu.Unlock()
}

// Pump runs one frame of the scheduler.
func (h *Host) Pump() int {
	return h.Services.Scheduler.Pump(context.Background())
}

// Console runs line as a console command and returns what was replied.
func (h *Host) Console(t T, line string) string {
	t.Helper()
	var out bytes.Buffer
	_, _ = h.Services.Commands.HandleConsole(context.Background(), command.NewConsoleCaller(&out), line)
	return out.String()
}

// LogBuffer is a goroutine-safe log sink.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything logged so far.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Contains reports whether s was logged.
func (b *LogBuffer) Contains(s string) bool {
	return strings.Contains(b.String(), s)
}
