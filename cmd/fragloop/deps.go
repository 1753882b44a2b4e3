// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/faiface/mainthread"

	"github.com/fragloop/fragloop/internal/observability"
)

// ObservabilityServer is the part of observability.Server that serve uses.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
	SetStatus(fn observability.StatusReporter)
}

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// MainThread runs the host loop so that Call can reach the main OS
	// thread. Default: mainthread.Run
	MainThread func(run func())

	// Call runs f on the main OS thread and waits for it.
	// Default: mainthread.Call
	Call func(f func())

	// Console supplies console lines. Default: os.Stdin
	Console io.Reader

	// SignalContext returns a context cancelled on shutdown signals.
	// Default: signal.NotifyContext for SIGINT and SIGTERM
	SignalContext func(ctx context.Context) (context.Context, context.CancelFunc)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer
}

func (d *ServeDeps) setDefaults() {
	if d.MainThread == nil {
		d.MainThread = mainthread.Run
	}
	if d.Call == nil {
		d.Call = mainthread.Call
	}
	if d.Console == nil {
		d.Console = os.Stdin
	}
	if d.SignalContext == nil {
		d.SignalContext = func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		}
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, ready, logger)
		}
	}
}
