// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

// Package offload runs plugin work on background goroutines.
//
// A goroutine started by a Guard carries a marker in its context. Code that
// is already offloaded runs further wrapped calls inline instead of spawning
// again, and host operations that must stay on the host context check
// Active to refuse being called from an offload unit.
package offload

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/pprof"
	"sync/atomic"

	"github.com/samber/oops"

	"github.com/fragloop/fragloop/pkg/errutil"
)

type unitKey struct{}

// Active reports whether ctx belongs to an offload unit.
func Active(ctx context.Context) bool {
	_, ok := ctx.Value(unitKey{}).(string)
	return ok
}

// UnitName returns the diagnostic name of the offload unit ctx belongs to,
// or "" outside one.
func UnitName(ctx context.Context) string {
	name, _ := ctx.Value(unitKey{}).(string) //nolint:errcheck // absent means not offloaded
	return name
}

// Guard spawns offload units. The counter used for unit names increases for
// the lifetime of the guard.
type Guard struct {
	counter atomic.Uint64
	spawned atomic.Uint64
	logger  *slog.Logger
}

// NewGuard creates a guard that logs unit failures to logger.
func NewGuard(logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{logger: logger}
}

type wrapOptions struct {
	force bool
}

// WrapOption configures a wrapped function.
type WrapOption func(*wrapOptions)

// WithForce makes the wrapped function spawn a new unit even when it is
// called from inside one.
func WithForce() WrapOption {
	return func(o *wrapOptions) {
		o.force = true
	}
}

// Wrap returns a function that runs fn on a new goroutine. The caller is
// not joined and does not observe fn's outcome. Called from an offload
// context the returned function runs fn inline unless WithForce was given.
func (g *Guard) Wrap(name string, fn func(ctx context.Context), opts ...WrapOption) func(ctx context.Context) {
	var o wrapOptions
	for _, opt := range opts {
		opt(&o)
	}

	return func(ctx context.Context) {
		if Active(ctx) && !o.force {
			unitsTotal.WithLabelValues(modeInline).Inc()
			g.run(ctx, UnitName(ctx), fn)
			return
		}
		g.spawn(ctx, name, fn)
	}
}

// Go spawns fn as a new offload unit right away.
func (g *Guard) Go(ctx context.Context, name string, fn func(ctx context.Context)) {
	g.spawn(ctx, name, fn)
}

// Spawned returns how many goroutines the guard has started.
func (g *Guard) Spawned() uint64 {
	return g.spawned.Load()
}

func (g *Guard) spawn(ctx context.Context, name string, fn func(ctx context.Context)) {
	n := g.counter.Add(1)
	unit := fmt.Sprintf("%s-%d-offload", name, n)

	// The unit outlives the caller, so it must not inherit its cancellation.
	unitCtx := context.WithValue(context.WithoutCancel(ctx), unitKey{}, unit)

	g.spawned.Add(1)
	unitsTotal.WithLabelValues(modeSpawned).Inc()
	go pprof.Do(unitCtx, pprof.Labels("offload", unit), func(ctx context.Context) {
		g.run(ctx, unit, fn)
	})
}

func (g *Guard) run(ctx context.Context, unit string, fn func(ctx context.Context)) {
	err := oops.In("offload").With("unit", unit).Recover(func() {
		fn(ctx)
	})
	if err != nil {
		errutil.LogException(g.logger.With("unit", unit), "offload unit failed", err)
	}
}
