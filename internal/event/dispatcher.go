// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

// Package event dispatches host events to prioritized plugin hooks.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/fragloop/fragloop/pkg/errutil"
)

// Built-in event names.
const (
	// Unload fires before a plugin's hooks and commands are removed.
	// The payload is the plugin name.
	Unload = "unload"
	// Frame fires once per host tick before scheduled tasks run.
	Frame = "frame"
	// Console fires for every line typed on the server console.
	// The payload is the raw line.
	Console = "console"
)

// Error codes for dispatcher failures.
const (
	CodeInvalidHook  = "INVALID_HOOK"
	CodeHookNotFound = "HOOK_NOT_FOUND"
)

// Priority orders handlers for the same event. Lower runs first.
type Priority int

// Hook priorities.
const (
	PriorityHighest Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
	PriorityLowest
)

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	return p >= PriorityHighest && p <= PriorityLowest
}

// Result tells the dispatcher how to proceed after a handler returns.
type Result int

// Handler results.
const (
	// Continue runs the remaining handlers and lets the event through.
	Continue Result = iota
	// Stop skips the remaining handlers but lets the event through.
	Stop
	// StopEvent runs the remaining handlers but blocks the event.
	StopEvent
	// StopAll skips the remaining handlers and blocks the event.
	StopAll
)

// Handler is a hook callback. Payload shape depends on the event.
type Handler func(ctx context.Context, payload any) Result

type registration struct {
	id       ulid.ULID
	plugin   string
	handler  Handler
	priority Priority
	seq      uint64
}

// Dispatcher holds hooks per event name. It is safe for concurrent use,
// although handlers are expected to be invoked from the host context.
type Dispatcher struct {
	hooks  map[string][]registration
	seq    uint64
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		hooks:  make(map[string][]registration),
		logger: logger,
	}
}

// AddHook registers handler for name under the given id.
func (d *Dispatcher) AddHook(name, plugin string, id ulid.ULID, handler Handler, priority Priority) error {
	if name == "" {
		return oops.Code(CodeInvalidHook).With("plugin", plugin).Errorf("event name is required")
	}
	if handler == nil {
		return oops.Code(CodeInvalidHook).With("plugin", plugin).With("event", name).Errorf("handler is required")
	}
	if !priority.Valid() {
		return oops.Code(CodeInvalidHook).
			With("plugin", plugin).
			With("event", name).
			With("priority", int(priority)).
			Errorf("invalid priority %d", priority)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	regs := append(d.hooks[name], registration{
		id:       id,
		plugin:   plugin,
		handler:  handler,
		priority: priority,
		seq:      d.seq,
	})
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].priority != regs[j].priority {
			return regs[i].priority < regs[j].priority
		}
		return regs[i].seq < regs[j].seq
	})
	d.hooks[name] = regs
	return nil
}

// RemoveHook removes the hook registered under id for name.
func (d *Dispatcher) RemoveHook(name string, id ulid.ULID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs := d.hooks[name]
	for i, r := range regs {
		if r.id != id {
			continue
		}
		regs = append(regs[:i:i], regs[i+1:]...)
		if len(regs) == 0 {
			delete(d.hooks, name)
		} else {
			d.hooks[name] = regs
		}
		return nil
	}
	return oops.Code(CodeHookNotFound).
		With("event", name).
		With("id", id.String()).
		Errorf("hook not registered for event %s", name)
}

// Count returns the number of hooks registered for name.
func (d *Dispatcher) Count(name string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.hooks[name])
}

// Dispatch runs the hooks for name in priority order and reports whether
// the event may proceed. A panicking handler is logged and treated as Continue.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, payload any) bool {
	d.mu.RLock()
	regs := make([]registration, len(d.hooks[name]))
	copy(regs, d.hooks[name])
	d.mu.RUnlock()

	allow := true
	for _, r := range regs {
		switch d.call(ctx, name, r, payload) {
		case Stop:
			return allow
		case StopEvent:
			allow = false
		case StopAll:
			return false
		}
	}
	return allow
}

func (d *Dispatcher) call(ctx context.Context, name string, r registration, payload any) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			err := oops.In("event").
				With("event", name).
				With("plugin", r.plugin).
				Errorf("hook panicked: %v", rec)
			errutil.LogException(d.logger.With("plugin", r.plugin), "event handler failed", err)
			result = Continue
		}
	}()
	return r.handler(ctx, payload)
}

// String implements fmt.Stringer.
func (p Priority) String() string {
	switch p {
	case PriorityHighest:
		return "highest"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	case PriorityLowest:
		return "lowest"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority converts a priority name to a Priority.
func ParsePriority(s string) (Priority, error) {
	for p := PriorityHighest; p <= PriorityLowest; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, oops.Code(CodeInvalidHook).With("priority", s).Errorf("unknown priority %q", s)
}
