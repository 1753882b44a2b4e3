// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package command

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fragloop/fragloop/internal/event"
	"github.com/fragloop/fragloop/pkg/errutil"
)

type registered struct {
	entry Entry
	seq   uint64
}

// Registry manages command registration and dispatch.
// It is thread-safe for concurrent access.
type Registry struct {
	entries []registered
	seq     uint64
	prefix  func() string
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewRegistry creates a command registry. prefix is consulted on every
// prefixed dispatch so a changed prefix cvar takes effect immediately.
func NewRegistry(prefix func() string, logger *slog.Logger) *Registry {
	if prefix == nil {
		prefix = func() string { return "!" }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		prefix: prefix,
		logger: logger,
	}
}

// Add registers a command. Several entries may share a name; they run in
// priority order, then registration order.
func (r *Registry) Add(entry Entry) error {
	if len(entry.Names) == 0 {
		return ErrInvalidCommand(entry.Plugin, "at least one name is required")
	}
	for _, n := range entry.Names {
		if strings.TrimSpace(n) == "" || strings.ContainsAny(n, " \t") {
			return ErrInvalidCommand(entry.Plugin, fmt.Sprintf("bad command name %q", n))
		}
	}
	if entry.Handler == nil {
		return ErrInvalidCommand(entry.Plugin, "handler is required")
	}
	if !entry.Priority.Valid() {
		return ErrInvalidCommand(entry.Plugin, fmt.Sprintf("invalid priority %d", entry.Priority))
	}

	names := make([]string, len(entry.Names))
	for i, n := range entry.Names {
		names[i] = strings.ToLower(n)
	}
	entry.Names = names

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.entries = append(r.entries, registered{entry: entry, seq: r.seq})
	sort.SliceStable(r.entries, func(i, j int) bool {
		if r.entries[i].entry.Priority != r.entries[j].entry.Priority {
			return r.entries[i].entry.Priority < r.entries[j].entry.Priority
		}
		return r.entries[i].seq < r.entries[j].seq
	})
	return nil
}

// Remove unregisters the entry with the given id that answers to name.
func (r *Registry) Remove(name string, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, reg := range r.entries {
		if reg.entry.ID == id && reg.entry.Matches(name) {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return nil
		}
	}
	return ErrCommandNotFound(name)
}

// Lookup returns the entries answering to name in dispatch order.
func (r *Registry) Lookup(name string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entry
	for _, reg := range r.entries {
		if reg.entry.Matches(name) {
			out = append(out, reg.entry)
		}
	}
	return out
}

// All returns every registered entry in dispatch order.
// The returned slice is a copy and safe to modify.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, len(r.entries))
	for i, reg := range r.entries {
		out[i] = reg.entry
	}
	return out
}

// Prefix returns the current command prefix.
func (r *Registry) Prefix() string {
	return r.prefix()
}

// HandleChat dispatches a chat line. Lines without the command prefix are
// not commands and return false with no error.
func (r *Registry) HandleChat(ctx context.Context, caller Caller, msg string) (bool, error) {
	prefix := r.prefix()
	trimmed := strings.TrimSpace(msg)
	if prefix == "" || !strings.HasPrefix(trimmed, prefix) {
		return false, nil
	}
	return r.execute(ctx, caller, strings.TrimPrefix(trimmed, prefix))
}

// HandleConsole dispatches a console line. The prefix is optional there.
func (r *Registry) HandleConsole(ctx context.Context, caller Caller, line string) (bool, error) {
	trimmed := strings.TrimSpace(line)
	if prefix := r.prefix(); prefix != "" {
		trimmed = strings.TrimPrefix(trimmed, prefix)
	}
	return r.execute(ctx, caller, trimmed)
}

func (r *Registry) execute(ctx context.Context, caller Caller, input string) (bool, error) {
	line, err := ParseLine(input)
	if err != nil {
		return false, err
	}

	entries := r.Lookup(line.Name)
	if len(entries) == 0 {
		recordExecution(line.Name, "", StatusNotFound)
		return false, ErrUnknownCommand(line.Name)
	}

	inv := &Invocation{
		Caller: caller,
		Name:   line.Name,
		Args:   line.Args(),
		Raw:    input,
	}

	ran := false
	denied := 0
	for _, entry := range entries {
		if caller.Permission() < entry.Permission {
			denied = max(denied, entry.Permission)
			continue
		}
		ran = true
		if r.run(ctx, entry, inv) {
			break
		}
	}

	if !ran {
		recordExecution(line.Name, entries[0].Plugin, StatusPermissionDenied)
		caller.Reply(ctx, fmt.Sprintf("You do not have permission to use that command (level %d required).", denied))
		return true, ErrPermissionDenied(line.Name, denied)
	}
	return true, nil
}

// run invokes one entry and reports whether dispatch should stop.
func (r *Registry) run(ctx context.Context, entry Entry, inv *Invocation) (stop bool) {
	logger := r.logger
	if entry.Plugin != "" {
		logger = logger.With("plugin", entry.Plugin)
	}

	start := time.Now()
	defer func() {
		recordDuration(inv.Name, entry.Plugin, time.Since(start))
		if rec := recover(); rec != nil {
			recordExecution(inv.Name, entry.Plugin, StatusError)
			logger.Error("command handler panicked",
				"command", inv.Name,
				"panic", fmt.Sprint(rec))
			stop = true
		}
	}()

	result, err := entry.Handler(ctx, inv)
	switch {
	case err == nil:
		recordExecution(inv.Name, entry.Plugin, StatusSuccess)
	case HasCode(err, CodeUsage):
		recordExecution(inv.Name, entry.Plugin, StatusUsage)
		inv.Caller.Reply(ctx, fmt.Sprintf("Usage: %s%s %s", r.prefix(), inv.Name, entry.Usage))
		return true
	default:
		recordExecution(inv.Name, entry.Plugin, StatusError)
		errutil.LogError(logger, "command handler failed", err)
		inv.Caller.Reply(ctx, err.Error())
		return true
	}
	return result == event.Stop || result == event.StopAll
}
