// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package plugin

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/fragloop/fragloop/internal/command"
	"github.com/fragloop/fragloop/internal/config"
	"github.com/fragloop/fragloop/internal/event"
	"github.com/fragloop/fragloop/internal/logging"
	"github.com/fragloop/fragloop/internal/offload"
	"github.com/fragloop/fragloop/internal/plugin/capability"
	"github.com/fragloop/fragloop/internal/schedule"
	"github.com/fragloop/fragloop/internal/store"
)

// Capabilities a manifest can grant. Plugins without a manifest get all of them.
const (
	CapKVRead     = "kv.read"
	CapKVWrite    = "kv.write"
	CapCvarRead   = "cvar.read"
	CapCvarWrite  = "cvar.write"
	CapSchedule   = "schedule"
	CapOffload    = "offload"
	CapAllGranted = "**"
)

// Services are the host collaborators plugins reach through their Base.
type Services struct {
	Events       *event.Dispatcher
	Commands     *command.Registry
	Config       *config.Store
	Scheduler    *schedule.Scheduler
	Offload      *offload.Guard
	Capabilities *capability.Enforcer
	// Database returns the active key-value backend, or nil before one is
	// selected.
	Database func() store.KV
	Logger   *slog.Logger
}

// Base implements the plugin capability set. Plugin types embed a *Base and
// register their hooks and commands through it.
type Base struct {
	Ledger

	name   string
	svc    Services
	logger *slog.Logger
}

// NewBase creates the base for a plugin named name.
func NewBase(name string, svc Services) *Base {
	if svc.Logger == nil {
		svc.Logger = slog.Default()
	}
	return &Base{
		name:   name,
		svc:    svc,
		logger: logging.ForPlugin(svc.Logger, name),
	}
}

// Name returns the plugin name.
func (b *Base) Name() string { return b.name }

// Logger returns the plugin-scoped logger.
func (b *Base) Logger() *slog.Logger { return b.logger }

// Config returns the cvar store.
func (b *Base) Config() *config.Store { return b.svc.Config }

// Scheduler returns the frame scheduler.
func (b *Base) Scheduler() *schedule.Scheduler { return b.svc.Scheduler }

// Offload returns the offload guard.
func (b *Base) Offload() *offload.Guard { return b.svc.Offload }

// Can reports whether the plugin has been granted capability.
func (b *Base) Can(capability string) bool {
	if b.svc.Capabilities == nil || !b.svc.Capabilities.IsRegistered(b.name) {
		return true
	}
	return b.svc.Capabilities.Check(b.name, capability)
}

// Require returns an error unless the plugin has been granted capability.
func (b *Base) Require(capability string) error {
	if b.Can(capability) {
		return nil
	}
	return ErrCapabilityDenied(b.name, capability)
}

// DB returns the plugin's view of the database, confined to its own keys.
func (b *Base) DB() (store.KV, error) {
	var kv store.KV
	if b.svc.Database != nil {
		kv = b.svc.Database()
	}
	if kv == nil {
		return nil, oops.Code(CodeNoDatabase).
			In("plugin").
			With("plugin", b.name).
			Hint("the database is selected during late initialization").
			Errorf("no database configured")
	}
	return store.Namespace(kv, store.PluginPrefix(b.name)), nil
}

// AddHook registers handler for the named event.
func (b *Base) AddHook(name string, handler event.Handler, priority event.Priority) (Hook, error) {
	h := Hook{
		ID:       ulid.Make(),
		Event:    name,
		Handler:  handler,
		Priority: priority,
	}
	if err := b.svc.Events.AddHook(name, b.name, h.ID, handler, priority); err != nil {
		return Hook{}, err
	}
	b.recordHook(h)
	return h, nil
}

// AddCommand registers cmd. The ID and Plugin fields are filled in.
func (b *Base) AddCommand(cmd Command) (Command, error) {
	cmd.ID = ulid.Make()
	cmd.Plugin = b.name
	names := make([]string, len(cmd.Names))
	for i, n := range cmd.Names {
		names[i] = strings.ToLower(n)
	}
	cmd.Names = names
	if err := b.svc.Commands.Add(cmd); err != nil {
		return Command{}, err
	}
	b.recordCommand(cmd)
	return cmd, nil
}

// RemoveHook unregisters hook.
func (b *Base) RemoveHook(_ context.Context, hook Hook) error {
	if err := b.svc.Events.RemoveHook(hook.Event, hook.ID); err != nil {
		return err
	}
	b.forgetHook(hook.ID)
	return nil
}

// RemoveCommand unregisters cmd.
func (b *Base) RemoveCommand(_ context.Context, cmd Command) error {
	if err := b.svc.Commands.Remove(cmd.Name(), cmd.ID); err != nil {
		return err
	}
	b.forgetCommand(cmd.ID)
	return nil
}

// NextFrame runs fn on the next frame.
func (b *Base) NextFrame(fn schedule.Task) {
	b.svc.Scheduler.NextFrame(fn)
}

// Delay runs fn once d has elapsed.
func (b *Base) Delay(d time.Duration, fn schedule.Task) {
	b.svc.Scheduler.Delay(d, fn)
}

// Go runs fn as an offload unit named after the plugin.
func (b *Base) Go(ctx context.Context, fn func(ctx context.Context)) {
	b.svc.Offload.Wrap(b.name, fn)(ctx)
}

// rollback removes everything p registered, hooks first, through p's own
// removal methods. Every registration is attempted.
func rollback(ctx context.Context, p Plugin) error {
	var errs []error
	for _, h := range p.Hooks() {
		if err := p.RemoveHook(ctx, h); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range p.Commands() {
		if err := p.RemoveCommand(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
