// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package lua

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/fragloop/fragloop/internal/command"
	"github.com/fragloop/fragloop/internal/event"
	"github.com/fragloop/fragloop/internal/plugin"
	"github.com/fragloop/fragloop/internal/plugin/hostfunc"
	"github.com/fragloop/fragloop/pkg/errutil"
)

var errClosed = errors.New("lua state is closed")

// Plugin is a loaded Lua plugin instance. Every call into its state holds
// mu; gopher-lua states are not safe for concurrent use.
type Plugin struct {
	*plugin.Base

	mu     sync.Mutex
	state  *lua.LState
	closed bool
}

var (
	_ plugin.Plugin = (*Plugin)(nil)
	_ plugin.Closer = (*Plugin)(nil)
)

// Close releases the Lua state. Handlers still registered afterwards fail
// with an error instead of touching the state.
func (p *Plugin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.state.Close()
	return nil
}

func (p *Plugin) invoke(ctx context.Context, fn lua.LValue, nret int, args ...lua.LValue) ([]lua.LValue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callLocked(ctx, fn, nret, args...)
}

func (p *Plugin) callLocked(ctx context.Context, fn lua.LValue, nret int, args ...lua.LValue) ([]lua.LValue, error) {
	if p.closed {
		return nil, oops.In("lua").With("plugin", p.Name()).Wrap(errClosed)
	}
	L := p.state
	L.SetContext(ctx)
	if err := L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...); err != nil {
		return nil, oops.In("lua").With("plugin", p.Name()).Wrap(err)
	}
	rets := make([]lua.LValue, nret)
	for i := range nret {
		rets[i] = L.Get(i - nret)
	}
	L.Pop(nret)
	return rets, nil
}

// table builds the object passed to setup. Methods accept both
// plugin:method(...) and plugin.method(...) call styles.
func (p *Plugin) table() *lua.LTable {
	L := p.state
	self := L.NewTable()
	L.SetField(self, "name", lua.LString(p.Name()))
	L.SetField(self, "add_hook", L.NewFunction(p.method(self, p.luaAddHook)))
	L.SetField(self, "add_command", L.NewFunction(p.method(self, p.luaAddCommand)))
	return self
}

func (p *Plugin) method(self *lua.LTable, fn func(L *lua.LState, base int) int) lua.LGFunction {
	return func(L *lua.LState) int {
		base := 1
		if L.Get(1) == self {
			base = 2
		}
		return fn(L, base)
	}
}

// add_hook(event, fn [, priority]) -> nil, or raises
func (p *Plugin) luaAddHook(L *lua.LState, base int) int {
	name := L.CheckString(base)
	fn := L.CheckFunction(base + 1)
	priority, err := event.ParsePriority(L.OptString(base+2, event.PriorityNormal.String()))
	if err != nil {
		L.ArgError(base+2, err.Error())
		return 0
	}
	if _, err := p.AddHook(name, p.hookHandler(fn), priority); err != nil {
		L.RaiseError("add_hook %s: %s", name, err.Error())
	}
	return 0
}

// add_command(names, fn [, {permission=, usage=, priority=}]) -> nil, or raises
func (p *Plugin) luaAddCommand(L *lua.LState, base int) int {
	names := hostfunc.Strings(L.CheckAny(base))
	fn := L.CheckFunction(base + 1)
	opts := L.OptTable(base+2, L.NewTable())

	priority := event.PriorityNormal
	if v := L.GetField(opts, "priority"); v != lua.LNil {
		var err error
		if priority, err = event.ParsePriority(lua.LVAsString(v)); err != nil {
			L.ArgError(base+2, err.Error())
			return 0
		}
	}

	cmd := plugin.Command{
		Names:      names,
		Handler:    p.commandHandler(fn),
		Permission: int(lua.LVAsNumber(L.GetField(opts, "permission"))),
		Usage:      lua.LVAsString(L.GetField(opts, "usage")),
		Priority:   priority,
	}
	if _, err := p.AddCommand(cmd); err != nil {
		L.RaiseError("add_command: %s", err.Error())
	}
	return 0
}

func (p *Plugin) hookHandler(fn *lua.LFunction) event.Handler {
	return func(ctx context.Context, payload any) event.Result {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			return event.Continue
		}
		rets, err := p.callLocked(ctx, fn, 1, hostfunc.ToLua(p.state, payload))
		if err != nil {
			errutil.LogException(p.Logger(), "lua hook failed", err)
			return event.Continue
		}
		return toResult(rets[0])
	}
}

func (p *Plugin) commandHandler(fn *lua.LFunction) command.Handler {
	return func(ctx context.Context, inv *command.Invocation) (event.Result, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			return event.Continue, oops.In("lua").With("plugin", p.Name()).Wrap(errClosed)
		}
		rets, err := p.callLocked(ctx, fn, 1, p.callerTable(ctx, inv.Caller), hostfunc.ToLua(p.state, inv.Args))
		if err != nil {
			return event.Continue, err
		}
		if n, ok := rets[0].(lua.LNumber); ok && int(n) == hostfunc.RetUsage {
			return event.Continue, command.ErrUsage()
		}
		return toResult(rets[0]), nil
	}
}

// callerTable exposes the command caller as {name, permission, reply(msg)}.
func (p *Plugin) callerTable(ctx context.Context, caller command.Caller) *lua.LTable {
	L := p.state
	t := L.NewTable()
	L.SetField(t, "name", lua.LString(caller.Name()))
	L.SetField(t, "permission", lua.LNumber(caller.Permission()))
	L.SetField(t, "reply", L.NewFunction(func(L *lua.LState) int {
		idx := 1
		if L.Get(1) == t {
			idx = 2
		}
		caller.Reply(ctx, L.CheckString(idx))
		return 0
	}))
	return t
}

func toResult(v lua.LValue) event.Result {
	n, ok := v.(lua.LNumber)
	if !ok {
		return event.Continue
	}
	switch int(n) {
	case hostfunc.RetStop:
		return event.Stop
	case hostfunc.RetStopEvent:
		return event.StopEvent
	case hostfunc.RetStopAll:
		return event.StopAll
	default:
		return event.Continue
	}
}
