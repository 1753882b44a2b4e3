// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

// Package hostfunc exposes the host to Lua plugins as the global fragloop
// table.
//
// Functions touching plugin data or cvars are gated by the capabilities
// granted in the plugin's manifest.
package hostfunc

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"
	lua "github.com/yuin/gopher-lua"

	"github.com/fragloop/fragloop/internal/event"
	"github.com/fragloop/fragloop/internal/plugin"
)

// GlobalName is the Lua global the host table is installed under.
const GlobalName = "fragloop"

// Return codes handlers may return to steer event and command dispatch.
const (
	RetNone      = 0
	RetStop      = 1
	RetStopEvent = 2
	RetStopAll   = 3
	RetUsage     = -1
)

// Invoker calls fn in the plugin's Lua state under the state's lock and
// returns its results.
type Invoker func(ctx context.Context, fn lua.LValue, nret int, args ...lua.LValue) ([]lua.LValue, error)

// Functions provides host functions to one plugin's Lua state.
type Functions struct {
	base   *plugin.Base
	invoke Invoker
}

// New creates host functions for the plugin behind base. invoke is used for
// Lua callbacks the host runs later, such as scheduled functions.
// Panics if base or invoke is nil.
func New(base *plugin.Base, invoke Invoker) *Functions {
	if base == nil || invoke == nil {
		panic("hostfunc.New: base and invoke are required")
	}
	return &Functions{base: base, invoke: invoke}
}

// Register installs the fragloop table in L.
func (f *Functions) Register(L *lua.LState) { //nolint:gocritic // L is the idiomatic name for lua.LState
	mod := L.NewTable()

	L.SetField(mod, "log", L.NewFunction(f.logFn))
	L.SetField(mod, "new_request_id", L.NewFunction(newRequestID))
	L.SetField(mod, "plugin_name", lua.LString(f.base.Name()))

	L.SetField(mod, "kv_get", L.NewFunction(f.require(plugin.CapKVRead, f.kvGet)))
	L.SetField(mod, "kv_keys", L.NewFunction(f.require(plugin.CapKVRead, f.kvKeys)))
	L.SetField(mod, "kv_set", L.NewFunction(f.require(plugin.CapKVWrite, f.kvSet)))
	L.SetField(mod, "kv_delete", L.NewFunction(f.require(plugin.CapKVWrite, f.kvDelete)))

	L.SetField(mod, "get_cvar", L.NewFunction(f.require(plugin.CapCvarRead, f.getCvar)))
	L.SetField(mod, "set_cvar", L.NewFunction(f.require(plugin.CapCvarWrite, f.setCvar)))
	L.SetField(mod, "set_cvar_once", L.NewFunction(f.require(plugin.CapCvarWrite, f.setCvarOnce)))
	L.SetField(mod, "set_cvar_limit_once", L.NewFunction(f.require(plugin.CapCvarWrite, f.setCvarLimitOnce)))

	L.SetField(mod, "parse_variables", L.NewFunction(parseVariables))

	L.SetField(mod, "next_frame", L.NewFunction(f.require(plugin.CapSchedule, f.nextFrame)))
	L.SetField(mod, "delay", L.NewFunction(f.require(plugin.CapSchedule, f.delay)))

	for name, v := range map[string]int{
		"RET_NONE":       RetNone,
		"RET_STOP":       RetStop,
		"RET_STOP_EVENT": RetStopEvent,
		"RET_STOP_ALL":   RetStopAll,
		"RET_USAGE":      RetUsage,
	} {
		L.SetField(mod, name, lua.LNumber(v))
	}
	for _, p := range []event.Priority{
		event.PriorityHighest, event.PriorityHigh, event.PriorityNormal, event.PriorityLow, event.PriorityLowest,
	} {
		L.SetField(mod, "PRI_"+upper(p.String()), lua.LNumber(p))
	}

	L.SetGlobal(GlobalName, mod)
}

func (f *Functions) require(capName string, fn lua.LGFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		if err := f.base.Require(capName); err != nil {
			L.RaiseError("capability denied: %s requires %s", f.base.Name(), capName)
			return 0
		}
		return fn(L)
	}
}

func (f *Functions) logFn(L *lua.LState) int {
	level := L.CheckString(1)
	message := L.CheckString(2)

	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	f.base.Logger().Log(contextOf(L), lvl, message)
	return 0
}

func newRequestID(L *lua.LState) int {
	L.Push(lua.LString(ulid.Make().String()))
	return 1
}
