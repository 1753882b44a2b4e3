// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

// Package lua loads plugins written in Lua. Each plugin file is compiled once
// into a module; every instance runs in its own sandboxed state.
package lua

import (
	"context"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

type library struct {
	name string
	open lua.LGFunction
}

// Sandbox creates the Lua states plugins run in. States get the base,
// table, string and math libraries and a clock-only os table. Nothing in
// a state can touch files, the environment or other processes.
type Sandbox struct {
	libraries []library
	callStack int
}

// SandboxOption configures a Sandbox.
type SandboxOption func(*Sandbox)

// WithCallStackSize bounds Lua call depth.
func WithCallStackSize(n int) SandboxOption {
	return func(s *Sandbox) { s.callStack = n }
}

// NewSandbox creates a sandbox.
func NewSandbox(opts ...SandboxOption) *Sandbox {
	s := &Sandbox{
		libraries: []library{
			{lua.BaseLibName, lua.OpenBase},
			{lua.TabLibName, lua.OpenTable},
			{lua.StringLibName, lua.OpenString},
			{lua.MathLibName, lua.OpenMath},
			{lua.OsLibName, lua.OpenOs},
		},
		callStack: lua.CallStackSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// blockedGlobals compile chunks at runtime or read files.
var blockedGlobals = []string{"dofile", "loadfile", "loadstring", "load", "module", "require"}

// clockFunctions are the os functions a state keeps.
var clockFunctions = map[string]bool{"time": true, "clock": true, "date": true, "difftime": true}

// NewState creates a state bound to ctx. print writes to logger.
func (s *Sandbox) NewState(ctx context.Context, logger *slog.Logger) (*lua.LState, error) {
	if logger == nil {
		logger = slog.Default()
	}
	L := lua.NewState(lua.Options{
		SkipOpenLibs:  true,
		CallStackSize: s.callStack,
	})
	L.SetContext(ctx)

	for _, lib := range s.libraries {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, oops.In("lua").With("library", lib.name).Wrapf(err, "failed to open library %s", lib.name)
		}
	}

	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	if os, ok := L.GetGlobal(lua.OsLibName).(*lua.LTable); ok {
		var drop []lua.LValue
		os.ForEach(func(k, _ lua.LValue) {
			if !clockFunctions[k.String()] {
				drop = append(drop, k)
			}
		})
		for _, k := range drop {
			os.RawSet(k, lua.LNil)
		}
	}
	L.SetGlobal("print", L.NewFunction(printTo(logger)))

	return L, nil
}

func printTo(logger *slog.Logger) lua.LGFunction {
	return func(L *lua.LState) int {
		parts := make([]string, L.GetTop())
		for i := range parts {
			parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
		}
		logger.Info(strings.Join(parts, "\t"))
		return 0
	}
}
