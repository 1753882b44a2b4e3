// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

//nolint:gocritic // captLocal: L is the idiomatic name for lua.LState
package hostfunc

import (
	"context"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// pushError pushes nil followed by an error string and returns 2.
func pushError(L *lua.LState, errMsg string) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(errMsg))
	return 2
}

// pushSuccess pushes value followed by nil and returns 2.
func pushSuccess(L *lua.LState, value lua.LValue) int {
	L.Push(value)
	L.Push(lua.LNil)
	return 2
}

// pushStatus pushes nil on success or the error message, and returns 1.
func pushStatus(L *lua.LState, err error) int {
	if err != nil {
		L.Push(lua.LString(err.Error()))
		return 1
	}
	L.Push(lua.LNil)
	return 1
}

// contextOf returns the context the current Lua call runs under.
func contextOf(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func upper(s string) string {
	return strings.ToUpper(s)
}
