// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

//nolint:gocritic // captLocal: L is the idiomatic name for lua.LState
package hostfunc

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/fragloop/fragloop/internal/infostring"
)

// get_cvar(name) -> value|nil
func (f *Functions) getCvar(L *lua.LState) int {
	name := L.CheckString(1)
	v, ok := f.base.Config().Get(name)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(v))
	return 1
}

// set_cvar(name, value) -> err|nil
func (f *Functions) setCvar(L *lua.LState) int {
	name := L.CheckString(1)
	value := L.CheckString(2)
	return pushStatus(L, f.base.Config().Set(name, value))
}

// set_cvar_once(name, value) -> bool
func (f *Functions) setCvarOnce(L *lua.LState) int {
	name := L.CheckString(1)
	value := L.CheckString(2)
	L.Push(lua.LBool(f.base.Config().SetOnce(name, value)))
	return 1
}

// set_cvar_limit_once(name, value, min, max) -> bool, err
func (f *Functions) setCvarLimitOnce(L *lua.LState) int {
	name := L.CheckString(1)
	value := L.CheckString(2)
	minimum := L.CheckInt(3)
	maximum := L.CheckInt(4)

	set, err := f.base.Config().SetLimitOnce(name, value, minimum, maximum)
	if err != nil {
		return pushError(L, err.Error())
	}
	return pushSuccess(L, lua.LBool(set))
}

// parse_variables(s) -> {key = value}, err
func parseVariables(L *lua.LState) int {
	s := L.CheckString(1)
	vars, err := infostring.Decode(s)
	if err != nil {
		return pushError(L, err.Error())
	}
	t := L.NewTable()
	for k, v := range vars {
		t.RawSetString(k, lua.LString(v))
	}
	return pushSuccess(L, t)
}
