// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

//nolint:gocritic // captLocal: L is the idiomatic name for lua.LState
package hostfunc

import (
	lua "github.com/yuin/gopher-lua"
)

// kv_get(key) -> value|nil, err
func (f *Functions) kvGet(L *lua.LState) int {
	key := L.CheckString(1)

	db, err := f.base.DB()
	if err != nil {
		return pushError(L, err.Error())
	}
	value, ok, err := db.Get(contextOf(L), key)
	if err != nil {
		return pushError(L, err.Error())
	}
	if !ok {
		return pushSuccess(L, lua.LNil)
	}
	return pushSuccess(L, lua.LString(value))
}

// kv_keys(prefix) -> {keys}, err
func (f *Functions) kvKeys(L *lua.LState) int {
	prefix := L.OptString(1, "")

	db, err := f.base.DB()
	if err != nil {
		return pushError(L, err.Error())
	}
	keys, err := db.Keys(contextOf(L), prefix)
	if err != nil {
		return pushError(L, err.Error())
	}
	return pushSuccess(L, stringsToTable(L, keys))
}

// kv_set(key, value) -> err|nil
func (f *Functions) kvSet(L *lua.LState) int {
	key := L.CheckString(1)
	value := L.CheckString(2)

	db, err := f.base.DB()
	if err != nil {
		return pushStatus(L, err)
	}
	return pushStatus(L, db.Set(contextOf(L), key, value))
}

// kv_delete(key) -> err|nil
func (f *Functions) kvDelete(L *lua.LState) int {
	key := L.CheckString(1)

	db, err := f.base.DB()
	if err != nil {
		return pushStatus(L, err)
	}
	return pushStatus(L, db.Delete(contextOf(L), key))
}
