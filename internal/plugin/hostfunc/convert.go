// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package hostfunc

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/fragloop/fragloop/internal/infostring"
)

// ToLua converts a Go value into a Lua value in ls. Unknown types become
// their fmt representation.
func ToLua(ls *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return val
	case string:
		return lua.LString(val)
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case []string:
		return stringsToTable(ls, val)
	case []any:
		t := ls.NewTable()
		for _, item := range val {
			t.Append(ToLua(ls, item))
		}
		return t
	case map[string]string:
		t := ls.NewTable()
		for k, item := range val {
			t.RawSetString(k, lua.LString(item))
		}
		return t
	case map[string]any:
		t := ls.NewTable()
		for k, item := range val {
			t.RawSetString(k, ToLua(ls, item))
		}
		return t
	case *infostring.Vars:
		t := ls.NewTable()
		for k, item := range val.All() {
			t.RawSetString(k, lua.LString(item))
		}
		return t
	case fmt.Stringer:
		return lua.LString(val.String())
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

// ToGo converts a Lua value to a Go value. Tables with only array keys
// become []any, other tables map[string]any.
func ToGo(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case lua.LBool:
		return bool(val)
	case *lua.LTable:
		if isArray(val) {
			return tableToSlice(val)
		}
		return tableToMap(val)
	case *lua.LNilType:
		return nil
	default:
		return v.String()
	}
}

// Strings converts a Lua string or array of strings into a Go slice.
func Strings(v lua.LValue) []string {
	switch val := v.(type) {
	case lua.LString:
		return []string{string(val)}
	case *lua.LTable:
		var out []string
		for i := 1; i <= val.Len(); i++ {
			out = append(out, val.RawGetInt(i).String())
		}
		return out
	default:
		return nil
	}
}

func stringsToTable(ls *lua.LState, items []string) *lua.LTable {
	t := ls.CreateTable(len(items), 0)
	for _, s := range items {
		t.Append(lua.LString(s))
	}
	return t
}

func isArray(tbl *lua.LTable) bool {
	if tbl.MaxN() > 0 {
		return true
	}
	empty := true
	tbl.ForEach(func(_, _ lua.LValue) {
		empty = false
	})
	return empty
}

func tableToSlice(tbl *lua.LTable) []any {
	out := make([]any, 0, tbl.MaxN())
	for i := 1; i <= tbl.MaxN(); i++ {
		out = append(out, ToGo(tbl.RawGetInt(i)))
	}
	return out
}

func tableToMap(tbl *lua.LTable) map[string]any {
	out := make(map[string]any)
	tbl.ForEach(func(k, v lua.LValue) {
		out[k.String()] = ToGo(v)
	})
	return out
}
