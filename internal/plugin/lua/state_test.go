// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package lua_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	pluginlua "github.com/fragloop/fragloop/internal/plugin/lua"
	"github.com/fragloop/fragloop/internal/plugin/plugintest"
)

func newState(t *testing.T, opts ...pluginlua.SandboxOption) (*lua.LState, *plugintest.LogBuffer) {
	t.Helper()
	logs := &plugintest.LogBuffer{}
	L, err := pluginlua.NewSandbox(opts...).NewState(context.Background(), slog.New(slog.NewTextHandler(logs, nil)))
	require.NoError(t, err)
	t.Cleanup(L.Close)
	return L, logs
}

func TestNewState_Sandbox(t *testing.T) {
	L, _ := newState(t)

	for _, lib := range []string{"table", "string", "math", "os"} {
		assert.NotEqual(t, lua.LTNil, L.GetGlobal(lib).Type(), "library %s should be loaded", lib)
	}
	for _, lib := range []string{"io", "debug", "package"} {
		assert.Equal(t, lua.LTNil, L.GetGlobal(lib).Type(), "library %s should not be loaded", lib)
	}
	for _, fn := range []string{"dofile", "loadfile", "loadstring", "load", "require"} {
		assert.Equal(t, lua.LTNil, L.GetGlobal(fn).Type(), "%s should be blocked", fn)
	}
}

func TestNewState_OsKeepsOnlyClock(t *testing.T) {
	L, _ := newState(t)

	require.NoError(t, L.DoString(`ok = type(os.time()) == "number" and type(os.clock()) == "number"`))
	assert.Equal(t, lua.LTrue, L.GetGlobal("ok"))

	for _, fn := range []string{"execute", "exit", "getenv", "remove", "rename", "setenv", "tmpname"} {
		assert.Equal(t, lua.LNil, L.GetField(L.GetGlobal("os"), fn), "os.%s should be removed", fn)
	}
}

func TestNewState_PrintLogs(t *testing.T) {
	L, logs := newState(t)

	require.NoError(t, L.DoString(`print("round", 3, true)`))
	assert.True(t, logs.Contains("round\t3\ttrue") || logs.Contains(`"round\t3\ttrue"`), logs.String())
}

func TestNewState_RunsCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"arithmetic", `result = 1 + 1`, "2"},
		{"string", `result = string.upper("frag")`, "FRAG"},
		{"table", `local t = {3, 1, 2}; table.sort(t); result = table.concat(t, ",")`, "1,2,3"},
		{"math", `result = math.max(4, 9)`, "9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L, _ := newState(t)
			require.NoError(t, L.DoString(tt.code))
			assert.Equal(t, tt.want, L.GetGlobal("result").String())
		})
	}
}

func TestNewState_CallStackLimit(t *testing.T) {
	L, _ := newState(t, pluginlua.WithCallStackSize(16))
	assert.Error(t, L.DoString(`local function f(n) return 1 + f(n + 1) end; f(1)`))
}

func TestNewState_CancelledContextStopsExecution(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	L, err := pluginlua.NewSandbox().NewState(ctx, nil)
	require.NoError(t, err)
	defer L.Close()

	cancel()
	assert.Error(t, L.DoString(`while true do end`))
}
