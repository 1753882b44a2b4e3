// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

//nolint:gocritic // captLocal: L is the idiomatic name for lua.LState
package hostfunc

import (
	"context"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/fragloop/fragloop/pkg/errutil"
)

// next_frame(fn, ...) queues fn(...) for the next frame. Arguments are
// captured at call time.
func (f *Functions) nextFrame(L *lua.LState) int {
	fn := L.CheckFunction(1)
	args := restArgs(L, 2)
	f.base.NextFrame(f.callback(fn, args))
	return 0
}

// delay(seconds, fn, ...) queues fn(...) to run after seconds.
func (f *Functions) delay(L *lua.LState) int {
	seconds := float64(L.CheckNumber(1))
	fn := L.CheckFunction(2)
	args := restArgs(L, 3)
	f.base.Delay(time.Duration(seconds*float64(time.Second)), f.callback(fn, args))
	return 0
}

func (f *Functions) callback(fn *lua.LFunction, args []lua.LValue) func(ctx context.Context) {
	return func(ctx context.Context) {
		if _, err := f.invoke(ctx, fn, 0, args...); err != nil {
			errutil.LogException(f.base.Logger(), "scheduled lua function failed", err)
		}
	}
}

func restArgs(L *lua.LState, from int) []lua.LValue {
	top := L.GetTop()
	if top < from {
		return nil
	}
	args := make([]lua.LValue, 0, top-from+1)
	for i := from; i <= top; i++ {
		args = append(args, L.Get(i))
	}
	return args
}
