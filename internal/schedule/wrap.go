// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package schedule

import (
	"context"
	"time"
)

// NextFrameFunc wraps fn so that each call queues it for the next frame
// with the argument captured at call time.
func NextFrameFunc[T any](s *Scheduler, fn func(ctx context.Context, arg T)) func(arg T) {
	return func(arg T) {
		s.NextFrame(func(ctx context.Context) {
			fn(ctx, arg)
		})
	}
}

// DelayFunc wraps fn so that each call queues it to run after d with the
// argument captured at call time.
func DelayFunc[T any](s *Scheduler, d time.Duration, fn func(ctx context.Context, arg T)) func(arg T) {
	return func(arg T) {
		s.Delay(d, func(ctx context.Context) {
			fn(ctx, arg)
		})
	}
}
