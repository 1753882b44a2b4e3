// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

// Package schedule implements the frame scheduler: a deferred-task queue the
// host pumps once per server frame.
//
// Tasks are ordered by due time, then priority, then insertion order. Every
// task runs inline on the goroutine that calls Pump, which is the host's
// main execution context. Enter is safe to call from any goroutine, which
// makes the scheduler the way background work hands results back to the host.
package schedule

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/fragloop/fragloop/pkg/errutil"
)

// Task is a unit of deferred work. ctx is the context passed to Pump.
type Task func(ctx context.Context)

type task struct {
	due      time.Time
	priority int
	seq      uint64
	fn       Task
}

// Scheduler is a tick-driven deferred-task queue.
type Scheduler struct {
	queue    taskHeap
	incoming []*task
	seq      uint64
	frame    uint64
	now      func() time.Time
	logger   *slog.Logger
	mu       sync.Mutex
	pumpMu   sync.Mutex
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source. Tests use it to drive time by hand.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithLogger sets the logger used for task failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New creates an empty scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enter queues fn to run no earlier than delay from now. Tasks are only
// picked up by the next Pump call, so a zero delay means "next frame" even
// when Enter is called from a task that is running inside Pump.
// No handle is returned; queued tasks cannot be cancelled.
func (s *Scheduler) Enter(delay time.Duration, priority int, fn Task) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.incoming = append(s.incoming, &task{
		due:      s.now().Add(max(delay, 0)),
		priority: priority,
		seq:      s.seq,
		fn:       fn,
	})
	queueDepth.Inc()
}

// NextFrame queues fn for the next Pump.
func (s *Scheduler) NextFrame(fn Task) {
	s.Enter(0, 0, fn)
}

// Delay queues fn to run once d has elapsed.
func (s *Scheduler) Delay(d time.Duration, fn Task) {
	s.Enter(d, 0, fn)
}

// Pump runs every queued task that is due, in order, and returns how many
// ran. It must be called from the host context once per frame. Tasks queued
// while Pump runs wait for the next call. A panicking task is logged and
// the remaining tasks still run.
func (s *Scheduler) Pump(ctx context.Context) int {
	s.pumpMu.Lock()
	defer s.pumpMu.Unlock()

	s.mu.Lock()
	now := s.now()
	s.frame++
	for _, t := range s.incoming {
		heap.Push(&s.queue, t)
	}
	s.incoming = nil
	s.mu.Unlock()

	ran := 0
	for {
		s.mu.Lock()
		if s.queue.Len() == 0 || s.queue[0].due.After(now) {
			s.mu.Unlock()
			break
		}
		t := heap.Pop(&s.queue).(*task) //nolint:errcheck,forcetypeassert // heap holds only *task
		s.mu.Unlock()

		queueDepth.Dec()
		s.run(ctx, t)
		ran++
	}
	return ran
}

// Len returns the number of queued tasks, including ones not yet picked up.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len() + len(s.incoming)
}

// Frame returns how many times Pump has been called.
func (s *Scheduler) Frame() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

func (s *Scheduler) run(ctx context.Context, t *task) {
	err := oops.In("schedule").With("seq", t.seq).Recover(func() {
		t.fn(ctx)
	})
	if err != nil {
		tasksTotal.WithLabelValues(resultPanic).Inc()
		errutil.LogException(s.logger, "scheduled task failed", err)
		return
	}
	tasksTotal.WithLabelValues(resultOK).Inc()
}

// taskHeap orders tasks by (due, priority, seq).
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if !a.due.Equal(b.due) {
		return a.due.Before(b.due)
	}
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.seq < b.seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(*task)) //nolint:forcetypeassert // only *task is pushed
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
