// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package offload

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestActive_FalseOnPlainContext(t *testing.T) {
	assert.False(t, Active(context.Background()))
	assert.Empty(t, UnitName(context.Background()))
}

func TestWrap_SpawnsNamedUnit(t *testing.T) {
	g := NewGuard(slog.Default())

	names := make(chan string, 2)
	fn := g.Wrap("fetch", func(ctx context.Context) {
		require.True(t, Active(ctx))
		names <- UnitName(ctx)
	})

	fn(context.Background())
	fn(context.Background())

	got := []string{<-names, <-names}
	assert.ElementsMatch(t, []string{"fetch-1-offload", "fetch-2-offload"}, got)
	assert.Equal(t, uint64(2), g.Spawned())
}

func TestWrap_RunsInlineFromOffloadContext(t *testing.T) {
	g := NewGuard(slog.Default())

	done := make(chan struct{})
	var innerUnit string
	inner := g.Wrap("inner", func(ctx context.Context) {
		innerUnit = UnitName(ctx)
	})
	outer := g.Wrap("outer", func(ctx context.Context) {
		inner(ctx)
		close(done)
	})

	outer(context.Background())
	<-done

	assert.Equal(t, "outer-1-offload", innerUnit)
	assert.Equal(t, uint64(1), g.Spawned())
}

func TestWrap_ForceAlwaysSpawns(t *testing.T) {
	g := NewGuard(slog.Default())

	names := make(chan string, 1)
	inner := g.Wrap("inner", func(ctx context.Context) {
		names <- UnitName(ctx)
	}, WithForce())
	outer := g.Wrap("outer", func(ctx context.Context) {
		inner(ctx)
	})

	outer(context.Background())

	assert.Equal(t, "inner-2-offload", <-names)
	assert.Eventually(t, func() bool { return g.Spawned() == 2 }, time.Second, 5*time.Millisecond)
}

func TestWrap_CallerIsNotJoined(t *testing.T) {
	g := NewGuard(slog.Default())

	release := make(chan struct{})
	finished := make(chan struct{})
	fn := g.Wrap("slow", func(context.Context) {
		<-release
		close(finished)
	})

	fn(context.Background())
	close(release)
	<-finished
}

func TestWrap_UnitSurvivesCallerCancellation(t *testing.T) {
	g := NewGuard(slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	fn := g.Wrap("bg", func(ctx context.Context) {
		errs <- ctx.Err()
	})

	cancel()
	fn(ctx)

	assert.NoError(t, <-errs)
}

func TestWrap_PanicIsRecoveredAndLogged(t *testing.T) {
	var buf syncBuffer
	g := NewGuard(slog.New(slog.NewTextHandler(&buf, nil)))

	fn := g.Wrap("crash", func(context.Context) {
		panic("unit exploded")
	})
	fn(context.Background())

	assert.Eventually(t, func() bool {
		out := buf.String()
		return strings.Contains(out, "unit exploded") && strings.Contains(out, "crash-1-offload")
	}, time.Second, 5*time.Millisecond)
}

func TestGo_SpawnsImmediately(t *testing.T) {
	g := NewGuard(nil)

	done := make(chan string, 1)
	g.Go(context.Background(), "direct", func(ctx context.Context) {
		done <- UnitName(ctx)
	})

	assert.Equal(t, "direct-1-offload", <-done)
}
