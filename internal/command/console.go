// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package command

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// ConsolePermission is the permission level of the server console.
const ConsolePermission = 5

// ConsoleCaller is the server console. Replies are written line by line to w.
type ConsoleCaller struct {
	w  io.Writer
	mu sync.Mutex
}

// NewConsoleCaller creates a console caller writing replies to w.
func NewConsoleCaller(w io.Writer) *ConsoleCaller {
	return &ConsoleCaller{w: w}
}

// Name implements Caller.
func (c *ConsoleCaller) Name() string { return "console" }

// Permission implements Caller.
func (c *ConsoleCaller) Permission() int { return ConsolePermission }

// Reply implements Caller.
func (c *ConsoleCaller) Reply(_ context.Context, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.w, msg)
}
