// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

// Package command provides the prefix-triggered command registry that
// plugins register chat and console commands with.
package command

import (
	"context"
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/fragloop/fragloop/internal/event"
)

// Caller is whoever typed a command.
type Caller interface {
	Name() string
	// Permission is the caller's permission level. Higher grants more.
	Permission() int
	Reply(ctx context.Context, msg string)
}

// Invocation is a single command call.
type Invocation struct {
	Caller Caller
	Name   string   // matched command name, lowercased
	Args   []string // whitespace-split input, Args[0] is the command name as typed
	Raw    string   // input without the prefix
}

// Handler runs a command. Returning event.Stop or event.StopAll prevents
// lower-priority handlers registered under the same name from running.
type Handler func(ctx context.Context, inv *Invocation) (event.Result, error)

// Entry is a registered command.
type Entry struct {
	ID         ulid.ULID
	Plugin     string         // owning plugin, empty for the host
	Names      []string       // first entry is the canonical name
	Handler    Handler
	Permission int            // minimum caller permission
	Usage      string         // argument synopsis shown on usage errors
	Priority   event.Priority // ordering among entries sharing a name
}

// Name returns the canonical command name.
func (e Entry) Name() string {
	if len(e.Names) == 0 {
		return ""
	}
	return e.Names[0]
}

// Matches reports whether name is one of the entry's names (case-insensitive).
func (e Entry) Matches(name string) bool {
	return slices.ContainsFunc(e.Names, func(n string) bool {
		return strings.EqualFold(n, name)
	})
}
