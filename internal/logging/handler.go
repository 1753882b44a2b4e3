// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

// Package logging configures the host's structured logger.
//
// Every record carries the service name and version. Records logged with a
// context also carry the OpenTelemetry trace and span ids and, inside an
// offload unit, the unit's name.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/fragloop/fragloop/internal/offload"
)

// Options configures Setup.
type Options struct {
	Service string
	Version string
	// Format is "json" or "text". Anything else means json.
	Format string
	// Level is a slog level name. Empty means debug.
	Level string
	// Writer defaults to os.Stderr.
	Writer io.Writer
}

type hostHandler struct {
	handler slog.Handler
	service string
	version string
}

func (h *hostHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(
		slog.String("service", h.service),
		slog.String("version", h.version),
	)

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.HasTraceID() {
		r.AddAttrs(slog.String("trace_id", spanCtx.TraceID().String()))
	}
	if spanCtx.HasSpanID() {
		r.AddAttrs(slog.String("span_id", spanCtx.SpanID().String()))
	}
	if unit := offload.UnitName(ctx); unit != "" {
		r.AddAttrs(slog.String("offload_unit", unit))
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.handler.Handle(ctx, r)
}

func (h *hostHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *hostHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &hostHandler{handler: h.handler.WithAttrs(attrs), service: h.service, version: h.version}
}

func (h *hostHandler) WithGroup(name string) slog.Handler {
	return &hostHandler{handler: h.handler.WithGroup(name), service: h.service, version: h.version}
}

// Setup creates a configured slog.Logger.
func Setup(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	level := slog.LevelDebug
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToUpper(opts.Level))); err != nil {
			level = slog.LevelDebug
		}
	}
	hopts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	if opts.Format == "text" {
		base = slog.NewTextHandler(w, hopts)
	} else {
		base = slog.NewJSONHandler(w, hopts)
	}

	return slog.New(&hostHandler{
		handler: base,
		service: opts.Service,
		version: opts.Version,
	})
}

// SetDefault configures the logger and installs it as the slog default.
func SetDefault(opts Options) *slog.Logger {
	logger := Setup(opts)
	slog.SetDefault(logger)
	return logger
}

// ForPlugin returns logger scoped to a plugin. An empty name returns the
// host logger unchanged.
func ForPlugin(logger *slog.Logger, name string) *slog.Logger {
	if name == "" {
		return logger
	}
	return logger.With("plugin", name)
}
