// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package errutil

import (
	"log/slog"
	"strings"

	"github.com/samber/oops"
)

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code, and context.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{
			"error", oopsErr.Error(),
		}
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		logger.Error(msg, attrs...)
	} else {
		logger.Error(msg, "error", err)
	}
}

// LogException logs err like LogError and then writes its stacktrace, one
// record per line, so console sinks that truncate multi-line messages still
// show the whole trace.
func LogException(logger *slog.Logger, msg string, err error) {
	LogError(logger, msg, err)

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(oopsErr.Stacktrace(), "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		logger.Error(line)
	}
}
