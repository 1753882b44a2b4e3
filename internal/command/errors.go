// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package command

import (
	"github.com/samber/oops"

	"github.com/fragloop/fragloop/pkg/errutil"
)

// Error codes for command registration and dispatch failures.
const (
	CodeUnknownCommand   = "UNKNOWN_COMMAND"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeUsage            = "USAGE"
	CodeInvalidCommand   = "INVALID_COMMAND"
	CodeCommandNotFound  = "COMMAND_NOT_FOUND"
)

// ErrUnknownCommand creates an error for an unknown command.
func ErrUnknownCommand(cmd string) error {
	return oops.Code(CodeUnknownCommand).
		With("command", cmd).
		Errorf("unknown command: %s", cmd)
}

// ErrPermissionDenied creates an error for permission denial.
func ErrPermissionDenied(cmd string, required int) error {
	return oops.Code(CodePermissionDenied).
		With("command", cmd).
		With("required", required).
		Errorf("permission denied for command %s", cmd)
}

// ErrUsage is returned by handlers when the arguments don't fit the
// command's usage. The registry answers the caller with the usage line.
func ErrUsage() error {
	return oops.Code(CodeUsage).Errorf("invalid arguments")
}

// ErrInvalidCommand creates an error for a malformed registration.
func ErrInvalidCommand(plugin, reason string) error {
	return oops.Code(CodeInvalidCommand).
		With("plugin", plugin).
		Errorf("invalid command: %s", reason)
}

// ErrCommandNotFound creates an error for removing an unregistered command.
func ErrCommandNotFound(cmd string) error {
	return oops.Code(CodeCommandNotFound).
		With("command", cmd).
		Errorf("command not registered: %s", cmd)
}

// HasCode reports whether err is an oops error with the given code.
func HasCode(err error, code string) bool {
	return errutil.HasCode(err, code)
}
