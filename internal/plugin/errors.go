// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package plugin

import (
	"errors"

	"github.com/samber/oops"
)

// Error codes for plugin lifecycle failures.
const (
	CodeLoad         = "PLUGIN_LOAD"
	CodeUnload       = "PLUGIN_UNLOAD"
	CodeWrongContext = "WRONG_CONTEXT"
	CodeNoDatabase   = "NO_DATABASE"
	CodeCapability   = "CAPABILITY_DENIED"
)

// ErrNoSuchPlugin is returned when no source can provide the named module.
func ErrNoSuchPlugin(name string) error {
	return oops.Code(CodeLoad).
		In("plugin").
		With("plugin", name).
		Hint("check qlx_pluginsPath and the plugin file name").
		Errorf("no such plugin exists: %s", name)
}

var errNotLoaded = errors.New("plugin is not loaded")

// ErrNotLoaded is returned when unloading a plugin that is not loaded.
func ErrNotLoaded(name string) error {
	return oops.Code(CodeUnload).
		In("plugin").
		With("plugin", name).
		Wrapf(errNotLoaded, "attempted to unload %s", name)
}

// IsNotLoaded reports whether err means the plugin was not loaded.
func IsNotLoaded(err error) bool {
	return errors.Is(err, errNotLoaded)
}

// ErrWrongContext is returned when a lifecycle operation is called from an
// offload unit.
func ErrWrongContext(operation, unit string) error {
	return oops.Code(CodeWrongContext).
		In("plugin").
		With("operation", operation).
		With("unit", unit).
		Hint("schedule the call with NextFrame instead").
		Errorf("%s must run on the host context, called from %s", operation, unit)
}

// ErrLoad wraps a failure to import or construct a plugin.
func ErrLoad(name string, err error) error {
	return oops.Code(CodeLoad).
		In("plugin").
		With("plugin", name).
		Wrapf(err, "load plugin %s", name)
}

// ErrCapabilityDenied is returned when a plugin uses a host capability its
// manifest does not grant.
func ErrCapabilityDenied(name, capability string) error {
	return oops.Code(CodeCapability).
		In("plugin").
		With("plugin", name).
		With("capability", capability).
		Errorf("plugin %s lacks capability %s", name, capability)
}
