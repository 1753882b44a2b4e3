// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

// Package xdg provides XDG Base Directory paths for fragloop.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "fragloop"

// ConfigDir returns $XDG_CONFIG_HOME/fragloop, defaulting to ~/.config.
func ConfigDir() string {
	return dir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns $XDG_DATA_HOME/fragloop, defaulting to ~/.local/share.
func DataDir() string {
	return dir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ConfigFile is the default startup config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// BoltFile is the default path of the bolt key-value database.
func BoltFile() string {
	return filepath.Join(DataDir(), "fragloop.db")
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.In("xdg").With("path", path).Wrapf(err, "create directory")
	}
	return nil
}

func dir(env, fallback string) string {
	base := os.Getenv(env)
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), fallback)
	}
	return filepath.Join(base, appName)
}
