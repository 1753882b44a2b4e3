// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/fragloop/fragloop/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the fragloop CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fragloop",
		Short: "fragloop - a hot-reloading plugin host for game servers",
		Long: `fragloop runs Lua and native plugins alongside a game server tick loop.
Plugins can be loaded, unloaded and reloaded while the host keeps running.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/fragloop/config.yaml if present)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewPluginsCmd())
	cmd.AddCommand(NewInfostringCmd())

	return cmd
}

// resolveConfigPath returns the config file to load. An explicit --config
// must exist; the XDG default is only used when present.
func resolveConfigPath() string {
	if configFile != "" {
		return configFile
	}
	path := xdg.ConfigFile()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return path
}
