// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fragloop/fragloop/internal/plugin"
	pluginlua "github.com/fragloop/fragloop/internal/plugin/lua"
)

// NewPluginsCmd creates the plugins subcommand.
func NewPluginsCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List the plugins found in a plugins directory",
		Long: `List every Lua plugin module in the plugins directory together with the
version, API requirement and description from its manifest, if it has one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listPlugins(cmd, dir)
		},
	}

	cmd.Flags().StringVar(&dir, "plugins-path", "plugins", "directory holding plugin modules")

	return cmd
}

func listPlugins(cmd *cobra.Command, dir string) error {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
	src := pluginlua.NewSource(dir, logger)

	names, err := src.Names()
	if err != nil {
		return fmt.Errorf("failed to list plugins in %s: %w", dir, err)
	}
	if len(names) == 0 {
		cmd.Printf("No plugins found in %s\n", dir)
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tREQUIRES\tDESCRIPTION")
	for _, name := range names {
		m, err := plugin.LoadManifest(dir, name)
		switch {
		case err != nil:
			fmt.Fprintf(tw, "%s\t-\t-\tinvalid manifest: %v\n", name, err)
		case m == nil:
			fmt.Fprintf(tw, "%s\t-\t-\t\n", name)
		default:
			requires := m.Requires
			if requires == "" {
				requires = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, m.Version, requires, m.Description)
		}
	}
	return tw.Flush()
}
