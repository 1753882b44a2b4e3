// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fragloop/fragloop/internal/infostring"
)

// NewInfostringCmd creates the infostring subcommand.
func NewInfostringCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "infostring <string>",
		Short: "Decode a backslash-delimited info string",
		Long: `Decode an info string such as \sv_hostname\My Server\g_gametype\4 and print
its key/value pairs in the order they appear.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := infostring.DecodeOrdered(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(vars.Map())
			}
			for key, value := range vars.All() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print a JSON object instead of ordered pairs")

	return cmd
}
