// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

// Command gen-schema writes the JSON Schema for plugin manifest files.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/fragloop/fragloop/internal/plugin"
)

func main() {
	out := pflag.StringP("out", "o", filepath.Join("schemas", "manifest.schema.json"), "output path")
	pflag.Parse()

	if err := run(*out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %s\n", *out)
}

func run(outPath string) error {
	schema, err := plugin.GenerateSchema()
	if err != nil {
		return fmt.Errorf("generating schema: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(outPath, schema, 0o600); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
