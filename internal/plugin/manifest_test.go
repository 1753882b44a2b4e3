// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package plugin_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragloop/fragloop/internal/plugin"
	"github.com/fragloop/fragloop/pkg/errutil"
)

func TestValidName(t *testing.T) {
	valid := []string{"a", "plugin_manager", "balance2", strings.Repeat("x", 64)}
	invalid := []string{"", "Motd", "2fast", "my-plugin", "_hidden", "../etc", "a b", strings.Repeat("x", 65)}

	for _, n := range valid {
		assert.True(t, plugin.ValidName(n), n)
	}
	for _, n := range invalid {
		assert.False(t, plugin.ValidName(n), n)
	}
}

func TestParseManifest(t *testing.T) {
	m, err := plugin.ParseManifest([]byte(`
name: balance
version: 1.2.3
description: Team balancing
requires: "^1.0"
capabilities: [kv.read, kv.write]
`))
	require.NoError(t, err)
	assert.Equal(t, "balance", m.Name)
	assert.Equal(t, "1.2.3", m.Version)
	assert.Equal(t, "Team balancing", m.Description)
	assert.Equal(t, "^1.0", m.Requires)
	assert.Equal(t, []string{"kv.read", "kv.write"}, m.Capabilities)
}

func TestParseManifest_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "   \n"},
		{"invalid yaml", "name: [x"},
		{"bad name", "name: Balance\nversion: 1.0.0"},
		{"missing version", "name: balance"},
		{"version not semver", "name: balance\nversion: one"},
		{"bad constraint", "name: balance\nversion: 1.0.0\nrequires: 'not a constraint'"},
		{"blank capability", "name: balance\nversion: 1.0.0\ncapabilities: ['  ']"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := plugin.ParseManifest([]byte(tt.yaml))
			errutil.AssertErrorCode(t, err, plugin.CodeLoad)
		})
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(body), 0o600))
	}

	t.Run("missing file", func(t *testing.T) {
		m, err := plugin.LoadManifest(dir, "absent")
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("valid", func(t *testing.T) {
		write("motd", "name: motd\nversion: 0.1.0\n")
		m, err := plugin.LoadManifest(dir, "motd")
		require.NoError(t, err)
		assert.Equal(t, "0.1.0", m.Version)
	})

	t.Run("name mismatch", func(t *testing.T) {
		write("other", "name: motd\nversion: 0.1.0\n")
		_, err := plugin.LoadManifest(dir, "other")
		errutil.AssertErrorCode(t, err, plugin.CodeLoad)
	})

	t.Run("schema violation", func(t *testing.T) {
		write("extra", "name: extra\nversion: 0.1.0\nentry: main.lua\n")
		_, err := plugin.LoadManifest(dir, "extra")
		errutil.AssertErrorCode(t, err, plugin.CodeLoad)
	})
}
