// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package plugin

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluginsVersion_NotARepository(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))
	assert.Equal(t, VersionNotSet, PluginsVersion(context.Background(), dir))
}

func TestPluginsVersion_MissingDir(t *testing.T) {
	assert.Equal(t, VersionNotSet, PluginsVersion(context.Background(), "/nonexistent/fragloop/plugins"))
}

func TestWithoutPreload(t *testing.T) {
	env := []string{"PATH=/bin", "LD_PRELOAD=/lib/hook.so", "HOME=/root"}
	assert.Equal(t, []string{"PATH=/bin", "HOME=/root"}, withoutPreload(env))
	assert.Len(t, env, 3)
}
