// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package plugin

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"
)

// VersionNotSet is reported when the plugins directory has no usable git
// metadata.
const VersionNotSet = "NOT_SET"

// PluginsVersion describes the checkout in dir with git describe, or returns
// VersionNotSet if git is unavailable, dir is not a repository, or git
// takes longer than a second.
func PluginsVersion(ctx context.Context, dir string) string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "describe", "--long", "--tags", "--dirty", "--always")
	cmd.Dir = dir
	cmd.Env = withoutPreload(os.Environ())

	out, err := cmd.Output()
	if err != nil {
		return VersionNotSet
	}
	v := strings.TrimSpace(string(out))
	if v == "" {
		return VersionNotSet
	}
	return v
}

// withoutPreload drops LD_PRELOAD so git does not inherit a preloaded host
// library.
func withoutPreload(env []string) []string {
	out := env[:0:0]
	for _, kv := range env {
		if strings.HasPrefix(kv, "LD_PRELOAD=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}
