// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// FlagCvars maps command-line flag names to the cvars they set.
// Only flags the user actually changed are applied.
var FlagCvars = map[string]string{
	"plugins":        CvarPlugins,
	"plugins-path":   CvarPluginsPath,
	"database":       CvarDatabase,
	"command-prefix": CvarCommandPrefix,
	"owner":          CvarOwner,
	"bolt-path":      CvarBoltPath,
	"postgres-url":   CvarPostgresURL,
	"tick-rate":      CvarTickRate,
	"hot-reload":     CvarHotReload,
	"log-format":     CvarLogFormat,
	"metrics-addr":   CvarMetricsAddr,
}

// Load reads startup configuration into the store. The YAML file at path
// (optional) is applied first, then changed flags override it. Keys in the
// file are cvar names:
//
//	qlx_plugins: "plugin_manager, motd"
//	qlx_pluginsPath: /srv/fragloop/plugins
func Load(s *Store, path string, flags *pflag.FlagSet) error {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return oops.Code(CodeConfig).
				With("path", path).
				Hint("check the config file exists and is valid YAML").
				Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			cvar, ok := FlagCvars[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return cvar, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return oops.Code(CodeConfig).With("operation", "load flags").Wrap(err)
		}
	}

	for _, key := range k.Keys() {
		if err := s.Set(key, cvarValue(k.Get(key))); err != nil {
			return oops.Code(CodeConfig).With("cvar", key).Wrap(err)
		}
	}
	return nil
}

// cvarValue renders a config value the way cvars store it. Booleans become
// integer flags.
func cvarValue(v any) string {
	if b, ok := v.(bool); ok {
		if b {
			return "1"
		}
		return "0"
	}
	return fmt.Sprint(v)
}
