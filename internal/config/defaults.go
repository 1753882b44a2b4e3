// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package config

// Cvar names read at startup.
const (
	CvarOwner           = "qlx_owner"
	CvarPlugins         = "qlx_plugins"
	CvarPluginsPath     = "qlx_pluginsPath"
	CvarDatabase        = "qlx_database"
	CvarCommandPrefix   = "qlx_commandPrefix"
	CvarBoltPath        = "qlx_boltPath"
	CvarPostgresURL     = "qlx_postgresURL"
	CvarRedisAddress    = "qlx_redisAddress"
	CvarRedisDatabase   = "qlx_redisDatabase"
	CvarRedisUnixSocket = "qlx_redisUnixSocket"
	CvarRedisPassword   = "qlx_redisPassword"
	CvarTickRate        = "qlx_tickRate"
	CvarHotReload       = "qlx_hotReload"
	CvarLogFormat       = "qlx_logFormat"
	CvarMetricsAddr     = "qlx_metricsAddr"
)

// InitializeDefaults applies default values for every startup cvar that is
// not already set.
func InitializeDefaults(s *Store) {
	s.SetOnce(CvarOwner, "-1")
	s.SetOnce(CvarPlugins, "plugin_manager")
	s.SetOnce(CvarPluginsPath, "plugins")
	s.SetOnce(CvarDatabase, "bolt")
	s.SetOnce(CvarCommandPrefix, "!")
	s.SetOnce(CvarBoltPath, "")
	s.SetOnce(CvarPostgresURL, "")
	s.SetOnce(CvarRedisAddress, "127.0.0.1")
	s.SetOnce(CvarRedisDatabase, "0")
	s.SetOnce(CvarRedisUnixSocket, "0")
	s.SetOnce(CvarRedisPassword, "")
	_, _ = s.SetLimitOnce(CvarTickRate, "40", 1, 1000)
	s.SetOnce(CvarHotReload, "0")
	s.SetOnce(CvarLogFormat, "json")
	s.SetOnce(CvarMetricsAddr, "")
}
