// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package command

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status values for the executions counter.
const (
	StatusSuccess          = "success"
	StatusError            = "error"
	StatusUsage            = "usage"
	StatusNotFound         = "not_found"
	StatusPermissionDenied = "permission_denied"
)

// hostOwner labels commands no plugin owns, and lookups that found none.
const hostOwner = "host"

// CommandExecutions counts dispatched commands by owning plugin.
var CommandExecutions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fragloop_command_executions_total",
		Help: "Total number of command executions",
	},
	[]string{"command", "plugin", "status"},
)

// CommandDuration observes how long handlers ran.
var CommandDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "fragloop_command_duration_seconds",
		Help:    "Command handler duration in seconds",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
	},
	[]string{"command", "plugin"},
)

// RegisterMetrics registers the command metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(CommandExecutions, CommandDuration)
}

func owner(plugin string) string {
	if plugin == "" {
		return hostOwner
	}
	return plugin
}

func recordExecution(command, plugin, status string) {
	CommandExecutions.WithLabelValues(command, owner(plugin), status).Inc()
}

func recordDuration(command, plugin string, d time.Duration) {
	CommandDuration.WithLabelValues(command, owner(plugin)).Observe(d.Seconds())
}
