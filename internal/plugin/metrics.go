// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package plugin

import "github.com/prometheus/client_golang/prometheus"

// Operation labels.
const (
	opLoad       = "load"
	opUnload     = "unload"
	opReload     = "reload"
	opLoadPreset = "load_preset"
)

// Status labels.
const (
	statusSuccess = "success"
	statusError   = "error"
)

var operationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fragloop_plugin_operations_total",
		Help: "Total number of plugin lifecycle operations by operation and status",
	},
	[]string{"operation", "status"},
)

var loadedPlugins = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "fragloop_plugins_loaded",
		Help: "Number of currently loaded plugins",
	},
)

// RegisterMetrics registers plugin metrics with the given Prometheus registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(operationsTotal)
	reg.MustRegister(loadedPlugins)
}

func recordOperation(operation string, err error) {
	status := statusSuccess
	if err != nil {
		status = statusError
	}
	operationsTotal.WithLabelValues(operation, status).Inc()
}
