// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package offload

import "github.com/prometheus/client_golang/prometheus"

const (
	modeSpawned = "spawned"
	modeInline  = "inline"
)

var unitsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fragloop_offload_units_total",
		Help: "Total number of offloaded calls by mode",
	},
	[]string{"mode"},
)

// RegisterMetrics registers offload metrics with the given Prometheus registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(unitsTotal)
}
