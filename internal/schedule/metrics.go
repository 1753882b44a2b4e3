// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package schedule

import "github.com/prometheus/client_golang/prometheus"

const (
	resultOK    = "ok"
	resultPanic = "panic"
)

var tasksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fragloop_scheduler_tasks_total",
		Help: "Total number of scheduled tasks executed by result",
	},
	[]string{"result"},
)

var queueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "fragloop_scheduler_queue_depth",
		Help: "Number of tasks waiting in the frame scheduler",
	},
)

// RegisterMetrics registers scheduler metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(tasksTotal)
	reg.MustRegister(queueDepth)
}
