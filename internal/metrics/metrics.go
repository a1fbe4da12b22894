// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package metrics exposes prometheus collectors for bridge supervision and
// event streaming. The collectors are registered on the default registry and
// served by `kyco bridge run --metrics-addr`.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SupervisorStarts counts Start outcomes: attached, owned or failed.
	SupervisorStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyco_supervisor_starts_total",
			Help: "Total number of bridge supervisor starts by outcome",
		},
		[]string{"outcome"},
	)

	// HealthProbes counts bridge health probes by result.
	HealthProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyco_bridge_health_probes_total",
			Help: "Total number of bridge health probes",
		},
		[]string{"result"},
	)

	// BridgeAlive is 1 while a supervised bridge is known healthy.
	BridgeAlive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kyco_bridge_alive",
			Help: "Whether the supervised bridge is alive",
		},
	)

	// BootstrapSteps counts install and build commands by step and result.
	BootstrapSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyco_bridge_bootstrap_steps_total",
			Help: "Total number of bridge bootstrap commands",
		},
		[]string{"step", "result"},
	)

	// QueryAttempts counts stream initiation attempts per backend.
	QueryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyco_query_attempts_total",
			Help: "Total number of stream initiation attempts",
		},
		[]string{"backend", "result"},
	)

	// StreamEvents counts decoded events per backend and kind.
	StreamEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyco_stream_events_total",
			Help: "Total number of decoded stream events",
		},
		[]string{"backend", "type"},
	)

	// StreamDecodeErrors counts streams terminated by a malformed line.
	StreamDecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyco_stream_decode_errors_total",
			Help: "Total number of streams ended by a malformed record",
		},
		[]string{"backend"},
	)
)

// Handler returns the prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetAlive records the bridge liveness gauge.
func SetAlive(alive bool) {
	if alive {
		BridgeAlive.Set(1)
		return
	}
	BridgeAlive.Set(0)
}
