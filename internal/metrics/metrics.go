// SPDX-License-Identifier: MIT

// Package metrics exposes prometheus collectors for the capture pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagetap_sessions_started_total",
		Help: "Total number of recording sessions started",
	})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pagetap_sessions_active",
		Help: "Number of sessions currently waiting or recording",
	})

	ChunksReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagetap_chunks_received_total",
		Help: "Total number of recorder chunks delivered to sessions",
	})

	EncodeFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagetap_encode_fallback_total",
		Help: "Total number of sessions that fell back to the unconverted native format",
	})

	ArtifactBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagetap_artifact_bytes_total",
		Help: "Total encoded artifact bytes handed to the controller",
	})

	TapFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagetap_tap_failures_total",
		Help: "Total number of media elements that could not be tapped",
	})

	BusDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagetap_bus_drop_total",
		Help: "Total number of in-memory bus message drops (backpressure)",
	}, []string{"topic"})

	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagetap_bus_dropped_total",
		Help: "Total number of in-memory bus message drops by topic and reason",
	}, []string{"topic", "reason"})
)

// IncBusDropReason records a dropped bus message with a concrete reason.
func IncBusDropReason(topic, reason string) {
	if topic == "" {
		topic = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	BusDropsTotal.WithLabelValues(topic).Inc()
	BusDroppedTotal.WithLabelValues(topic, reason).Inc()
}
