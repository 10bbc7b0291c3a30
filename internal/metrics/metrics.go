// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

// Package metrics exposes Prometheus collectors for the ranking core and its
// surrounding service: click ingestion, ranking latency, content generation,
// snapshot store operations, and the entropy health signal.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Click ingestion

	ClicksRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealhound_clicks_recorded_total",
			Help: "Total number of click events recorded by the engagement ledger",
		},
		[]string{"category"},
	)

	ClicksDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealhound_clicks_dropped_total",
			Help: "Total number of click events dropped before reaching the ledger",
		},
		[]string{"reason"}, // "rate_limited", "malformed", "bus_closed"
	)

	LedgerFlushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dealhound_ledger_flushes_total",
			Help: "Total number of ledger snapshot flushes to the store",
		},
	)

	// Ranking

	RankRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealhound_rank_requests_total",
			Help: "Total number of ranking computations",
		},
		[]string{"category"},
	)

	RankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dealhound_rank_duration_seconds",
			Help:    "Duration of a single category ranking computation",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)

	// Content generation

	ContentGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealhound_content_generations_total",
			Help: "Total number of CTA/subtitle assignments generated",
		},
		[]string{"stage"}, // "discovery", "value", "conversion"
	)

	TemplateCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dealhound_template_collisions_total",
			Help: "Total number of template candidates rejected as already used in a batch",
		},
	)

	TemplateFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dealhound_template_fallbacks_total",
			Help: "Total number of generations that exhausted all candidates and used the minimal template",
		},
	)

	// Analytics pulse

	PulseRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dealhound_pulse_runs_total",
			Help: "Total number of analytics pulse executions",
		},
	)

	PulseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dealhound_pulse_duration_seconds",
			Help:    "Duration of a full analytics pulse",
			Buckets: prometheus.DefBuckets,
		},
	)

	ContentEntropy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dealhound_content_entropy_ratio",
			Help: "Unique-to-total ratio of generated content per category (1.0 = fully diverse)",
		},
		[]string{"category"},
	)

	// Snapshot store

	StoreOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealhound_store_operations_total",
			Help: "Total number of snapshot store operations",
		},
		[]string{"operation", "outcome"}, // operation: "get", "put"; outcome: "ok", "error", "conflict", "miss"
	)

	// Archive

	ArchiveWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealhound_archive_writes_total",
			Help: "Total number of click events written to the DuckDB archive",
		},
		[]string{"outcome"}, // "ok", "error", "breaker_open"
	)

	// HTTP API

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealhound_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dealhound_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket stream

	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dealhound_stream_clients",
			Help: "Current number of connected websocket stream clients",
		},
	)

	// Content cache

	CacheOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealhound_cache_operations_total",
			Help: "Content cache operations by result (hit, miss, eviction)",
		},
		[]string{"result"},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
