// Package metrics defines the Prometheus instrumentation for the alerting
// engine. All collectors are registered on the default registry and served
// by promhttp from the HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion
	SamplesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsewatch_samples_ingested_total",
			Help: "Samples accepted for evaluation",
		},
		[]string{"source"}, // source: push, scrape
	)

	// Engine
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsewatch_evaluations_total",
			Help: "Alert condition evaluations",
		},
		[]string{"result"}, // result: breach, clear, error
	)

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsewatch_transitions_total",
			Help: "Committed alert state transitions by notification kind",
		},
		[]string{"kind"}, // kind: entered, active, recovered
	)

	// Missing-data sweep
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pulsewatch_sweep_duration_seconds",
			Help:    "Duration of one missing-data sweep",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	SyntheticBreaches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulsewatch_sweep_synthetic_breaches_total",
			Help: "Breaches synthesized by the missing-data sweep",
		},
	)

	// Dispatch
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsewatch_dispatch_total",
			Help: "Webhook delivery attempts",
		},
		[]string{"format", "status"}, // status: success, failure
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pulsewatch_dispatch_duration_seconds",
			Help:    "Webhook delivery latency",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulsewatch_dispatch_queue_depth",
			Help: "Deliveries waiting in the dispatch queue",
		},
	)

	DispatchDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulsewatch_dispatch_dropped_total",
			Help: "Deliveries dropped because the dispatch queue was full",
		},
	)
)
