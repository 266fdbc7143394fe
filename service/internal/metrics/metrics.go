// Package metrics exposes Prometheus instruments for study sessions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SessionsActive is the number of sessions currently ticking.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "burgerlab_sessions_active",
		Help: "Study sessions currently running",
	})

	// SessionsEnded counts finished sessions by adviser mode and reason.
	SessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "burgerlab_sessions_ended_total",
		Help: "Study sessions ended, by adviser mode and reason",
	}, []string{"mode", "reason"})

	// StepsResolved counts resolved steps by adviser mode and outcome.
	StepsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "burgerlab_steps_resolved_total",
		Help: "Resolved study steps, by adviser mode and outcome",
	}, []string{"mode", "outcome"})

	// BurgersDelivered counts deliveries by agent.
	BurgersDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "burgerlab_burgers_delivered_total",
		Help: "Burgers delivered, by agent",
	}, []string{"agent"})

	// IntegrityFaults counts sessions aborted by artifact integrity errors.
	IntegrityFaults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "burgerlab_integrity_faults_total",
		Help: "Sessions aborted by synthesis artifact integrity violations",
	})

	// TickDuration tracks how long one session tick takes.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "burgerlab_tick_duration_seconds",
		Help:    "Duration of one session tick in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 12), // 10us to ~20ms
	})

	// ResultsStored counts result rows written, by source.
	ResultsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "burgerlab_results_stored_total",
		Help: "Study result rows persisted, by source and status",
	}, []string{"source", "status"})
)

// Outcome labels for StepsResolved.
const (
	OutcomeClean    = "clean"
	OutcomeViolated = "violated"
)

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
