// Package metrics exposes Prometheus instrumentation for probe
// execution, batch orchestration, and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for probe runs.
const (
	OutcomeOK      = "ok"
	OutcomeFailure = "failure"
	OutcomeFault   = "fault"
)

var (
	ProbeRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usagebar",
			Name:      "probe_runs_total",
			Help:      "Total probe runs by outcome",
		},
		[]string{"probe", "outcome"},
	)

	ProbeRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "usagebar",
			Name:      "probe_run_duration_seconds",
			Help:      "Probe run duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"probe"},
	)

	BatchesStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "usagebar",
			Name:      "batches_started_total",
			Help:      "Total refresh batches started",
		},
	)

	BatchesCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "usagebar",
			Name:      "batches_completed_total",
			Help:      "Total refresh batches that reached completion",
		},
	)

	StaleEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "usagebar",
			Name:      "stale_events_total",
			Help:      "Events dropped because a newer batch superseded their batch",
		},
	)

	PaceTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usagebar",
			Name:      "pace_transitions_total",
			Help:      "Pace status transitions observed per probe",
		},
		[]string{"probe", "status"},
	)
)

var probeMetricsRegistered bool

// RegisterProbeMetrics registers the probe and batch collectors with
// the default registry. Must be called once from main.
func RegisterProbeMetrics() {
	if probeMetricsRegistered {
		return
	}
	prometheus.MustRegister(ProbeRunsTotal)
	prometheus.MustRegister(ProbeRunDuration)
	prometheus.MustRegister(BatchesStartedTotal)
	prometheus.MustRegister(BatchesCompletedTotal)
	prometheus.MustRegister(StaleEventsTotal)
	prometheus.MustRegister(PaceTransitionsTotal)
	probeMetricsRegistered = true
}

// ObserveProbeRun records one probe run.
func ObserveProbeRun(probeID, outcome string, d time.Duration) {
	ProbeRunsTotal.WithLabelValues(probeID, outcome).Inc()
	ProbeRunDuration.WithLabelValues(probeID).Observe(d.Seconds())
}
