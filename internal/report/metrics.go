package report

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Trace lookup labels
const (
	LookupFound    = "found"
	LookupNotFound = "not_found"
	LookupError    = "error"
)

// Metrics are boring counters only, one registry per hook instance.
// Every counter must be explainable by looking at a single Result.
type Metrics struct {
	registry *prometheus.Registry

	Callbacks    *prometheus.CounterVec // trohook_callbacks_total{callback}
	Phases       *prometheus.CounterVec // trohook_phase_total{phase,outcome}
	Injections   *prometheus.CounterVec // trohook_env_injection_total{outcome}
	TraceLookups *prometheus.CounterVec // trohook_trace_lookup_total{result}
	LastRun      prometheus.Gauge       // trohook_last_run_timestamp_seconds
}

// NewMetrics creates a metrics set backed by its own registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trohook_callbacks_total",
			Help: "Scheduler callbacks handled, by callback.",
		}, []string{"callback"}),
		Phases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trohook_phase_total",
			Help: "Provenance tool phases by outcome.",
		}, []string{"phase", "outcome"}),
		Injections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trohook_env_injection_total",
			Help: "Tracing environment injections by outcome.",
		}, []string{"outcome"}),
		TraceLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trohook_trace_lookup_total",
			Help: "XALT trace lookups by result.",
		}, []string{"result"}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trohook_last_run_timestamp_seconds",
			Help: "Unix time the hook last finished a job.",
		}),
	}
	m.registry.MustRegister(m.Callbacks, m.Phases, m.Injections, m.TraceLookups, m.LastRun)
	return m
}

// IncrCallback counts a scheduler callback
func (m *Metrics) IncrCallback(name string) {
	if m == nil {
		return
	}
	m.Callbacks.WithLabelValues(name).Inc()
}

// IncrPhase counts a provenance phase outcome
func (m *Metrics) IncrPhase(phase, outcome string) {
	if m == nil {
		return
	}
	m.Phases.WithLabelValues(phase, outcome).Inc()
}

// IncrInjection counts an environment injection outcome
func (m *Metrics) IncrInjection(outcome string) {
	if m == nil {
		return
	}
	m.Injections.WithLabelValues(outcome).Inc()
}

// IncrTraceLookup counts a trace lookup result
func (m *Metrics) IncrTraceLookup(result string) {
	if m == nil {
		return
	}
	m.TraceLookups.WithLabelValues(result).Inc()
}

// RecordResult stamps the completion gauge from a finished Result.
func (m *Metrics) RecordResult(r *Result) {
	if m == nil || r == nil {
		return
	}
	m.LastRun.Set(float64(r.EndTime.Unix()))
}
