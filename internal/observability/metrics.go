package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "farum"

// Turn outcomes used as the "outcome" label.
const (
	OutcomeAccepted   = "accepted"
	OutcomeCrisis     = "crisis"
	OutcomeFallback   = "fallback"
	OutcomeError      = "error"
	OutcomeDiscarded  = "discarded"
	OutcomeRateLimits = "rate_limited"
)

// Metrics holds the Prometheus collectors for the turn pipeline.
// A nil *Metrics is valid and records nothing, which keeps tests and the CLI free of registries.
type Metrics struct {
	TurnsTotal         *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	RegenerationsTotal *prometheus.CounterVec
	FrameworkChanges   *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "turns",
				Name:      "total",
				Help:      "Completed turns by outcome",
			},
			[]string{"outcome"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "turns",
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each pipeline stage",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		RegenerationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "validation",
				Name:      "regenerations_total",
				Help:      "Drafts rejected by the response validator, by violation",
			},
			[]string{"violation"},
		),
		FrameworkChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "framework",
				Name:      "changes_total",
				Help:      "Framework switches by the framework switched to",
			},
			[]string{"framework"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "sessions",
				Name:      "active",
				Help:      "Sessions currently held in memory",
			},
		),
	}
	reg.MustRegister(m.TurnsTotal, m.StageDuration, m.RegenerationsTotal, m.FrameworkChanges, m.ActiveSessions)
	return m
}

func (m *Metrics) ObserveTurn(outcome string) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRegeneration(violation string) {
	if m == nil {
		return
	}
	m.RegenerationsTotal.WithLabelValues(violation).Inc()
}

func (m *Metrics) ObserveFrameworkChange(framework string) {
	if m == nil {
		return
	}
	m.FrameworkChanges.WithLabelValues(framework).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
