package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gate outcomes.
const (
	GatePassed   = "passed"
	GateFailed   = "failed"
	GateBypassed = "bypassed"
)

// Collectors holds the Prometheus metrics for pipeline stages.
// A nil *Collectors is valid and records nothing.
//
// Metrics:
//   - sage_stage_duration_seconds{stage} - Histogram of stage execution times
//   - sage_stage_runs_total{stage,outcome} - Count of stage runs (ok, error, skipped)
//   - sage_gate_total{outcome} - Count of quality gate decisions
type Collectors struct {
	StageDuration *prometheus.HistogramVec
	StageRuns     *prometheus.CounterVec
	GateTotal     *prometheus.CounterVec
}

// NewCollectors creates the collectors and registers them with reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sage_stage_duration_seconds",
				Help:    "Duration of pipeline stage execution in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"stage"},
		),
		StageRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sage_stage_runs_total",
				Help: "Total number of pipeline stage runs",
			},
			[]string{"stage", "outcome"},
		),
		GateTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sage_gate_total",
				Help: "Total number of quality gate decisions",
			},
			[]string{"outcome"},
		),
	}
}

func (c *Collectors) ObserveStage(sm StageMetrics) {
	if c == nil {
		return
	}
	outcome := "ok"
	switch {
	case sm.Skipped:
		outcome = "skipped"
	case !sm.Success:
		outcome = "error"
	}
	c.StageRuns.WithLabelValues(sm.Stage, outcome).Inc()
	if !sm.Skipped {
		c.StageDuration.WithLabelValues(sm.Stage).Observe(sm.End.Sub(sm.Start).Seconds())
	}
}

func (c *Collectors) ObserveGate(outcome string) {
	if c == nil {
		return
	}
	c.GateTotal.WithLabelValues(outcome).Inc()
}
