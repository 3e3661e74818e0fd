// Package metrics exposes the engine's own operational metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors the evaluation pipeline and the gate report
// into. Register once per process with a dedicated registry.
type Metrics struct {
	EvaluationsTotal     *prometheus.CounterVec
	BudgetRemainingRatio *prometheus.GaugeVec
	BurnRate             *prometheus.GaugeVec
	StatusLevel          *prometheus.GaugeVec
	AlertTransitions     *prometheus.CounterVec
	DecisionsTotal       *prometheus.CounterVec
}

// New registers the engine collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		EvaluationsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "aegis_gate",
			Name:      "evaluations_total",
			Help:      "Evaluation ticks per service, by outcome (ok, partial, error, skipped).",
		}, []string{"service", "outcome"}),
		BudgetRemainingRatio: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "aegis_gate",
			Name:      "budget_remaining_ratio",
			Help:      "Fraction of the error budget still unspent; negative when over budget.",
		}, []string{"service", "slo"}),
		BurnRate: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "aegis_gate",
			Name:      "burn_rate",
			Help:      "Observed burn rate per rule and window position.",
		}, []string{"service", "rule", "window"}),
		StatusLevel: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "aegis_gate",
			Name:      "status_level",
			Help:      "Current status ordinal (0 healthy .. 4 exhausted).",
		}, []string{"service", "slo"}),
		AlertTransitions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "aegis_gate",
			Name:      "alert_transitions_total",
			Help:      "Fired and cleared burn rate alert transitions.",
		}, []string{"service", "severity", "transition"}),
		DecisionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "aegis_gate",
			Name:      "decisions_total",
			Help:      "Release gate decisions, by decision and risk level.",
		}, []string{"decision", "risk"}),
	}
}
