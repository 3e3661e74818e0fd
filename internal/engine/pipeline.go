// Package engine wires the tracker, the burn rate evaluator and the
// classifier into one evaluation pipeline per service.
package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/samijaber1/aegis-gate/internal/budget"
	"github.com/samijaber1/aegis-gate/internal/burn"
	"github.com/samijaber1/aegis-gate/internal/metrics"
	"github.com/samijaber1/aegis-gate/internal/notify"
	"github.com/samijaber1/aegis-gate/internal/sli"
	"github.com/samijaber1/aegis-gate/internal/slo"
	"github.com/samijaber1/aegis-gate/internal/status"
)

// ErrEvaluationInProgress is returned when a tick is requested while a
// previous tick for the same pipeline is still running. The caller skips the
// tick; two concurrent runs would corrupt the alert edge state.
var ErrEvaluationInProgress = errors.New("evaluation already in progress")

// DefaultTickTimeout bounds a full evaluation tick.
const DefaultTickTimeout = 30 * time.Second

// Evaluation is the combined outcome of one tick.
type Evaluation struct {
	SLOName  string
	Service  string
	Budget   budget.State
	Status   status.Status
	Readings []burn.Reading
	Events   []burn.AlertEvent
	// Partial marks a tick where some rules failed to evaluate; callers must
	// surface this rather than read it as "no alert".
	Partial    bool
	RuleErrors []*burn.RuleError
	Timestamp  time.Time
}

// Pipeline evaluates one SLO. Each pipeline owns its burn evaluator and is
// therefore the sole writer of that SLO's edge state.
type Pipeline struct {
	def         *slo.SLO
	source      sli.Source
	evaluator   *burn.Evaluator
	notifier    notify.Notifier
	collectors  *metrics.Metrics
	logger      *zap.Logger
	tickTimeout time.Duration

	busy atomic.Bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTickTimeout overrides the per-tick deadline.
func WithTickTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.tickTimeout = d }
}

// WithMetrics attaches operational collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.collectors = m }
}

// NewPipeline builds a pipeline for def.
func NewPipeline(def *slo.SLO, source sli.Source, notifier notify.Notifier, logger *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		def:         def,
		source:      source,
		evaluator:   burn.NewEvaluator(source),
		notifier:    notifier,
		logger:      logger.Named("pipeline").With(zap.String("slo", def.Metadata.Name)),
		tickTimeout: DefaultTickTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Definition returns the SLO this pipeline evaluates.
func (p *Pipeline) Definition() *slo.SLO {
	return p.def
}

// Evaluate runs one tick: budget, burn rates, classification, alert
// dispatch. Stages run strictly in that order since each consumes the
// previous stage's output.
//
// When the budget cannot be computed (zero samples, source outage) no status
// is produced and the error propagates; defaulting to a status here would
// mis-gate releases. Per-rule burn failures only mark the result partial.
func (p *Pipeline) Evaluate(ctx context.Context, now time.Time) (*Evaluation, error) {
	if !p.busy.CompareAndSwap(false, true) {
		p.record("skipped")
		return nil, ErrEvaluationInProgress
	}
	defer p.busy.Store(false)

	ctx, cancel := context.WithTimeout(ctx, p.tickTimeout)
	defer cancel()

	state, err := budget.Compute(ctx, p.def, now, p.source)
	if err != nil {
		p.record("error")
		return nil, err
	}

	result, err := p.evaluator.Evaluate(ctx, p.def, now)
	if err != nil {
		p.record("error")
		return nil, err
	}

	st := status.Classify(state, result.Readings)

	eval := &Evaluation{
		SLOName:    p.def.Metadata.Name,
		Service:    p.def.Metadata.Service,
		Budget:     state,
		Status:     st,
		Readings:   result.Readings,
		Events:     result.Events,
		Partial:    result.Partial,
		RuleErrors: result.RuleErrors,
		Timestamp:  now,
	}

	p.observe(eval)

	if len(result.Events) > 0 {
		if err := p.notifier.Notify(ctx, result.Events); err != nil {
			// Alert delivery is at-least-once from our side; a sink failure
			// must not fail the evaluation.
			p.logger.Error("alert dispatch failed", zap.Error(err))
		}
	}

	for _, ruleErr := range result.RuleErrors {
		p.logger.Warn("burn rule evaluation failed", zap.Error(ruleErr))
	}

	if result.Partial {
		p.record("partial")
	} else {
		p.record("ok")
	}

	return eval, nil
}

func (p *Pipeline) record(outcome string) {
	if p.collectors == nil {
		return
	}
	p.collectors.EvaluationsTotal.WithLabelValues(p.def.Metadata.Service, outcome).Inc()
}

func (p *Pipeline) observe(eval *Evaluation) {
	if p.collectors == nil {
		return
	}

	service, name := eval.Service, eval.SLOName
	p.collectors.BudgetRemainingRatio.WithLabelValues(service, name).Set(eval.Budget.RemainingRatio)
	p.collectors.StatusLevel.WithLabelValues(service, name).Set(float64(eval.Status))

	for _, reading := range eval.Readings {
		if reading.Skipped {
			continue
		}
		p.collectors.BurnRate.WithLabelValues(service, reading.Rule.Name, "short").Set(reading.ShortBurn)
		p.collectors.BurnRate.WithLabelValues(service, reading.Rule.Name, "long").Set(reading.LongBurn)
	}

	for _, event := range eval.Events {
		p.collectors.AlertTransitions.WithLabelValues(service, string(event.Severity), string(event.Transition)).Inc()
	}
}
