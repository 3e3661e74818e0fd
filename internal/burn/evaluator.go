// Package burn evaluates dual-window burn rate rules and detects
// fired/cleared transitions for alerting.
package burn

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samijaber1/aegis-gate/internal/sli"
	"github.com/samijaber1/aegis-gate/internal/slo"
)

// defaultRuleConcurrency bounds how many rules are queried at once against
// the SLI source.
const defaultRuleConcurrency = 4

// Evaluator computes burn rate readings for an SLO's rules. It owns the only
// persistent state in the subsystem: the prior fired flag per (SLO, rule),
// used to detect edge transitions. A restart loses this state, which
// fails open to "not yet fired"; the next sustained breach re-fires.
type Evaluator struct {
	source      sli.Source
	concurrency int

	mu    sync.Mutex
	prior map[string][]bool
}

// NewEvaluator creates an evaluator reading from the given source.
func NewEvaluator(source sli.Source) *Evaluator {
	return &Evaluator{
		source:      source,
		concurrency: defaultRuleConcurrency,
		prior:       make(map[string][]bool),
	}
}

// Evaluate runs every burn rate rule of def against the source. Rules are
// queried concurrently; readings come back ordered by rule index so alert
// emission stays deterministic.
//
// A rule whose windows hold zero samples is skipped: it neither fires nor
// clears. A rule whose queries fail is reported in Result.RuleErrors and its
// prior edge state is left untouched, so transient source errors cannot flap
// alerts. Either way the remaining rules still evaluate.
func (e *Evaluator) Evaluate(ctx context.Context, def *slo.SLO, now time.Time) (*Result, error) {
	rules := def.Spec.BurnRateRules
	readings := make([]Reading, len(rules))
	ruleErrs := make([]error, len(rules))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range rules {
		g.Go(func() error {
			readings[i], ruleErrs[i] = e.evaluateRule(gctx, def, rules[i], i, now)
			return nil
		})
	}
	// Goroutines never return errors; failures are captured per rule.
	_ = g.Wait()

	result := &Result{Readings: readings}
	for i, err := range ruleErrs {
		if err != nil {
			result.RuleErrors = append(result.RuleErrors, &RuleError{
				RuleIndex: i,
				RuleName:  rules[i].Name,
				Err:       err,
			})
		}
	}
	result.Partial = len(result.RuleErrors) > 0

	result.Events = e.applyTransitions(def, readings, ruleErrs, now)

	return result, nil
}

// evaluateRule fetches both windows for one rule and computes its burns.
func (e *Evaluator) evaluateRule(ctx context.Context, def *slo.SLO, rule slo.BurnRateRule, index int, now time.Time) (Reading, error) {
	reading := Reading{Rule: rule, RuleIndex: index}

	shortBurn, err := e.windowBurn(ctx, def, rule.ShortWindow, now)
	if err != nil {
		if sli.IsInsufficientData(err) {
			reading.Skipped = true
			return reading, nil
		}
		return reading, err
	}

	longBurn, err := e.windowBurn(ctx, def, rule.LongWindow, now)
	if err != nil {
		if sli.IsInsufficientData(err) {
			reading.Skipped = true
			return reading, nil
		}
		return reading, err
	}

	reading.ShortBurn = shortBurn
	reading.LongBurn = longBurn
	// Dual-window confirmation: a short transient spike alone cannot fire.
	reading.Fired = shortBurn >= rule.Threshold && longBurn >= rule.Threshold
	return reading, nil
}

// windowBurn computes the observed burn rate over [now-window, now):
// the error rate divided by the allowed error rate.
func (e *Evaluator) windowBurn(ctx context.Context, def *slo.SLO, window string, now time.Time) (float64, error) {
	d, err := slo.ParseDuration(window)
	if err != nil {
		return 0, err
	}

	from := now.Add(-d)
	count, err := e.source.SampleCount(ctx, def.Metadata.Service, from, now)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, &sli.InsufficientDataError{Service: def.Metadata.Service, From: from, To: now}
	}

	ratio, err := e.source.SuccessRatio(ctx, def.Metadata.Service, from, now)
	if err != nil {
		return 0, err
	}

	return (1 - ratio) / (1 - def.Spec.TargetRatio), nil
}

// applyTransitions compares readings against the prior edge state and emits
// alert events for false->true and true->false flips. Skipped and errored
// rules leave their slot unchanged.
func (e *Evaluator) applyTransitions(def *slo.SLO, readings []Reading, ruleErrs []error, now time.Time) []AlertEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	prior, ok := e.prior[def.Metadata.Name]
	if !ok || len(prior) != len(readings) {
		prior = make([]bool, len(readings))
		e.prior[def.Metadata.Name] = prior
	}

	var events []AlertEvent
	for i, reading := range readings {
		if reading.Skipped || ruleErrs[i] != nil {
			continue
		}
		if reading.Fired == prior[i] {
			continue
		}

		transition := TransitionFired
		if !reading.Fired {
			transition = TransitionCleared
		}
		events = append(events, newAlertEvent(def, reading, transition, now))
		prior[i] = reading.Fired
	}

	return events
}

// Reset drops the edge state for one SLO, e.g. after its definition is
// reloaded with a different rule set.
func (e *Evaluator) Reset(sloName string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.prior, sloName)
}
