package burn

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/samijaber1/aegis-gate/internal/sli"
	"github.com/samijaber1/aegis-gate/internal/slo"
)

// windowedSource serves deterministic observations keyed by window length.
type windowedSource struct {
	windows map[time.Duration]windowObs
}

type windowObs struct {
	ratio float64
	count uint64
	err   error
}

func (s *windowedSource) obs(from, to time.Time) (windowObs, bool) {
	o, ok := s.windows[to.Sub(from)]
	return o, ok
}

func (s *windowedSource) SuccessRatio(ctx context.Context, service string, from, to time.Time) (float64, error) {
	o, ok := s.obs(from, to)
	if !ok {
		return 0, sli.Unavailable(service, context.DeadlineExceeded)
	}
	if o.err != nil {
		return 0, o.err
	}
	return o.ratio, nil
}

func (s *windowedSource) SampleCount(ctx context.Context, service string, from, to time.Time) (uint64, error) {
	o, ok := s.obs(from, to)
	if !ok {
		return 0, sli.Unavailable(service, context.DeadlineExceeded)
	}
	if o.err != nil {
		return 0, o.err
	}
	return o.count, nil
}

// ratioForBurn inverts the burn rate formula for a 0.999 target.
func ratioForBurn(burn float64) float64 {
	return 1 - burn*0.001
}

func burnTestDef() *slo.SLO {
	return &slo.SLO{
		Metadata: slo.Metadata{Name: "checkout-availability", Service: "checkout"},
		Spec: slo.Spec{
			TargetRatio: 0.999,
			Window:      "30d",
			BurnRateRules: []slo.BurnRateRule{
				{Name: "fast-burn", ShortWindow: "5m", LongWindow: "1h", Threshold: 14.4, Severity: slo.SeverityCritical},
				{Name: "slow-burn", ShortWindow: "30m", LongWindow: "6h", Threshold: 6, Severity: slo.SeverityWarning},
			},
		},
	}
}

func healthySource() *windowedSource {
	return &windowedSource{windows: map[time.Duration]windowObs{
		5 * time.Minute:  {ratio: 0.9999, count: 500},
		time.Hour:        {ratio: 0.9999, count: 6000},
		30 * time.Minute: {ratio: 0.9999, count: 3000},
		6 * time.Hour:    {ratio: 0.9999, count: 36000},
	}}
}

func TestEvaluate_DualWindowConfirmation(t *testing.T) {
	tests := []struct {
		name      string
		shortBurn float64
		longBurn  float64
		wantFired bool
	}{
		{"both above threshold", 20, 15, true},
		{"short spike only", 20, 5, false},
		{"long only", 5, 15, false},
		{"both below", 2, 1, false},
		{"just below threshold", 14.3, 14.3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := healthySource()
			source.windows[5*time.Minute] = windowObs{ratio: ratioForBurn(tt.shortBurn), count: 500}
			source.windows[time.Hour] = windowObs{ratio: ratioForBurn(tt.longBurn), count: 6000}

			result, err := NewEvaluator(source).Evaluate(context.Background(), burnTestDef(), time.Now())
			if err != nil {
				t.Fatalf("Evaluate returned error: %v", err)
			}

			fast := result.Readings[0]
			if fast.Fired != tt.wantFired {
				t.Errorf("fired = %v, want %v (short=%.1f long=%.1f)",
					fast.Fired, tt.wantFired, fast.ShortBurn, fast.LongBurn)
			}
			if math.Abs(fast.ShortBurn-tt.shortBurn) > 1e-6 {
				t.Errorf("ShortBurn = %v, want %v", fast.ShortBurn, tt.shortBurn)
			}
			if math.Abs(fast.LongBurn-tt.longBurn) > 1e-6 {
				t.Errorf("LongBurn = %v, want %v", fast.LongBurn, tt.longBurn)
			}
		})
	}
}

// TestEvaluate_ThresholdIsInclusive pins the inclusive comparison at the
// boundary. The fixture keeps every quantity exactly representable in
// float64: a 0.875 target leaves a 0.125 budget, and a 0.75 success ratio
// burns it at exactly 2.0, so the round trip through the ratio cannot drift.
func TestEvaluate_ThresholdIsInclusive(t *testing.T) {
	def := &slo.SLO{
		Metadata: slo.Metadata{Name: "checkout-availability", Service: "checkout"},
		Spec: slo.Spec{
			TargetRatio: 0.875,
			Window:      "30d",
			BurnRateRules: []slo.BurnRateRule{
				{Name: "fast-burn", ShortWindow: "5m", LongWindow: "1h", Threshold: 2, Severity: slo.SeverityCritical},
			},
		},
	}
	source := &windowedSource{windows: map[time.Duration]windowObs{
		5 * time.Minute: {ratio: 0.75, count: 500},
		time.Hour:       {ratio: 0.75, count: 6000},
	}}

	result, err := NewEvaluator(source).Evaluate(context.Background(), def, time.Now())
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}

	fast := result.Readings[0]
	if fast.ShortBurn != 2 || fast.LongBurn != 2 {
		t.Fatalf("burns = %v/%v, want exactly 2/2", fast.ShortBurn, fast.LongBurn)
	}
	if !fast.Fired {
		t.Errorf("fired = false, want true when both windows sit exactly at the threshold")
	}
}

func TestEvaluate_EdgeTransitions(t *testing.T) {
	def := burnTestDef()
	evaluator := NewEvaluator(healthySource())
	now := time.Now()

	// Healthy baseline: nothing fires, nothing clears.
	result, err := evaluator.Evaluate(context.Background(), def, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Events) != 0 {
		t.Fatalf("expected no events on healthy baseline, got %v", result.Events)
	}

	// Sustained fast burn: fired event with critical severity, exactly once.
	burning := healthySource()
	burning.windows[5*time.Minute] = windowObs{ratio: ratioForBurn(20), count: 500}
	burning.windows[time.Hour] = windowObs{ratio: ratioForBurn(15), count: 6000}
	evaluator.source = burning

	result, err = evaluator.Evaluate(context.Background(), def, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Events) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(result.Events))
	}
	event := result.Events[0]
	if event.Transition != TransitionFired || event.Severity != slo.SeverityCritical {
		t.Errorf("expected critical fired event, got %+v", event)
	}
	if event.ID == "" {
		t.Error("event must carry an ID")
	}
	if event.Service != "checkout" || event.Rule != "fast-burn" {
		t.Errorf("event misattributed: %+v", event)
	}

	// Still burning: no repeat event.
	result, err = evaluator.Evaluate(context.Background(), def, now.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Events) != 0 {
		t.Errorf("expected no repeat events while still fired, got %v", result.Events)
	}

	// Recovery: cleared event.
	evaluator.source = healthySource()
	result, err = evaluator.Evaluate(context.Background(), def, now.Add(3*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Events) != 1 || result.Events[0].Transition != TransitionCleared {
		t.Fatalf("expected one cleared event, got %v", result.Events)
	}
}

func TestEvaluate_ZeroSamplesSkipsRule(t *testing.T) {
	source := healthySource()
	source.windows[5*time.Minute] = windowObs{count: 0}

	result, err := NewEvaluator(source).Evaluate(context.Background(), burnTestDef(), time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if !result.Readings[0].Skipped {
		t.Error("expected fast-burn rule to be skipped on zero samples")
	}
	if result.Readings[0].Fired {
		t.Error("a skipped rule must not fire")
	}
	if result.Partial {
		t.Error("zero samples is a skip, not a partial failure")
	}
	if result.Readings[1].Skipped {
		t.Error("slow-burn rule should still evaluate")
	}
}

func TestEvaluate_RuleFailureIsIsolated(t *testing.T) {
	def := burnTestDef()
	evaluator := NewEvaluator(healthySource())
	now := time.Now()

	// Fire the fast rule first so we can check its state survives an outage.
	burning := healthySource()
	burning.windows[5*time.Minute] = windowObs{ratio: ratioForBurn(20), count: 500}
	burning.windows[time.Hour] = windowObs{ratio: ratioForBurn(15), count: 6000}
	evaluator.source = burning
	if _, err := evaluator.Evaluate(context.Background(), def, now); err != nil {
		t.Fatal(err)
	}

	// Short window now unavailable: the rule errors, the other still works.
	broken := healthySource()
	broken.windows[5*time.Minute] = windowObs{err: sli.Unavailable("checkout", context.DeadlineExceeded)}
	evaluator.source = broken

	result, err := evaluator.Evaluate(context.Background(), def, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	if !result.Partial {
		t.Error("expected partial result")
	}
	if len(result.RuleErrors) != 1 || result.RuleErrors[0].RuleIndex != 0 {
		t.Fatalf("expected one error for rule 0, got %v", result.RuleErrors)
	}
	if !sli.IsUnavailable(result.RuleErrors[0]) {
		t.Errorf("rule error should unwrap to DataUnavailableError, got %v", result.RuleErrors[0].Err)
	}
	if len(result.Events) != 0 {
		t.Errorf("an errored rule must not clear its prior fired state, got events %v", result.Events)
	}

	// Recovery below threshold: the earlier fired state is still tracked,
	// so the rule now clears.
	evaluator.source = healthySource()
	result, err = evaluator.Evaluate(context.Background(), def, now.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Events) != 1 || result.Events[0].Transition != TransitionCleared {
		t.Fatalf("expected cleared event after recovery, got %v", result.Events)
	}
}

func TestMaxFiredSeverity(t *testing.T) {
	result := &Result{Readings: []Reading{
		{Rule: slo.BurnRateRule{Severity: slo.SeverityWarning}, Fired: true},
		{Rule: slo.BurnRateRule{Severity: slo.SeverityCritical}, Fired: false},
	}}

	severity, fired := result.MaxFiredSeverity()
	if !fired || severity != slo.SeverityWarning {
		t.Errorf("expected warning, got %v fired=%v", severity, fired)
	}

	result.Readings[1].Fired = true
	severity, _ = result.MaxFiredSeverity()
	if severity != slo.SeverityCritical {
		t.Errorf("critical must outrank warning, got %v", severity)
	}

	// Order independent: a lower severity firing after a higher one must
	// not win.
	result.Readings[0], result.Readings[1] = result.Readings[1], result.Readings[0]
	severity, _ = result.MaxFiredSeverity()
	if severity != slo.SeverityCritical {
		t.Errorf("critical must outrank warning regardless of order, got %v", severity)
	}

	result.Readings[0].Fired = false
	result.Readings[1].Fired = false
	if _, fired := result.MaxFiredSeverity(); fired {
		t.Error("expected no fired severity")
	}
}
