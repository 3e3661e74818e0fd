package burn

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samijaber1/aegis-gate/internal/slo"
)

// Reading is one burn rate observation for one rule. Ephemeral: a new slice
// is produced per evaluation tick.
type Reading struct {
	Rule      slo.BurnRateRule
	RuleIndex int
	ShortBurn float64
	LongBurn  float64
	// Fired is true when both windows are at or above the threshold.
	Fired bool
	// Skipped is true when either window had zero samples; the rule neither
	// fired nor cleared this tick.
	Skipped bool
}

// Result aggregates one evaluation tick over all rules of an SLO.
type Result struct {
	// Readings are ordered by rule index.
	Readings []Reading
	// Events are the edge transitions detected this tick.
	Events []AlertEvent
	// Partial is true when some rules failed to evaluate. Callers must not
	// treat a partial result as "no alert".
	Partial bool
	// RuleErrors lists the per-rule failures behind Partial.
	RuleErrors []*RuleError
}

// MaxFiredSeverity returns the highest severity among fired readings.
// The second return is false when no reading fired.
func (r *Result) MaxFiredSeverity() (slo.Severity, bool) {
	var fired bool
	var max slo.Severity
	for _, reading := range r.Readings {
		if !reading.Fired {
			continue
		}
		if !fired || reading.Rule.Severity.Rank() > max.Rank() {
			max = reading.Rule.Severity
		}
		fired = true
	}
	return max, fired
}

// RuleError isolates a failure to one rule so the rest of the evaluation
// can proceed.
type RuleError struct {
	RuleIndex int
	RuleName  string
	Err       error
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s (index %d): %v", e.RuleName, e.RuleIndex, e.Err)
}

// Unwrap exposes the underlying failure.
func (e *RuleError) Unwrap() error {
	return e.Err
}

// Transition marks the direction of an alert edge.
type Transition string

const (
	TransitionFired   Transition = "fired"
	TransitionCleared Transition = "cleared"
)

// AlertEvent is emitted once per edge transition. Delivery to the sink is
// at-least-once; deduplication, if needed, is the sink's job.
type AlertEvent struct {
	ID         string
	Service    string
	SLOName    string
	Rule       string
	Severity   slo.Severity
	Transition Transition
	Timestamp  time.Time
	ShortBurn  float64
	LongBurn   float64
}

func newAlertEvent(def *slo.SLO, reading Reading, transition Transition, now time.Time) AlertEvent {
	return AlertEvent{
		ID:         uuid.NewString(),
		Service:    def.Metadata.Service,
		SLOName:    def.Metadata.Name,
		Rule:       reading.Rule.Name,
		Severity:   reading.Rule.Severity,
		Transition: transition,
		Timestamp:  now,
		ShortBurn:  reading.ShortBurn,
		LongBurn:   reading.LongBurn,
	}
}
