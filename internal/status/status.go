// Package status reduces budget state and burn readings into one discrete
// health status.
package status

import (
	"github.com/samijaber1/aegis-gate/internal/budget"
	"github.com/samijaber1/aegis-gate/internal/burn"
	"github.com/samijaber1/aegis-gate/internal/slo"
)

// Status is a service health classification, totally ordered by severity.
type Status int

const (
	Healthy Status = iota
	Attention
	Warning
	Critical
	Exhausted
)

var statusNames = map[Status]string{
	Healthy:   "healthy",
	Attention: "attention",
	Warning:   "warning",
	Critical:  "critical",
	Exhausted: "exhausted",
}

// String implements fmt.Stringer.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Parse converts a status name back to its Status value.
func Parse(name string) (Status, bool) {
	for s, n := range statusNames {
		if n == name {
			return s, true
		}
	}
	return Healthy, false
}

// attentionThreshold is the remaining-budget ratio below which a service
// deserves attention even with no burn rule fired.
const attentionThreshold = 0.5

// Classify derives the status from the two independent failure signals:
// instantaneous remaining budget and consumption velocity. First match wins.
// A fired burn rule always outranks plain remaining-budget attention, since
// a fast burn is actionable before the budget is literally gone.
func Classify(state budget.State, readings []burn.Reading) Status {
	if state.RemainingUnits <= 0 {
		return Exhausted
	}

	firedSeverity, fired := maxFiredSeverity(readings)
	if fired {
		if firedSeverity == slo.SeverityCritical {
			return Critical
		}
		return Warning
	}

	if state.RemainingRatio < attentionThreshold {
		return Attention
	}

	return Healthy
}

func maxFiredSeverity(readings []burn.Reading) (slo.Severity, bool) {
	result := burn.Result{Readings: readings}
	return result.MaxFiredSeverity()
}
