// Package gate turns a service health status and a change risk level into a
// release decision.
package gate

import (
	"fmt"

	"github.com/samijaber1/aegis-gate/internal/status"
)

// RiskLevel classifies how risky a proposed change is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// riskOrder lists risk levels from mildest to harshest.
var riskOrder = []RiskLevel{RiskLow, RiskMedium, RiskHigh}

// ParseRiskLevel converts a string to a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh:
		return RiskLevel(s), true
	}
	return "", false
}

// Decision is the gate outcome, ordered from least to most restrictive.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReview  Decision = "review"
	DecisionDelay   Decision = "delay"
	DecisionBlock   Decision = "block"
)

// restrictiveness ranks decisions for the monotonicity check.
var restrictiveness = map[Decision]int{
	DecisionApprove: 0,
	DecisionReview:  1,
	DecisionDelay:   2,
	DecisionBlock:   3,
}

// ReleaseDecision is the gate's verdict plus its reasoning. Pure function
// output; nothing is persisted here.
type ReleaseDecision struct {
	Decision   Decision `json:"decision"`
	Rationale  string   `json:"rationale"`
	Conditions []string `json:"conditions,omitempty"`
}

// Matrix maps (status, risk) to a decision. It must be monotonic in both
// dimensions: a more severe status or a higher risk never yields a less
// restrictive decision.
type Matrix map[status.Status]map[RiskLevel]Decision

// DefaultMatrix is the matrix the engine ships with.
func DefaultMatrix() Matrix {
	return Matrix{
		status.Healthy:   {RiskLow: DecisionApprove, RiskMedium: DecisionApprove, RiskHigh: DecisionReview},
		status.Attention: {RiskLow: DecisionApprove, RiskMedium: DecisionReview, RiskHigh: DecisionDelay},
		status.Warning:   {RiskLow: DecisionReview, RiskMedium: DecisionDelay, RiskHigh: DecisionBlock},
		status.Critical:  {RiskLow: DecisionDelay, RiskMedium: DecisionBlock, RiskHigh: DecisionBlock},
		status.Exhausted: {RiskLow: DecisionBlock, RiskMedium: DecisionBlock, RiskHigh: DecisionBlock},
	}
}

// defaultConditions are prerequisites attached per decision.
var defaultConditions = map[Decision][]string{
	DecisionReview: {"requires sign-off from the service owner"},
	DecisionDelay:  {"re-request the gate once burn rates subside"},
	DecisionBlock:  {"blocked until the error budget recovers"},
}

// Engine applies a decision matrix. Construct once at configuration time;
// Decide never fails afterwards.
type Engine struct {
	matrix Matrix
}

// NewEngine creates an engine with the default matrix.
func NewEngine() *Engine {
	e, err := NewEngineWithMatrix(DefaultMatrix())
	if err != nil {
		// The default matrix is validated by tests; reaching this is a bug.
		panic(err)
	}
	return e
}

// NewEngineWithMatrix creates an engine with a caller-supplied matrix
// override. The matrix is checked for completeness and monotonicity here,
// at configuration load, never at decision time.
func NewEngineWithMatrix(m Matrix) (*Engine, error) {
	if err := validateMatrix(m); err != nil {
		return nil, err
	}
	return &Engine{matrix: m}, nil
}

// Decide looks up the matrix cell for (st, risk) and builds the rationale.
func (e *Engine) Decide(st status.Status, risk RiskLevel) ReleaseDecision {
	decision := e.matrix[st][risk]

	return ReleaseDecision{
		Decision: decision,
		Rationale: fmt.Sprintf("service status is %s; a %s-risk change maps to %s",
			st, risk, decision),
		Conditions: defaultConditions[decision],
	}
}

var allStatuses = []status.Status{
	status.Healthy, status.Attention, status.Warning, status.Critical, status.Exhausted,
}

// validateMatrix checks that every (status, risk) cell is present and that
// restrictiveness never decreases along either dimension.
func validateMatrix(m Matrix) error {
	for _, st := range allStatuses {
		row, ok := m[st]
		if !ok {
			return fmt.Errorf("decision matrix missing row for status %s", st)
		}
		for _, risk := range riskOrder {
			d, ok := row[risk]
			if !ok {
				return fmt.Errorf("decision matrix missing cell (%s, %s)", st, risk)
			}
			if _, ok := restrictiveness[d]; !ok {
				return fmt.Errorf("decision matrix cell (%s, %s) has unknown decision %q", st, risk, d)
			}
		}

		// Along risk, within one status row.
		for i := 1; i < len(riskOrder); i++ {
			prev, cur := row[riskOrder[i-1]], row[riskOrder[i]]
			if restrictiveness[cur] < restrictiveness[prev] {
				return fmt.Errorf("decision matrix not monotonic in risk at status %s: %s -> %s",
					st, prev, cur)
			}
		}
	}

	// Along status, within one risk column.
	for _, risk := range riskOrder {
		for i := 1; i < len(allStatuses); i++ {
			prev := m[allStatuses[i-1]][risk]
			cur := m[allStatuses[i]][risk]
			if restrictiveness[cur] < restrictiveness[prev] {
				return fmt.Errorf("decision matrix not monotonic in status at risk %s: %s -> %s",
					risk, prev, cur)
			}
		}
	}

	return nil
}
