package storage

import (
	"time"

	"github.com/samijaber1/aegis-gate/internal/burn"
	"github.com/samijaber1/aegis-gate/internal/engine"
	"github.com/samijaber1/aegis-gate/internal/gate"
	"github.com/samijaber1/aegis-gate/internal/slo"
)

// AuditStorage defines the interface for persisting evaluation results,
// alert transitions and release decisions
type AuditStorage interface {
	// StoreSLODefinition persists an SLO definition
	StoreSLODefinition(def *slo.SLO) error

	// StoreEvaluation persists an evaluation result
	StoreEvaluation(eval *engine.Evaluation) error

	// UpdateLatestState updates the latest state for an SLO
	UpdateLatestState(eval *engine.Evaluation) error

	// StoreAlertEvents persists burn-rate alert transitions
	StoreAlertEvents(events []burn.AlertEvent) error

	// StoreDecision persists a release decision taken for an SLO
	StoreDecision(sloName, service string, risk gate.RiskLevel, decision gate.ReleaseDecision, at time.Time) error

	// QueryAudit retrieves evaluation audit records with optional filtering
	QueryAudit(filter AuditFilter) ([]AuditRecord, error)

	// QueryDecisions retrieves release decision records with optional filtering
	QueryDecisions(filter DecisionFilter) ([]DecisionRecord, error)

	// GetLatestState retrieves the latest state for an SLO
	GetLatestState(sloName string) (*LatestState, error)

	// Close closes the storage connection
	Close() error
}

// AuditFilter defines filtering options for evaluation audit queries
type AuditFilter struct {
	SLOName     string
	Service     string
	Environment string
	Status      string // healthy, attention, warning, critical, exhausted
	StartTime   *time.Time
	EndTime     *time.Time
	Limit       int
	Offset      int
}

// DecisionFilter defines filtering options for release decision queries
type DecisionFilter struct {
	SLOName   string
	Service   string
	Decision  string // approve, review, delay, block
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// AuditRecord represents a single evaluation audit entry
type AuditRecord struct {
	ID             int64
	SLOName        string
	Service        string
	Environment    string
	Status         string
	SuccessRatio   float64
	SampleCount    uint64
	RemainingUnits float64
	RemainingRatio float64
	Partial        bool
	Readings       []burn.Reading
	Timestamp      time.Time
	CreatedAt      time.Time
}

// DecisionRecord represents a single release decision entry
type DecisionRecord struct {
	ID         int64
	SLOName    string
	Service    string
	Risk       string
	Decision   string
	Rationale  string
	Conditions []string
	Timestamp  time.Time
	CreatedAt  time.Time
}

// LatestState represents the most recent evaluation state for an SLO
type LatestState struct {
	SLOName        string
	Service        string
	Environment    string
	Status         string
	SuccessRatio   float64
	SampleCount    uint64
	RemainingUnits float64
	RemainingRatio float64
	Partial        bool
	Readings       []burn.Reading
	Timestamp      time.Time
	UpdatedAt      time.Time
}
