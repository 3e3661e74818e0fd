package api

import (
	"time"
)

// DecisionRequest represents a release gate decision request
type DecisionRequest struct {
	SLOName    string `json:"sloName"`
	Risk       string `json:"risk"`
	ForceFresh bool   `json:"forceFresh,omitempty"`
}

// DecisionResponse represents a release gate decision response
type DecisionResponse struct {
	Decision   string        `json:"decision"`
	Rationale  string        `json:"rationale"`
	Conditions []string      `json:"conditions,omitempty"`
	SLOName    string        `json:"sloName"`
	Service    string        `json:"service"`
	Status     string        `json:"status"`
	Risk       string        `json:"risk"`
	Timestamp  time.Time     `json:"timestamp"`
	TTL        int           `json:"ttl"` // seconds
	Stale      bool          `json:"stale"`
	Partial    bool          `json:"partial"`
	Budget     BudgetInfo    `json:"budget"`
	Readings   []ReadingInfo `json:"readings"`
}

// BudgetInfo contains error budget figures
type BudgetInfo struct {
	SuccessRatio   float64 `json:"successRatio"`
	SampleCount    uint64  `json:"sampleCount"`
	RemainingUnits float64 `json:"remainingUnits"`
	RemainingRatio float64 `json:"remainingRatio"`
}

// ReadingInfo contains burn rate information for one rule
type ReadingInfo struct {
	Rule      string  `json:"rule"`
	Severity  string  `json:"severity"`
	Threshold float64 `json:"threshold"`
	ShortBurn float64 `json:"shortBurn"`
	LongBurn  float64 `json:"longBurn"`
	Fired     bool    `json:"fired"`
	Skipped   bool    `json:"skipped"`
}

// SLOListResponse represents a list of SLOs
type SLOListResponse struct {
	SLOs []SLOSummary `json:"slos"`
}

// SLOSummary contains summary information about an SLO
type SLOSummary struct {
	Name        string  `json:"name"`
	Service     string  `json:"service"`
	Environment string  `json:"environment"`
	TargetRatio float64 `json:"targetRatio"`
}

// StatusResponse represents the evaluation state for a service
type StatusResponse struct {
	Service     string          `json:"service"`
	Status      string          `json:"status"`
	SLOs        []SLOStatusInfo `json:"slos"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// SLOStatusInfo contains the cached status of one SLO
type SLOStatusInfo struct {
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	RemainingRatio float64   `json:"remainingRatio"`
	Partial        bool      `json:"partial"`
	Stale          bool      `json:"stale"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// AuditResponse represents audit query results
type AuditResponse struct {
	Records []AuditRecordResponse `json:"records"`
	Total   int                   `json:"total"`
}

// AuditRecordResponse represents a single evaluation audit record
type AuditRecordResponse struct {
	ID             int64         `json:"id"`
	SLOName        string        `json:"sloName"`
	Service        string        `json:"service"`
	Environment    string        `json:"environment"`
	Status         string        `json:"status"`
	SuccessRatio   float64       `json:"successRatio"`
	SampleCount    uint64        `json:"sampleCount"`
	RemainingUnits float64       `json:"remainingUnits"`
	RemainingRatio float64       `json:"remainingRatio"`
	Partial        bool          `json:"partial"`
	Readings       []ReadingInfo `json:"readings"`
	Timestamp      time.Time     `json:"timestamp"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// DecisionListResponse represents release decision query results
type DecisionListResponse struct {
	Records []DecisionRecordResponse `json:"records"`
	Total   int                      `json:"total"`
}

// DecisionRecordResponse represents a single release decision record
type DecisionRecordResponse struct {
	ID         int64     `json:"id"`
	SLOName    string    `json:"sloName"`
	Service    string    `json:"service"`
	Risk       string    `json:"risk"`
	Decision   string    `json:"decision"`
	Rationale  string    `json:"rationale"`
	Conditions []string  `json:"conditions,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	CreatedAt  time.Time `json:"createdAt"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents readiness check response
type ReadyResponse struct {
	Ready      bool     `json:"ready"`
	SLOsLoaded int      `json:"slosLoaded"`
	Reasons    []string `json:"reasons,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
