package slo

// SLO represents a parsed SLO definition file.
type SLO struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   Metadata `yaml:"metadata"`
	Spec       Spec     `yaml:"spec"`
}

// Metadata identifies an SLO and the service it guards.
type Metadata struct {
	Name        string `yaml:"name"`
	Service     string `yaml:"service"`
	Owner       string `yaml:"owner,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Spec contains the SLO specification.
type Spec struct {
	Environment        string         `yaml:"environment"`
	TargetRatio        float64        `yaml:"targetRatio"`
	Window             string         `yaml:"window"`
	EvaluationInterval string         `yaml:"evaluationInterval"`
	SLI                SLI            `yaml:"sli"`
	BurnRateRules      []BurnRateRule `yaml:"burnRateRules"`
}

// SLI names the query pair that yields good and total event counts.
type SLI struct {
	Good  QueryRef `yaml:"good"`
	Total QueryRef `yaml:"total"`
}

// QueryRef contains a Prometheus query with a {{window}} placeholder.
type QueryRef struct {
	PrometheusQuery string `yaml:"prometheusQuery"`
}

// BurnRateRule defines a dual-window burn rate rule. A rule fires only when
// the burn rate over both windows is at or above the threshold.
type BurnRateRule struct {
	Name        string   `yaml:"name"`
	ShortWindow string   `yaml:"shortWindow"`
	LongWindow  string   `yaml:"longWindow"`
	Threshold   float64  `yaml:"threshold"`
	Severity    Severity `yaml:"severity"`
}

// Severity ranks a burn rate rule. Critical outranks Warning.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

var severityRanks = map[Severity]int{
	SeverityWarning:  1,
	SeverityCritical: 2,
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	_, ok := severityRanks[s]
	return ok
}

// Rank orders severities so callers can compare them without enumerating
// the constants. Unknown severities rank below every known one.
func (s Severity) Rank() int {
	return severityRanks[s]
}

// SLOWithFile pairs an SLO with its source file path.
type SLOWithFile struct {
	SLO  *SLO
	File string
}

// ValidationError represents a configuration error for a specific file.
// Definitions that fail validation are rejected at load time; evaluation
// never sees an invalid SLO.
type ValidationError struct {
	File    string
	Path    string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path != "" {
		return e.File + ": " + e.Path + ": " + e.Message
	}
	return e.File + ": " + e.Message
}
