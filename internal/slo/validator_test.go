package slo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validSLOYAML = `apiVersion: aegis/v1
kind: SLO
metadata:
  name: checkout-availability
  service: checkout
  owner: payments-team
spec:
  environment: production
  targetRatio: 0.999
  window: 30d
  evaluationInterval: 1m
  sli:
    good:
      prometheusQuery: sum(increase(http_requests_total{job="checkout",code!~"5.."}[{{window}}]))
    total:
      prometheusQuery: sum(increase(http_requests_total{job="checkout"}[{{window}}]))
  burnRateRules:
    - name: fast-burn
      shortWindow: 5m
      longWindow: 1h
      threshold: 14.4
      severity: critical
    - name: slow-burn
      shortWindow: 30m
      longWindow: 6h
      threshold: 6
      severity: warning
`

func writeSLOFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write SLO file: %v", err)
	}
}

func mustNewValidator(t *testing.T) *Validator {
	t.Helper()
	validator, err := NewValidator("../../schemas/slo_v1.json")
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}
	return validator
}

func TestValidator_ValidDefinition(t *testing.T) {
	dir := t.TempDir()
	writeSLOFile(t, dir, "checkout.yaml", validSLOYAML)

	validator := mustNewValidator(t)
	errors := validator.ValidateDirectory(dir)

	if len(errors) != 0 {
		t.Errorf("expected no errors, got %d:", len(errors))
		for _, err := range errors {
			t.Logf("  %v", err)
		}
	}
}

func TestValidator_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeSLOFile(t, dir, "a.yaml", validSLOYAML)
	writeSLOFile(t, dir, "b.yaml", validSLOYAML)

	validator := mustNewValidator(t)
	errors := validator.ValidateDirectory(dir)

	if !hasError(errors, "duplicate name") {
		t.Errorf("expected duplicate name error, got: %v", errors)
	}
}

func TestValidateSemantics(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SLO)
		wantErr string
	}{
		{
			name:    "target ratio of one",
			mutate:  func(s *SLO) { s.Spec.TargetRatio = 1.0 },
			wantErr: "strictly between 0 and 1",
		},
		{
			name:    "target ratio of zero",
			mutate:  func(s *SLO) { s.Spec.TargetRatio = 0 },
			wantErr: "strictly between 0 and 1",
		},
		{
			name: "short window not below long window",
			mutate: func(s *SLO) {
				s.Spec.BurnRateRules[0].ShortWindow = "1h"
				s.Spec.BurnRateRules[0].LongWindow = "1h"
			},
			wantErr: "must be less than longWindow",
		},
		{
			name: "long window exceeds SLO window",
			mutate: func(s *SLO) {
				s.Spec.BurnRateRules[0].LongWindow = "60d"
			},
			wantErr: "must not exceed the SLO window",
		},
		{
			name: "threshold not above one",
			mutate: func(s *SLO) {
				s.Spec.BurnRateRules[0].Threshold = 1.0
			},
			wantErr: "must be greater than 1",
		},
		{
			name: "unknown severity",
			mutate: func(s *SLO) {
				s.Spec.BurnRateRules[0].Severity = "page"
			},
			wantErr: "unknown severity",
		},
		{
			name: "bad evaluation interval",
			mutate: func(s *SLO) {
				s.Spec.EvaluationInterval = "soon"
			},
			wantErr: "invalid duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSLO()
			tt.mutate(s)

			errors := ValidateSemantics([]SLOWithFile{{SLO: s, File: "test.yaml"}})
			if !hasError(errors, tt.wantErr) {
				t.Errorf("expected error containing %q, got: %v", tt.wantErr, errors)
			}
		})
	}
}

func TestLoadFromDirectory_SortsRules(t *testing.T) {
	dir := t.TempDir()

	// slow-burn listed before fast-burn; the loader must reorder by short window
	reordered := strings.Replace(validSLOYAML,
		`  burnRateRules:
    - name: fast-burn
      shortWindow: 5m
      longWindow: 1h
      threshold: 14.4
      severity: critical
    - name: slow-burn
      shortWindow: 30m
      longWindow: 6h
      threshold: 6
      severity: warning
`,
		`  burnRateRules:
    - name: slow-burn
      shortWindow: 30m
      longWindow: 6h
      threshold: 6
      severity: warning
    - name: fast-burn
      shortWindow: 5m
      longWindow: 1h
      threshold: 14.4
      severity: critical
`, 1)
	writeSLOFile(t, dir, "checkout.yaml", reordered)

	slos, errs := LoadFromDirectory(dir)
	if len(errs) != 0 {
		t.Fatalf("unexpected load errors: %v", errs)
	}
	if len(slos) != 1 {
		t.Fatalf("expected 1 SLO, got %d", len(slos))
	}

	rules := slos[0].SLO.Spec.BurnRateRules
	if rules[0].Name != "fast-burn" || rules[1].Name != "slow-burn" {
		t.Errorf("expected rules sorted by ascending short window, got %q then %q",
			rules[0].Name, rules[1].Name)
	}
}

func testSLO() *SLO {
	return &SLO{
		APIVersion: "aegis/v1",
		Kind:       "SLO",
		Metadata: Metadata{
			Name:    "checkout-availability",
			Service: "checkout",
		},
		Spec: Spec{
			Environment:        "production",
			TargetRatio:        0.999,
			Window:             "30d",
			EvaluationInterval: "1m",
			SLI: SLI{
				Good:  QueryRef{PrometheusQuery: "good"},
				Total: QueryRef{PrometheusQuery: "total"},
			},
			BurnRateRules: []BurnRateRule{
				{Name: "fast-burn", ShortWindow: "5m", LongWindow: "1h", Threshold: 14.4, Severity: SeverityCritical},
				{Name: "slow-burn", ShortWindow: "30m", LongWindow: "6h", Threshold: 6, Severity: SeverityWarning},
			},
		},
	}
}

func hasError(errors []ValidationError, substr string) bool {
	for _, err := range errors {
		if strings.Contains(err.Message, substr) {
			return true
		}
	}
	return false
}
