package slo

import "testing"

func TestSeverityRank(t *testing.T) {
	if SeverityCritical.Rank() <= SeverityWarning.Rank() {
		t.Errorf("critical rank %d must exceed warning rank %d",
			SeverityCritical.Rank(), SeverityWarning.Rank())
	}
	if Severity("").Rank() >= SeverityWarning.Rank() {
		t.Error("unknown severities must rank below every known one")
	}
}

func TestSeverityValid(t *testing.T) {
	for _, s := range []Severity{SeverityWarning, SeverityCritical} {
		if !s.Valid() {
			t.Errorf("Valid(%q) = false, want true", s)
		}
	}
	if Severity("fatal").Valid() {
		t.Error("Valid should reject unknown severities")
	}
}
