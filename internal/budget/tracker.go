// Package budget converts an SLO target and a rolling observation window
// into an error budget, in bad-event units, and tracks its consumption.
package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/samijaber1/aegis-gate/internal/sli"
	"github.com/samijaber1/aegis-gate/internal/slo"
)

// State is the error budget computed over one rolling window. It is derived
// fresh per evaluation and never mutated afterwards.
//
// The budget is sized against the observed sample volume rather than a fixed
// theoretical allotment, so traffic changes do not distort the ratio.
type State struct {
	// TotalUnits is sampleCount * (1 - targetRatio), the allowed volume of
	// bad events for the window.
	TotalUnits float64
	// ConsumedUnits is sampleCount * (1 - successRatio).
	ConsumedUnits float64
	// RemainingUnits may go negative when over budget.
	RemainingUnits float64
	// RemainingRatio is RemainingUnits / TotalUnits. It can exceed 1 over a
	// partial window; display clamping is the caller's business.
	RemainingRatio float64

	SampleCount  uint64
	SuccessRatio float64
	WindowStart  time.Time
	WindowEnd    time.Time
}

// Compute queries the SLI source over [now-window, now) and derives the
// budget state. Zero samples yield an InsufficientDataError: a ratio cannot
// be asserted without observations. Pure function of its inputs.
func Compute(ctx context.Context, def *slo.SLO, now time.Time, source sli.Source) (State, error) {
	window, err := slo.ParseDuration(def.Spec.Window)
	if err != nil {
		return State{}, fmt.Errorf("invalid SLO window %q: %w", def.Spec.Window, err)
	}

	from := now.Add(-window)
	service := def.Metadata.Service

	count, err := source.SampleCount(ctx, service, from, now)
	if err != nil {
		return State{}, err
	}
	if count == 0 {
		return State{}, &sli.InsufficientDataError{Service: service, From: from, To: now}
	}

	ratio, err := source.SuccessRatio(ctx, service, from, now)
	if err != nil {
		return State{}, err
	}

	samples := float64(count)
	total := samples * (1 - def.Spec.TargetRatio)
	consumed := samples * (1 - ratio)
	remaining := total - consumed

	return State{
		TotalUnits:     total,
		ConsumedUnits:  consumed,
		RemainingUnits: remaining,
		RemainingRatio: remaining / total,
		SampleCount:    count,
		SuccessRatio:   ratio,
		WindowStart:    from,
		WindowEnd:      now,
	}, nil
}
