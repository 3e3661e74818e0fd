package sli

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Source supplies aggregate success observations for a service over
// half-open time ranges [from, to). Implementations must be idempotent and
// side-effect free; both calls honor context cancellation and deadlines.
type Source interface {
	// SuccessRatio returns the fraction of good events in [from, to),
	// in [0, 1]. A window with zero samples yields an InsufficientDataError.
	SuccessRatio(ctx context.Context, service string, from, to time.Time) (float64, error)

	// SampleCount returns the total number of events observed in [from, to).
	SampleCount(ctx context.Context, service string, from, to time.Time) (uint64, error)
}

// InsufficientDataError reports a window with zero samples. A ratio cannot
// be asserted on no observations, so callers must treat this as "unknown",
// never as healthy.
type InsufficientDataError struct {
	Service string
	From    time.Time
	To      time.Time
}

// Error implements the error interface.
func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("no samples for service %q in [%s, %s)",
		e.Service, e.From.Format(time.RFC3339), e.To.Format(time.RFC3339))
}

// DataUnavailableError reports a source failure (timeout, outage, breaker
// open). It isolates the affected query; other queries keep evaluating.
type DataUnavailableError struct {
	Service string
	Cause   error
}

// Error implements the error interface.
func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("SLI data unavailable for service %q: %v", e.Service, e.Cause)
}

// Unwrap exposes the underlying cause.
func (e *DataUnavailableError) Unwrap() error {
	return e.Cause
}

// IsInsufficientData reports whether err is an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var target *InsufficientDataError
	return errors.As(err, &target)
}

// IsUnavailable reports whether err is a DataUnavailableError.
func IsUnavailable(err error) bool {
	var target *DataUnavailableError
	return errors.As(err, &target)
}

// Unavailable wraps a source failure for the given service. Context
// deadline and cancellation errors are folded in as causes.
func Unavailable(service string, cause error) error {
	return &DataUnavailableError{Service: service, Cause: cause}
}
