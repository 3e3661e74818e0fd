package sli

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// GuardConfig tunes the reliability guard around a Source.
type GuardConfig struct {
	// MaxRequestsPerSecond caps the query rate against the backend.
	MaxRequestsPerSecond float64
	// Burst is the limiter burst size.
	Burst int
	// ConsecutiveFailures opens the breaker once this many calls in a row fail.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// DefaultGuardConfig returns the defaults used by the server.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		MaxRequestsPerSecond: 50,
		Burst:                20,
		ConsecutiveFailures:  5,
		OpenTimeout:          30 * time.Second,
	}
}

// Guard decorates a Source with a rate limiter and a circuit breaker.
// Breaker-open and limiter failures surface as DataUnavailableError, so a
// sick metrics backend degrades queries instead of stalling evaluation.
type Guard struct {
	next    Source
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewGuard wraps next with the given reliability settings.
func NewGuard(next Source, cfg GuardConfig) *Guard {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "sli-source",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		// A window with zero samples is an answer, not a backend failure.
		IsSuccessful: func(err error) bool {
			return err == nil || IsInsufficientData(err)
		},
	})

	return &Guard{
		next:    next,
		cb:      cb,
		limiter: rate.NewLimiter(rate.Limit(cfg.MaxRequestsPerSecond), cfg.Burst),
	}
}

// SuccessRatio implements Source.
func (g *Guard) SuccessRatio(ctx context.Context, service string, from, to time.Time) (float64, error) {
	var ratio float64
	err := g.call(ctx, service, func() error {
		var callErr error
		ratio, callErr = g.next.SuccessRatio(ctx, service, from, to)
		return callErr
	})
	return ratio, err
}

// SampleCount implements Source.
func (g *Guard) SampleCount(ctx context.Context, service string, from, to time.Time) (uint64, error) {
	var count uint64
	err := g.call(ctx, service, func() error {
		var callErr error
		count, callErr = g.next.SampleCount(ctx, service, from, to)
		return callErr
	})
	return count, err
}

func (g *Guard) call(ctx context.Context, service string, fn func() error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return Unavailable(service, err)
	}

	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err == nil {
		return nil
	}

	// Keep the taxonomy intact for downstream errors.As checks.
	if IsInsufficientData(err) || IsUnavailable(err) {
		return err
	}
	return Unavailable(service, err)
}
