// Package synthetic is a deterministic SLI source backed by fixtures, used
// in tests and in demo mode.
package synthetic

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/samijaber1/aegis-gate/internal/sli"
	"github.com/samijaber1/aegis-gate/internal/slo"
)

// WindowData holds good/total counts for one window.
type WindowData struct {
	Good  float64 `json:"good"`
	Total float64 `json:"total"`
}

// Fixture maps compact window strings ("5m", "1h", "30d") to observations.
type Fixture struct {
	Windows map[string]WindowData `json:"windows"`
}

// Adapter serves fixtures keyed by service name.
type Adapter struct {
	mu       sync.RWMutex
	fixtures map[string]*Fixture
}

// NewAdapter creates an empty synthetic adapter.
func NewAdapter() *Adapter {
	return &Adapter{fixtures: make(map[string]*Fixture)}
}

// LoadFixture loads a fixture for a service from a JSON file.
func (a *Adapter) LoadFixture(service string, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fixture: %w", err)
	}

	var fixture Fixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		return fmt.Errorf("failed to parse fixture: %w", err)
	}

	a.SetFixture(service, &fixture)
	return nil
}

// SetFixture directly installs a fixture for a service.
func (a *Adapter) SetFixture(service string, fixture *Fixture) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fixtures[service] = fixture
}

// SuccessRatio implements sli.Source.
func (a *Adapter) SuccessRatio(ctx context.Context, service string, from, to time.Time) (float64, error) {
	data, err := a.window(service, from, to)
	if err != nil {
		return 0, err
	}
	good := data.Good
	if good > data.Total {
		good = data.Total
	}
	return good / data.Total, nil
}

// SampleCount implements sli.Source.
func (a *Adapter) SampleCount(ctx context.Context, service string, from, to time.Time) (uint64, error) {
	a.mu.RLock()
	fixture, ok := a.fixtures[service]
	a.mu.RUnlock()
	if !ok {
		return 0, sli.Unavailable(service, fmt.Errorf("no fixture for service %q", service))
	}

	window := slo.FormatDuration(to.Sub(from))
	data, ok := fixture.Windows[window]
	if !ok {
		return 0, sli.Unavailable(service, fmt.Errorf("no fixture data for window %q", window))
	}
	return uint64(data.Total), nil
}

// window resolves the fixture entry for [from, to), requiring samples.
func (a *Adapter) window(service string, from, to time.Time) (WindowData, error) {
	a.mu.RLock()
	fixture, ok := a.fixtures[service]
	a.mu.RUnlock()
	if !ok {
		return WindowData{}, sli.Unavailable(service, fmt.Errorf("no fixture for service %q", service))
	}

	window := slo.FormatDuration(to.Sub(from))
	data, ok := fixture.Windows[window]
	if !ok {
		return WindowData{}, sli.Unavailable(service, fmt.Errorf("no fixture data for window %q", window))
	}
	if data.Total == 0 {
		return WindowData{}, &sli.InsufficientDataError{Service: service, From: from, To: to}
	}
	return data, nil
}
