// Package prometheus adapts a Prometheus query API to the SLI source
// contract. Good/total query pairs are registered per service from the SLO
// definitions; windows are substituted into a {{window}} placeholder and
// evaluated as instant queries at the end of the requested range.
package prometheus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"
	"golang.org/x/sync/semaphore"

	"github.com/samijaber1/aegis-gate/internal/sli"
	"github.com/samijaber1/aegis-gate/internal/slo"
)

// Config holds Prometheus adapter configuration.
type Config struct {
	URL            string
	Timeout        time.Duration
	MaxConcurrency int64
	RetryAttempts  uint
}

// DefaultConfig returns default configuration.
func DefaultConfig(prometheusURL string) Config {
	return Config{
		URL:            prometheusURL,
		Timeout:        10 * time.Second,
		MaxConcurrency: 10,
		RetryAttempts:  2,
	}
}

// ServiceQueries is the good/total query pair for one service.
type ServiceQueries struct {
	Good  string
	Total string
}

// Adapter implements sli.Source against a Prometheus server.
type Adapter struct {
	config Config
	client *http.Client
	sem    *semaphore.Weighted

	mu      sync.RWMutex
	queries map[string]ServiceQueries
}

// NewAdapter creates a new Prometheus adapter.
func NewAdapter(config Config) *Adapter {
	if config.RetryAttempts == 0 {
		// Attempts(0) would retry until success; a single attempt is the floor.
		config.RetryAttempts = 1
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 10
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &Adapter{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		sem:     semaphore.NewWeighted(config.MaxConcurrency),
		queries: make(map[string]ServiceQueries),
	}
}

// Register installs the query pair for a service.
func (a *Adapter) Register(service string, queries ServiceQueries) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queries[service] = queries
}

// RegisterSLOs registers the query pairs of all loaded SLO definitions.
func (a *Adapter) RegisterSLOs(slos []slo.SLOWithFile) {
	for _, sloWithFile := range slos {
		a.Register(sloWithFile.SLO.Metadata.Service, ServiceQueries{
			Good:  sloWithFile.SLO.Spec.SLI.Good.PrometheusQuery,
			Total: sloWithFile.SLO.Spec.SLI.Total.PrometheusQuery,
		})
	}
}

// SuccessRatio implements sli.Source.
func (a *Adapter) SuccessRatio(ctx context.Context, service string, from, to time.Time) (float64, error) {
	queries, err := a.queriesFor(service)
	if err != nil {
		return 0, err
	}

	window := slo.FormatDuration(to.Sub(from))
	good, err := a.queryValue(ctx, service, substituteWindow(queries.Good, window), to)
	if err != nil {
		return 0, err
	}
	total, err := a.queryValue(ctx, service, substituteWindow(queries.Total, window), to)
	if err != nil {
		return 0, err
	}

	if total == 0 {
		return 0, &sli.InsufficientDataError{Service: service, From: from, To: to}
	}
	if good > total {
		good = total
	}
	return good / total, nil
}

// SampleCount implements sli.Source.
func (a *Adapter) SampleCount(ctx context.Context, service string, from, to time.Time) (uint64, error) {
	queries, err := a.queriesFor(service)
	if err != nil {
		return 0, err
	}

	window := slo.FormatDuration(to.Sub(from))
	total, err := a.queryValue(ctx, service, substituteWindow(queries.Total, window), to)
	if err != nil {
		return 0, err
	}
	if total < 0 {
		total = 0
	}
	return uint64(total), nil
}

func (a *Adapter) queriesFor(service string) (ServiceQueries, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	queries, ok := a.queries[service]
	if !ok {
		return ServiceQueries{}, sli.Unavailable(service, fmt.Errorf("no queries registered for service %q", service))
	}
	return queries, nil
}

// queryValue executes one instant query with retries and sums the vector.
func (a *Adapter) queryValue(ctx context.Context, service, query string, at time.Time) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return 0, sli.Unavailable(service, fmt.Errorf("semaphore acquire: %w", err))
	}
	defer a.sem.Release(1)

	var result *QueryResponse
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(a.config.RetryAttempts),
	)
	err := r.Do(func() error {
		var queryErr error
		result, queryErr = a.executeQuery(ctx, query, at)
		return queryErr
	})
	if err != nil {
		return 0, sli.Unavailable(service, err)
	}

	return sumVector(result), nil
}

// executeQuery performs a single Prometheus instant query.
func (a *Adapter) executeQuery(ctx context.Context, query string, at time.Time) (*QueryResponse, error) {
	queryURL := fmt.Sprintf("%s/api/v1/query", strings.TrimSuffix(a.config.URL, "/"))

	params := url.Values{}
	params.Add("query", query)
	params.Add("time", strconv.FormatInt(at.Unix(), 10))

	fullURL := queryURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	var result QueryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if result.Status != "success" {
		return nil, fmt.Errorf("prometheus error: %s", result.Error)
	}

	return &result, nil
}

// substituteWindow replaces {{window}} placeholders with the actual window.
func substituteWindow(query string, window string) string {
	return strings.ReplaceAll(query, "{{window}}", window)
}

// sumVector aggregates all vector results by summing them.
func sumVector(resp *QueryResponse) float64 {
	if resp == nil || len(resp.Data.Result) == 0 {
		return 0
	}

	var sum float64
	for _, result := range resp.Data.Result {
		sum += result.Value.Value()
	}

	return sum
}
