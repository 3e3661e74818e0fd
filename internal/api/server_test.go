package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/samijaber1/aegis-gate/internal/adapter/synthetic"
	"github.com/samijaber1/aegis-gate/internal/budget"
	"github.com/samijaber1/aegis-gate/internal/engine"
	"github.com/samijaber1/aegis-gate/internal/gate"
	"github.com/samijaber1/aegis-gate/internal/notify"
	"github.com/samijaber1/aegis-gate/internal/scheduler"
	"github.com/samijaber1/aegis-gate/internal/slo"
	"github.com/samijaber1/aegis-gate/internal/status"
)

func setupTestServer(t *testing.T) (*Server, *scheduler.Scheduler) {
	t.Helper()

	logger := zap.NewNop()
	adapter := synthetic.NewAdapter()
	sched := scheduler.New(adapter, notify.NewLogNotifier(logger), nil, logger, scheduler.Config{
		SLODirectory: "unused",
		SchemaPath:   "unused",
	})

	sched.SetSLOsForTest([]slo.SLOWithFile{
		{
			File: "checkout.yaml",
			SLO: &slo.SLO{
				Metadata: slo.Metadata{Name: "checkout-availability", Service: "checkout"},
				Spec: slo.Spec{
					Environment:        "production",
					TargetRatio:        0.999,
					Window:             "30d",
					EvaluationInterval: "1m",
				},
			},
		},
	})

	// Manually populate cache for testing
	sched.GetCache().Set("checkout-availability", &scheduler.EvaluationState{
		Evaluation: &engine.Evaluation{
			SLOName: "checkout-availability",
			Service: "checkout",
			Budget: budget.State{
				SuccessRatio:   0.9995,
				SampleCount:    100000,
				RemainingUnits: 50,
				RemainingRatio: 0.5,
			},
			Status:    status.Healthy,
			Timestamp: time.Now(),
		},
		UpdatedAt: time.Now(),
		TTL:       30 * time.Second,
	})

	server := NewServer(sched, gate.NewEngine(), nil, nil, logger, ":0")
	return server, sched
}

func doRequest(t *testing.T, server *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	w := doRequest(t, server, "GET", "/healthz", nil)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != "ok" {
		t.Errorf("expected status=ok, got %s", resp.Status)
	}
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name           string
		loadSLOs       bool
		expectedStatus int
		expectedReady  bool
	}{
		{
			name:           "ready with SLOs",
			loadSLOs:       true,
			expectedStatus: http.StatusOK,
			expectedReady:  true,
		},
		{
			name:           "not ready without SLOs",
			loadSLOs:       false,
			expectedStatus: http.StatusServiceUnavailable,
			expectedReady:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, sched := setupTestServer(t)

			if !tt.loadSLOs {
				sched.SetSLOsForTest(nil)
			}

			w := doRequest(t, server, "GET", "/readyz", nil)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			var resp ReadyResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}

			if resp.Ready != tt.expectedReady {
				t.Errorf("expected ready=%v, got %v", tt.expectedReady, resp.Ready)
			}
		})
	}
}

func TestSLOEndpoints(t *testing.T) {
	server, _ := setupTestServer(t)

	w := doRequest(t, server, "GET", "/v1/slo", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var list SLOListResponse
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list.SLOs) != 1 || list.SLOs[0].Name != "checkout-availability" {
		t.Errorf("unexpected SLO list: %+v", list.SLOs)
	}

	w = doRequest(t, server, "GET", "/v1/slo/checkout-availability", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	w = doRequest(t, server, "GET", "/v1/slo/nonexistent", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	w := doRequest(t, server, "GET", "/v1/status/checkout", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp StatusResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != "healthy" {
		t.Errorf("expected service status healthy, got %s", resp.Status)
	}
	if len(resp.SLOs) != 1 {
		t.Fatalf("expected 1 SLO entry, got %d", len(resp.SLOs))
	}
	if resp.SLOs[0].RemainingRatio != 0.5 {
		t.Errorf("expected remainingRatio=0.5, got %f", resp.SLOs[0].RemainingRatio)
	}

	w = doRequest(t, server, "GET", "/v1/status/unknown-service", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestGateDecisionEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	tests := []struct {
		name           string
		request        DecisionRequest
		expectedStatus int
		expectedDec    string
	}{
		{
			name: "healthy low risk approves",
			request: DecisionRequest{
				SLOName: "checkout-availability",
				Risk:    "low",
			},
			expectedStatus: http.StatusOK,
			expectedDec:    "approve",
		},
		{
			name: "healthy high risk needs review",
			request: DecisionRequest{
				SLOName: "checkout-availability",
				Risk:    "high",
			},
			expectedStatus: http.StatusOK,
			expectedDec:    "review",
		},
		{
			name: "missing SLO name",
			request: DecisionRequest{
				Risk: "low",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "invalid risk",
			request: DecisionRequest{
				SLOName: "checkout-availability",
				Risk:    "extreme",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "SLO not found",
			request: DecisionRequest{
				SLOName: "nonexistent",
				Risk:    "low",
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.request)
			w := doRequest(t, server, "POST", "/v1/gate/decision", body)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			if tt.expectedStatus == http.StatusOK {
				var resp DecisionResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}

				if resp.Decision != tt.expectedDec {
					t.Errorf("expected decision=%s, got %s", tt.expectedDec, resp.Decision)
				}

				if resp.SLOName != tt.request.SLOName {
					t.Errorf("expected sloName=%s, got %s", tt.request.SLOName, resp.SLOName)
				}

				if resp.Rationale == "" {
					t.Error("expected rationale to be present")
				}

				if resp.Budget.SuccessRatio != 0.9995 {
					t.Errorf("expected successRatio=0.9995, got %f", resp.Budget.SuccessRatio)
				}
			}
		})
	}
}

func TestAuditEndpoint_NoStorage(t *testing.T) {
	server, _ := setupTestServer(t)

	w := doRequest(t, server, "GET", "/v1/audit", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	w = doRequest(t, server, "GET", "/v1/audit/decisions", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server, _ := setupTestServer(t)

	tests := []struct {
		path   string
		method string
	}{
		{"/healthz", "POST"},
		{"/readyz", "POST"},
		{"/v1/slo", "POST"},
		{"/v1/gate/decision", "GET"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := doRequest(t, server, tt.method, tt.path, nil)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("expected status 405, got %d", w.Code)
			}
		})
	}
}
