// Package api exposes the evaluation state and the release gate over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/samijaber1/aegis-gate/internal/burn"
	"github.com/samijaber1/aegis-gate/internal/gate"
	"github.com/samijaber1/aegis-gate/internal/metrics"
	"github.com/samijaber1/aegis-gate/internal/scheduler"
	"github.com/samijaber1/aegis-gate/internal/status"
	"github.com/samijaber1/aegis-gate/internal/storage"
)

// Server is the HTTP API server
type Server struct {
	scheduler  *scheduler.Scheduler
	engine     *gate.Engine
	collectors *metrics.Metrics
	gatherer   prometheus.Gatherer
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates a new API server
func NewServer(sched *scheduler.Scheduler, engine *gate.Engine, collectors *metrics.Metrics, gatherer prometheus.Gatherer, logger *zap.Logger, addr string) *Server {
	s := &Server{
		scheduler:  sched,
		engine:     engine,
		collectors: collectors,
		gatherer:   gatherer,
		logger:     logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	// Health endpoints
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	// SLO endpoints
	r.Get("/v1/slo", s.handleSLOList)
	r.Get("/v1/slo/{name}", s.handleSLOGet)

	// Status endpoint
	r.Get("/v1/status/{service}", s.handleStatus)

	// Gate decision endpoint
	r.Post("/v1/gate/decision", s.handleGateDecision)

	// Audit endpoints
	r.Get("/v1/audit", s.handleAudit)
	r.Get("/v1/audit/decisions", s.handleAuditDecisions)

	// Prometheus metrics
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the configured router, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting API server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady handles GET /readyz
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	slos := s.scheduler.GetSLOs()
	cacheSize := s.scheduler.GetCache().Size()

	ready := len(slos) > 0
	reasons := []string{}

	if len(slos) == 0 {
		reasons = append(reasons, "no SLOs loaded")
	}

	if cacheSize == 0 {
		reasons = append(reasons, "no evaluations cached yet")
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, ReadyResponse{
		Ready:      ready,
		SLOsLoaded: len(slos),
		Reasons:    reasons,
	})
}

// handleSLOList handles GET /v1/slo
func (s *Server) handleSLOList(w http.ResponseWriter, r *http.Request) {
	slos := s.scheduler.GetSLOs()

	summaries := make([]SLOSummary, 0, len(slos))
	for _, sloWithFile := range slos {
		summaries = append(summaries, SLOSummary{
			Name:        sloWithFile.SLO.Metadata.Name,
			Service:     sloWithFile.SLO.Metadata.Service,
			Environment: sloWithFile.SLO.Spec.Environment,
			TargetRatio: sloWithFile.SLO.Spec.TargetRatio,
		})
	}

	respondJSON(w, http.StatusOK, SLOListResponse{SLOs: summaries})
}

// handleSLOGet handles GET /v1/slo/{name}
func (s *Server) handleSLOGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	for _, sloWithFile := range s.scheduler.GetSLOs() {
		if sloWithFile.SLO.Metadata.Name == name {
			respondJSON(w, http.StatusOK, sloWithFile.SLO)
			return
		}
	}

	respondError(w, http.StatusNotFound, fmt.Sprintf("SLO not found: %s", name))
}

// handleStatus handles GET /v1/status/{service}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")

	cache := s.scheduler.GetCache()
	now := time.Now()

	var infos []SLOStatusInfo
	worst := status.Healthy
	var lastUpdated time.Time

	for _, sloWithFile := range s.scheduler.GetSLOs() {
		if sloWithFile.SLO.Metadata.Service != service {
			continue
		}
		name := sloWithFile.SLO.Metadata.Name

		state, ok := cache.Get(name)
		if !ok {
			infos = append(infos, SLOStatusInfo{Name: name, Status: "unknown", Stale: true})
			continue
		}

		st := state.Evaluation.Status
		if st > worst {
			worst = st
		}
		if state.UpdatedAt.After(lastUpdated) {
			lastUpdated = state.UpdatedAt
		}

		infos = append(infos, SLOStatusInfo{
			Name:           name,
			Status:         st.String(),
			RemainingRatio: state.Evaluation.Budget.RemainingRatio,
			Partial:        state.Evaluation.Partial,
			Stale:          state.IsStale(now),
			UpdatedAt:      state.UpdatedAt,
		})
	}

	if len(infos) == 0 {
		respondError(w, http.StatusNotFound, fmt.Sprintf("no SLOs found for service=%s", service))
		return
	}

	respondJSON(w, http.StatusOK, StatusResponse{
		Service:     service,
		Status:      worst.String(),
		SLOs:        infos,
		LastUpdated: lastUpdated,
	})
}

// handleGateDecision handles POST /v1/gate/decision
func (s *Server) handleGateDecision(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	if req.SLOName == "" {
		respondError(w, http.StatusBadRequest, "sloName required")
		return
	}

	risk, ok := gate.ParseRiskLevel(req.Risk)
	if !ok {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid risk level %q", req.Risk))
		return
	}

	// Force fresh evaluation if requested
	if req.ForceFresh {
		if err := s.scheduler.EvaluateNow(req.SLOName); err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("evaluation failed: %v", err))
			return
		}
	}

	state, ok := s.scheduler.GetCache().Get(req.SLOName)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("no evaluation found for SLO: %s", req.SLOName))
		return
	}

	eval := state.Evaluation
	decision := s.engine.Decide(eval.Status, risk)

	if s.collectors != nil {
		s.collectors.DecisionsTotal.WithLabelValues(string(decision.Decision), string(risk)).Inc()
	}

	if audit := s.scheduler.GetAuditStorage(); audit != nil {
		if err := audit.StoreDecision(eval.SLOName, eval.Service, risk, decision, time.Now()); err != nil {
			s.logger.Warn("failed to store decision", zap.Error(err))
		}
	}

	respondJSON(w, http.StatusOK, DecisionResponse{
		Decision:   string(decision.Decision),
		Rationale:  decision.Rationale,
		Conditions: decision.Conditions,
		SLOName:    eval.SLOName,
		Service:    eval.Service,
		Status:     eval.Status.String(),
		Risk:       string(risk),
		Timestamp:  eval.Timestamp,
		TTL:        int(state.TTL.Seconds()),
		Stale:      state.IsStale(time.Now()),
		Partial:    eval.Partial,
		Budget: BudgetInfo{
			SuccessRatio:   eval.Budget.SuccessRatio,
			SampleCount:    eval.Budget.SampleCount,
			RemainingUnits: eval.Budget.RemainingUnits,
			RemainingRatio: eval.Budget.RemainingRatio,
		},
		Readings: toReadingInfos(eval.Readings),
	})
}

// handleAudit handles GET /v1/audit
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	auditStorage := s.scheduler.GetAuditStorage()
	if auditStorage == nil {
		respondError(w, http.StatusServiceUnavailable, "audit storage not configured")
		return
	}

	query := r.URL.Query()
	filter := storage.AuditFilter{
		SLOName:     query.Get("sloName"),
		Service:     query.Get("service"),
		Environment: query.Get("environment"),
		Status:      query.Get("status"),
	}
	filter.Limit, filter.Offset = parsePaging(query.Get("limit"), query.Get("offset"))
	filter.StartTime, filter.EndTime = parseTimeRange(query.Get("startTime"), query.Get("endTime"))

	records, err := auditStorage.QueryAudit(filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query audit: %v", err))
		return
	}

	responseRecords := make([]AuditRecordResponse, len(records))
	for i, record := range records {
		responseRecords[i] = AuditRecordResponse{
			ID:             record.ID,
			SLOName:        record.SLOName,
			Service:        record.Service,
			Environment:    record.Environment,
			Status:         record.Status,
			SuccessRatio:   record.SuccessRatio,
			SampleCount:    record.SampleCount,
			RemainingUnits: record.RemainingUnits,
			RemainingRatio: record.RemainingRatio,
			Partial:        record.Partial,
			Readings:       toReadingInfos(record.Readings),
			Timestamp:      record.Timestamp,
			CreatedAt:      record.CreatedAt,
		}
	}

	respondJSON(w, http.StatusOK, AuditResponse{
		Records: responseRecords,
		Total:   len(responseRecords),
	})
}

// handleAuditDecisions handles GET /v1/audit/decisions
func (s *Server) handleAuditDecisions(w http.ResponseWriter, r *http.Request) {
	auditStorage := s.scheduler.GetAuditStorage()
	if auditStorage == nil {
		respondError(w, http.StatusServiceUnavailable, "audit storage not configured")
		return
	}

	query := r.URL.Query()
	filter := storage.DecisionFilter{
		SLOName:  query.Get("sloName"),
		Service:  query.Get("service"),
		Decision: query.Get("decision"),
	}
	filter.Limit, filter.Offset = parsePaging(query.Get("limit"), query.Get("offset"))
	filter.StartTime, filter.EndTime = parseTimeRange(query.Get("startTime"), query.Get("endTime"))

	records, err := auditStorage.QueryDecisions(filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query decisions: %v", err))
		return
	}

	responseRecords := make([]DecisionRecordResponse, len(records))
	for i, record := range records {
		responseRecords[i] = DecisionRecordResponse{
			ID:         record.ID,
			SLOName:    record.SLOName,
			Service:    record.Service,
			Risk:       record.Risk,
			Decision:   record.Decision,
			Rationale:  record.Rationale,
			Conditions: record.Conditions,
			Timestamp:  record.Timestamp,
			CreatedAt:  record.CreatedAt,
		}
	}

	respondJSON(w, http.StatusOK, DecisionListResponse{
		Records: responseRecords,
		Total:   len(responseRecords),
	})
}

// Helper functions

func toReadingInfos(readings []burn.Reading) []ReadingInfo {
	infos := make([]ReadingInfo, len(readings))
	for i, reading := range readings {
		infos[i] = ReadingInfo{
			Rule:      reading.Rule.Name,
			Severity:  string(reading.Rule.Severity),
			Threshold: reading.Rule.Threshold,
			ShortBurn: reading.ShortBurn,
			LongBurn:  reading.LongBurn,
			Fired:     reading.Fired,
			Skipped:   reading.Skipped,
		}
	}
	return infos
}

func parsePaging(limitStr, offsetStr string) (limit, offset int) {
	if limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil {
			limit = v
		}
	}
	if offsetStr != "" {
		if v, err := strconv.Atoi(offsetStr); err == nil {
			offset = v
		}
	}
	return limit, offset
}

func parseTimeRange(startStr, endStr string) (start, end *time.Time) {
	if startStr != "" {
		if v, err := time.Parse(time.RFC3339, startStr); err == nil {
			start = &v
		}
	}
	if endStr != "" {
		if v, err := time.Parse(time.RFC3339, endStr); err == nil {
			end = &v
		}
	}
	return start, end
}

func respondJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, ErrorResponse{Error: message})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
