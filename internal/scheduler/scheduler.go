// Package scheduler drives periodic SLO evaluations: one goroutine per SLO,
// each ticking its own pipeline at the SLO's evaluation interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/samijaber1/aegis-gate/internal/engine"
	"github.com/samijaber1/aegis-gate/internal/metrics"
	"github.com/samijaber1/aegis-gate/internal/notify"
	"github.com/samijaber1/aegis-gate/internal/sli"
	"github.com/samijaber1/aegis-gate/internal/slo"
	"github.com/samijaber1/aegis-gate/internal/storage"
)

// Scheduler owns the evaluation pipelines and their tick loops. Each SLO
// gets exactly one pipeline, so each edge-state map has a single writer.
type Scheduler struct {
	source       sli.Source
	notifier     notify.Notifier
	collectors   *metrics.Metrics
	logger       *zap.Logger
	sloDirectory string
	schemaPath   string
	tickTimeout  time.Duration

	cache  *StateCache
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	pipelines map[string]*engine.Pipeline
	slos      []slo.SLOWithFile
	audit     storage.AuditStorage
	running   bool
}

// Config collects scheduler construction parameters.
type Config struct {
	SLODirectory string
	SchemaPath   string
	TickTimeout  time.Duration
}

// New creates a scheduler. Call LoadSLOs before Start.
func New(source sli.Source, notifier notify.Notifier, collectors *metrics.Metrics, logger *zap.Logger, cfg Config) *Scheduler {
	tickTimeout := cfg.TickTimeout
	if tickTimeout <= 0 {
		tickTimeout = engine.DefaultTickTimeout
	}
	return &Scheduler{
		source:       source,
		notifier:     notifier,
		collectors:   collectors,
		logger:       logger.Named("scheduler"),
		sloDirectory: cfg.SLODirectory,
		schemaPath:   cfg.SchemaPath,
		tickTimeout:  tickTimeout,
		cache:        NewStateCache(),
		pipelines:    make(map[string]*engine.Pipeline),
	}
}

// SetAuditStorage sets the audit storage backend (optional).
func (s *Scheduler) SetAuditStorage(audit storage.AuditStorage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = audit
}

// LoadSLOs loads, validates and wires SLOs from the configured directory.
func (s *Scheduler) LoadSLOs() error {
	validator, err := slo.NewValidator(s.schemaPath)
	if err != nil {
		return fmt.Errorf("failed to create validator: %w", err)
	}

	if validationErrors := validator.ValidateDirectory(s.sloDirectory); len(validationErrors) > 0 {
		for _, verr := range validationErrors {
			s.logger.Error("invalid SLO definition", zap.String("file", verr.File), zap.String("path", verr.Path), zap.String("problem", verr.Message))
		}
		return fmt.Errorf("SLO validation failed: %d errors", len(validationErrors))
	}

	sloFiles, loadErrors := slo.LoadFromDirectory(s.sloDirectory)
	if len(loadErrors) > 0 {
		return fmt.Errorf("failed to load SLOs: %d errors", len(loadErrors))
	}
	if len(sloFiles) == 0 {
		return fmt.Errorf("no SLOs found in %s", s.sloDirectory)
	}

	pipelines := make(map[string]*engine.Pipeline, len(sloFiles))
	for _, sloWithFile := range sloFiles {
		def := sloWithFile.SLO
		pipelines[def.Metadata.Name] = engine.NewPipeline(def, s.source, s.notifier, s.logger,
			engine.WithTickTimeout(s.tickTimeout),
			engine.WithMetrics(s.collectors),
		)
	}

	s.mu.Lock()
	s.slos = sloFiles
	s.pipelines = pipelines
	audit := s.audit
	s.mu.Unlock()

	if audit != nil {
		for _, sloWithFile := range sloFiles {
			if err := audit.StoreSLODefinition(sloWithFile.SLO); err != nil {
				s.logger.Warn("failed to store SLO definition",
					zap.String("slo", sloWithFile.SLO.Metadata.Name), zap.Error(err))
			}
		}
	}

	s.logger.Info("loaded SLOs", zap.Int("count", len(sloFiles)))
	return nil
}

// Start begins the evaluation loops.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	if len(s.slos) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no SLOs loaded, call LoadSLOs() first")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	slos := s.slos
	s.mu.Unlock()

	for _, sloWithFile := range slos {
		s.wg.Add(1)
		go s.evaluateLoop(ctx, sloWithFile.SLO)
	}

	s.logger.Info("scheduler started", zap.Int("slos", len(slos)))
	return nil
}

// Stop stops the scheduler and waits for in-flight evaluations.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// evaluateLoop runs periodic evaluations for a single SLO.
func (s *Scheduler) evaluateLoop(ctx context.Context, def *slo.SLO) {
	defer s.wg.Done()

	interval, err := slo.ParseDuration(def.Spec.EvaluationInterval)
	if err != nil {
		s.logger.Error("invalid evaluation interval",
			zap.String("slo", def.Metadata.Name), zap.Error(err))
		return
	}

	s.evaluateOnce(ctx, def.Metadata.Name, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evaluateOnce(ctx, def.Metadata.Name, interval)
		}
	}
}

// evaluateOnce performs a single evaluation tick for one SLO.
func (s *Scheduler) evaluateOnce(ctx context.Context, sloName string, interval time.Duration) {
	s.mu.RLock()
	pipeline, ok := s.pipelines[sloName]
	audit := s.audit
	s.mu.RUnlock()
	if !ok {
		return
	}

	now := time.Now()
	logger := s.logger.With(zap.String("slo", sloName))

	eval, err := pipeline.Evaluate(ctx, now)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrEvaluationInProgress):
			// A slow previous tick is still running; never overlap it.
			logger.Warn("tick skipped, previous evaluation still running")
		case sli.IsInsufficientData(err):
			// Unknown, not healthy. Keep whatever state was cached before;
			// readers see its age through the TTL.
			logger.Warn("insufficient data, status unknown", zap.Error(err))
		default:
			logger.Error("evaluation failed", zap.Error(err))
		}
		return
	}

	s.cache.Set(sloName, &EvaluationState{
		Evaluation: eval,
		UpdatedAt:  now,
		TTL:        interval,
	})

	if audit != nil {
		if err := audit.StoreEvaluation(eval); err != nil {
			logger.Warn("failed to store evaluation", zap.Error(err))
		}
		if err := audit.UpdateLatestState(eval); err != nil {
			logger.Warn("failed to update latest state", zap.Error(err))
		}
		if len(eval.Events) > 0 {
			if err := audit.StoreAlertEvents(eval.Events); err != nil {
				logger.Warn("failed to store alert events", zap.Error(err))
			}
		}
	}

	logger.Info("evaluated SLO",
		zap.Stringer("status", eval.Status),
		zap.Float64("remaining_ratio", eval.Budget.RemainingRatio),
		zap.Bool("partial", eval.Partial),
		zap.Int("events", len(eval.Events)),
	)
}

// GetCache returns the state cache.
func (s *Scheduler) GetCache() *StateCache {
	return s.cache
}

// GetAuditStorage returns the audit storage backend.
func (s *Scheduler) GetAuditStorage() storage.AuditStorage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audit
}

// GetSLOs returns the loaded SLOs.
func (s *Scheduler) GetSLOs() []slo.SLOWithFile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]slo.SLOWithFile, len(s.slos))
	copy(result, s.slos)
	return result
}

// SetSLOsForTest installs SLOs and pipelines directly (for testing only).
func (s *Scheduler) SetSLOsForTest(slos []slo.SLOWithFile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slos = slos
	s.pipelines = make(map[string]*engine.Pipeline, len(slos))
	for _, sloWithFile := range slos {
		def := sloWithFile.SLO
		s.pipelines[def.Metadata.Name] = engine.NewPipeline(def, s.source, s.notifier, s.logger,
			engine.WithTickTimeout(s.tickTimeout),
			engine.WithMetrics(s.collectors),
		)
	}
}

// EvaluateNow forces an immediate evaluation of a specific SLO.
func (s *Scheduler) EvaluateNow(sloName string) error {
	s.mu.RLock()
	var target *slo.SLO
	for _, sloWithFile := range s.slos {
		if sloWithFile.SLO.Metadata.Name == sloName {
			target = sloWithFile.SLO
			break
		}
	}
	s.mu.RUnlock()

	if target == nil {
		return fmt.Errorf("SLO not found: %s", sloName)
	}

	interval, err := slo.ParseDuration(target.Spec.EvaluationInterval)
	if err != nil {
		return fmt.Errorf("invalid evaluation interval: %w", err)
	}

	s.evaluateOnce(context.Background(), sloName, interval)
	return nil
}
