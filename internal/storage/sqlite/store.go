package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/samijaber1/aegis-gate/internal/burn"
	"github.com/samijaber1/aegis-gate/internal/engine"
	"github.com/samijaber1/aegis-gate/internal/gate"
	"github.com/samijaber1/aegis-gate/internal/slo"
	"github.com/samijaber1/aegis-gate/internal/storage"
)

// Store implements AuditStorage using SQLite
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite storage with the given database path
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// StoreSLODefinition persists an SLO definition
func (s *Store) StoreSLODefinition(def *slo.SLO) error {
	specJSON, err := json.Marshal(def.Spec)
	if err != nil {
		return fmt.Errorf("failed to marshal spec: %w", err)
	}

	query := `
		INSERT INTO slo_definitions (name, service, environment, target_ratio, window, evaluation_interval, spec_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			service = excluded.service,
			environment = excluded.environment,
			target_ratio = excluded.target_ratio,
			window = excluded.window,
			evaluation_interval = excluded.evaluation_interval,
			spec_json = excluded.spec_json,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err = s.db.Exec(query,
		def.Metadata.Name,
		def.Metadata.Service,
		def.Spec.Environment,
		def.Spec.TargetRatio,
		def.Spec.Window,
		def.Spec.EvaluationInterval,
		string(specJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to store SLO definition: %w", err)
	}

	return nil
}

// StoreEvaluation persists an evaluation result
func (s *Store) StoreEvaluation(eval *engine.Evaluation) error {
	environment, err := s.lookupEnvironment(eval.SLOName)
	if err != nil {
		return err
	}

	readingsJSON, err := json.Marshal(eval.Readings)
	if err != nil {
		return fmt.Errorf("failed to marshal readings: %w", err)
	}

	query := `
		INSERT INTO evaluations (
			slo_name, service, environment, status, success_ratio, sample_count,
			remaining_units, remaining_ratio, partial, readings_json, timestamp
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		eval.SLOName,
		eval.Service,
		environment,
		eval.Status.String(),
		eval.Budget.SuccessRatio,
		eval.Budget.SampleCount,
		eval.Budget.RemainingUnits,
		eval.Budget.RemainingRatio,
		eval.Partial,
		string(readingsJSON),
		eval.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to store evaluation: %w", err)
	}

	return nil
}

// UpdateLatestState updates the latest state for an SLO
func (s *Store) UpdateLatestState(eval *engine.Evaluation) error {
	environment, err := s.lookupEnvironment(eval.SLOName)
	if err != nil {
		return err
	}

	readingsJSON, err := json.Marshal(eval.Readings)
	if err != nil {
		return fmt.Errorf("failed to marshal readings: %w", err)
	}

	query := `
		INSERT INTO latest_state (
			slo_name, service, environment, status, success_ratio, sample_count,
			remaining_units, remaining_ratio, partial, readings_json, timestamp
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slo_name) DO UPDATE SET
			service = excluded.service,
			environment = excluded.environment,
			status = excluded.status,
			success_ratio = excluded.success_ratio,
			sample_count = excluded.sample_count,
			remaining_units = excluded.remaining_units,
			remaining_ratio = excluded.remaining_ratio,
			partial = excluded.partial,
			readings_json = excluded.readings_json,
			timestamp = excluded.timestamp,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err = s.db.Exec(query,
		eval.SLOName,
		eval.Service,
		environment,
		eval.Status.String(),
		eval.Budget.SuccessRatio,
		eval.Budget.SampleCount,
		eval.Budget.RemainingUnits,
		eval.Budget.RemainingRatio,
		eval.Partial,
		string(readingsJSON),
		eval.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to update latest state: %w", err)
	}

	return nil
}

// StoreAlertEvents persists burn-rate alert transitions
func (s *Store) StoreAlertEvents(events []burn.AlertEvent) error {
	if len(events) == 0 {
		return nil
	}

	query := `
		INSERT INTO alert_events (id, slo_name, service, rule, severity, transition, short_burn, long_burn, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, event := range events {
		_, err := s.db.Exec(query,
			event.ID,
			event.SLOName,
			event.Service,
			event.Rule,
			string(event.Severity),
			string(event.Transition),
			event.ShortBurn,
			event.LongBurn,
			event.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to store alert event %s: %w", event.ID, err)
		}
	}

	return nil
}

// StoreDecision persists a release decision taken for an SLO
func (s *Store) StoreDecision(sloName, service string, risk gate.RiskLevel, decision gate.ReleaseDecision, at time.Time) error {
	conditionsJSON, err := json.Marshal(decision.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}

	query := `
		INSERT INTO decisions (slo_name, service, risk, decision, rationale, conditions_json, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		sloName,
		service,
		string(risk),
		string(decision.Decision),
		decision.Rationale,
		string(conditionsJSON),
		at,
	)
	if err != nil {
		return fmt.Errorf("failed to store decision: %w", err)
	}

	return nil
}

// QueryAudit retrieves evaluation audit records with optional filtering
func (s *Store) QueryAudit(filter storage.AuditFilter) ([]storage.AuditRecord, error) {
	query := `
		SELECT id, slo_name, service, environment, status, success_ratio, sample_count,
		       remaining_units, remaining_ratio, partial, readings_json, timestamp, created_at
		FROM evaluations
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.SLOName != "" {
		query += " AND slo_name = ?"
		args = append(args, filter.SLOName)
	}

	if filter.Service != "" {
		query += " AND service = ?"
		args = append(args, filter.Service)
	}

	if filter.Environment != "" {
		query += " AND environment = ?"
		args = append(args, filter.Environment)
	}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	if filter.StartTime != nil {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartTime)
	}

	if filter.EndTime != nil {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 100" // Default limit
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []storage.AuditRecord
	for rows.Next() {
		var record storage.AuditRecord
		var readingsJSON string

		err := rows.Scan(
			&record.ID,
			&record.SLOName,
			&record.Service,
			&record.Environment,
			&record.Status,
			&record.SuccessRatio,
			&record.SampleCount,
			&record.RemainingUnits,
			&record.RemainingRatio,
			&record.Partial,
			&readingsJSON,
			&record.Timestamp,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal([]byte(readingsJSON), &record.Readings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal readings: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// QueryDecisions retrieves release decision records with optional filtering
func (s *Store) QueryDecisions(filter storage.DecisionFilter) ([]storage.DecisionRecord, error) {
	query := `
		SELECT id, slo_name, service, risk, decision, rationale, conditions_json, timestamp, created_at
		FROM decisions
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.SLOName != "" {
		query += " AND slo_name = ?"
		args = append(args, filter.SLOName)
	}

	if filter.Service != "" {
		query += " AND service = ?"
		args = append(args, filter.Service)
	}

	if filter.Decision != "" {
		query += " AND decision = ?"
		args = append(args, filter.Decision)
	}

	if filter.StartTime != nil {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartTime)
	}

	if filter.EndTime != nil {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 100" // Default limit
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query decision records: %w", err)
	}
	defer rows.Close()

	var records []storage.DecisionRecord
	for rows.Next() {
		var record storage.DecisionRecord
		var conditionsJSON string

		err := rows.Scan(
			&record.ID,
			&record.SLOName,
			&record.Service,
			&record.Risk,
			&record.Decision,
			&record.Rationale,
			&conditionsJSON,
			&record.Timestamp,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal([]byte(conditionsJSON), &record.Conditions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// GetLatestState retrieves the latest state for an SLO
func (s *Store) GetLatestState(sloName string) (*storage.LatestState, error) {
	query := `
		SELECT slo_name, service, environment, status, success_ratio, sample_count,
		       remaining_units, remaining_ratio, partial, readings_json, timestamp, updated_at
		FROM latest_state
		WHERE slo_name = ?
	`

	var state storage.LatestState
	var readingsJSON string

	err := s.db.QueryRow(query, sloName).Scan(
		&state.SLOName,
		&state.Service,
		&state.Environment,
		&state.Status,
		&state.SuccessRatio,
		&state.SampleCount,
		&state.RemainingUnits,
		&state.RemainingRatio,
		&state.Partial,
		&readingsJSON,
		&state.Timestamp,
		&state.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest state: %w", err)
	}

	if err := json.Unmarshal([]byte(readingsJSON), &state.Readings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal readings: %w", err)
	}

	return &state, nil
}

// lookupEnvironment reads the environment recorded with the SLO definition.
func (s *Store) lookupEnvironment(sloName string) (string, error) {
	var environment string
	err := s.db.QueryRow("SELECT environment FROM slo_definitions WHERE name = ?", sloName).
		Scan(&environment)
	if err != nil {
		return "", fmt.Errorf("failed to get SLO metadata: %w", err)
	}
	return environment, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
