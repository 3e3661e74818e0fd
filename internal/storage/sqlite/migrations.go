package sqlite

// Schema defines the SQLite database schema
const Schema = `
-- SLO definitions table
CREATE TABLE IF NOT EXISTS slo_definitions (
	name TEXT PRIMARY KEY,
	service TEXT NOT NULL,
	environment TEXT NOT NULL,
	target_ratio REAL NOT NULL,
	window TEXT NOT NULL,
	evaluation_interval TEXT NOT NULL,
	spec_json TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_slo_service_env ON slo_definitions(service, environment);

-- Evaluations audit table
CREATE TABLE IF NOT EXISTS evaluations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	slo_name TEXT NOT NULL,
	service TEXT NOT NULL,
	environment TEXT NOT NULL,
	status TEXT NOT NULL,
	success_ratio REAL NOT NULL,
	sample_count INTEGER NOT NULL,
	remaining_units REAL NOT NULL,
	remaining_ratio REAL NOT NULL,
	partial BOOLEAN NOT NULL DEFAULT 0,
	readings_json TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (slo_name) REFERENCES slo_definitions(name)
);

CREATE INDEX IF NOT EXISTS idx_evaluations_slo_name ON evaluations(slo_name);
CREATE INDEX IF NOT EXISTS idx_evaluations_service_env ON evaluations(service, environment);
CREATE INDEX IF NOT EXISTS idx_evaluations_status ON evaluations(status);
CREATE INDEX IF NOT EXISTS idx_evaluations_timestamp ON evaluations(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at DESC);

-- Latest state table (one row per SLO)
CREATE TABLE IF NOT EXISTS latest_state (
	slo_name TEXT PRIMARY KEY,
	service TEXT NOT NULL,
	environment TEXT NOT NULL,
	status TEXT NOT NULL,
	success_ratio REAL NOT NULL,
	sample_count INTEGER NOT NULL,
	remaining_units REAL NOT NULL,
	remaining_ratio REAL NOT NULL,
	partial BOOLEAN NOT NULL DEFAULT 0,
	readings_json TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (slo_name) REFERENCES slo_definitions(name)
);

CREATE INDEX IF NOT EXISTS idx_latest_state_service_env ON latest_state(service, environment);

-- Alert transition events table
CREATE TABLE IF NOT EXISTS alert_events (
	id TEXT PRIMARY KEY,
	slo_name TEXT NOT NULL,
	service TEXT NOT NULL,
	rule TEXT NOT NULL,
	severity TEXT NOT NULL,
	transition TEXT NOT NULL,
	short_burn REAL NOT NULL,
	long_burn REAL NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_alert_events_slo_name ON alert_events(slo_name);
CREATE INDEX IF NOT EXISTS idx_alert_events_timestamp ON alert_events(timestamp DESC);

-- Release decisions table
CREATE TABLE IF NOT EXISTS decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	slo_name TEXT NOT NULL,
	service TEXT NOT NULL,
	risk TEXT NOT NULL,
	decision TEXT NOT NULL,
	rationale TEXT NOT NULL,
	conditions_json TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_decisions_slo_name ON decisions(slo_name);
CREATE INDEX IF NOT EXISTS idx_decisions_decision ON decisions(decision);
CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON decisions(timestamp DESC);
`
