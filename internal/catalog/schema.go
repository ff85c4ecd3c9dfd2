// Package catalog provides the session catalog for tracking sessions,
// chart records, and cached insights.
package catalog

// Schema contains the SQL schema definitions for the session catalog
// (catalog.db). The catalog is a SQLite database that serves as the
// source of truth for session and chart metadata; figure documents and
// dataset snapshots live in object storage and are referenced by path.

// CreateSessionsTableSQL creates the sessions table. One row per uploaded
// dataset. The column and dataset profiles are stored as JSON so axis kinds
// and upload-time statistics survive restarts without re-profiling the
// snapshot. The snapshot itself persists post-cleaning, so the original
// missing-value counts exist only in profile_json.
const CreateSessionsTableSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    dataset_name TEXT NOT NULL,
    row_count INTEGER NOT NULL,
    column_count INTEGER NOT NULL,
    snapshot_path TEXT NOT NULL,
    snapshot_checksum INTEGER NOT NULL,
    snapshot_bytes INTEGER NOT NULL,
    columns_json TEXT NOT NULL,
    profile_json TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    last_active_at INTEGER NOT NULL
)`

// CreateChartsTableSQL creates the charts table. The UNIQUE constraint on
// (session_id, spec_key) is what makes concurrent generation safe: two
// requests racing on the same spec cannot both insert, whichever loses
// sees a constraint violation and treats the chart as already present.
const CreateChartsTableSQL = `
CREATE TABLE IF NOT EXISTS charts (
    chart_id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    chart_type TEXT NOT NULL,
    x_column TEXT NOT NULL DEFAULT '',
    y_column TEXT NOT NULL DEFAULT '',
    theme TEXT NOT NULL,
    spec_key TEXT NOT NULL,
    key_hash INTEGER NOT NULL,
    title TEXT NOT NULL,
    figure_path TEXT NOT NULL,
    figure_bytes INTEGER NOT NULL,
    render_ms INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions(session_id),
    UNIQUE (session_id, spec_key)
)`

// CreateChartsIndexesSQL creates indexes for the chart access paths.
var CreateChartsIndexesSQL = []string{
	// Gallery listing: all charts of a session in append order
	`CREATE INDEX IF NOT EXISTS idx_charts_session ON charts(session_id, chart_id)`,

	// Key hash probe used by duplicate diagnostics
	`CREATE INDEX IF NOT EXISTS idx_charts_key_hash ON charts(key_hash)`,
}

// CreateSessionsIndexesSQL creates indexes for session sweeps.
var CreateSessionsIndexesSQL = []string{
	// Idle session scan for the retention daemon
	`CREATE INDEX IF NOT EXISTS idx_sessions_last_active ON sessions(last_active_at)`,
}

// CreateInsightsTableSQL creates the insights cache table. Keyed by
// (session_id, prompt_hash) so a repeated insight request over an
// unchanged dataset is served from the catalog instead of the model API.
const CreateInsightsTableSQL = `
CREATE TABLE IF NOT EXISTS insights (
    session_id TEXT NOT NULL,
    prompt_hash TEXT NOT NULL,
    model TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (session_id, prompt_hash),
    FOREIGN KEY (session_id) REFERENCES sessions(session_id)
)`

// CreateSchemaVersionsTableSQL creates the schema versions table.
// This table tracks schema evolution for upgrades in place.
const CreateSchemaVersionsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_versions (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`

// AnalyzeSQL runs ANALYZE to keep the SQLite query planner informed about index statistics.
const AnalyzeSQL = `ANALYZE`

// AllSchemaSQL returns all SQL statements needed to initialize the session catalog.
func AllSchemaSQL() []string {
	statements := []string{
		CreateSessionsTableSQL,
		CreateChartsTableSQL,
		CreateInsightsTableSQL,
		CreateSchemaVersionsTableSQL,
	}
	statements = append(statements, CreateSessionsIndexesSQL...)
	statements = append(statements, CreateChartsIndexesSQL...)
	return statements
}
