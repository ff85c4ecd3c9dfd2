package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/plotforge/plotforge/internal/profile"
	"github.com/plotforge/plotforge/pkg/types"
)

// Sentinel errors returned by catalog operations.
var (
	// ErrSessionNotFound is returned when a session ID has no catalog row.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when creating a session whose ID is taken.
	ErrSessionExists = errors.New("session already exists")
	// ErrChartNotFound is returned when a chart ID has no catalog row.
	ErrChartNotFound = errors.New("chart not found")
	// ErrDuplicateKey is returned when appending a chart whose spec key
	// already exists in the session. Callers treat this as "already
	// generated", not as a failure.
	ErrDuplicateKey = errors.New("duplicate chart key")
)

// Catalog manages session and chart metadata in catalog.db.
type Catalog interface {
	Reader

	// CreateSession adds a new session to the catalog.
	CreateSession(ctx context.Context, rec *SessionRecord) error

	// TouchSession updates a session's last_active_at timestamp.
	TouchSession(ctx context.Context, sessionID string, at time.Time) error

	// DeleteSession removes a session and all its chart and insight rows.
	// Returns the object paths the session referenced (snapshot, profile,
	// figures) so the caller can delete them from storage.
	DeleteSession(ctx context.Context, sessionID string) ([]string, error)

	// AppendChart adds a chart record to a session's library.
	// Returns ErrDuplicateKey if the session already holds the spec key.
	AppendChart(ctx context.Context, rec *ChartRecord) error

	// RemoveChart deletes a chart row and returns the removed record so
	// the caller can delete its figure from storage.
	RemoveChart(ctx context.Context, sessionID, chartID string) (*ChartRecord, error)

	// PutInsight stores or replaces a cached insight.
	PutInsight(ctx context.Context, rec *InsightRecord) error

	// RunAnalyze refreshes SQLite query planner statistics.
	RunAnalyze(ctx context.Context) error

	// Close closes the catalog database connections.
	Close() error
}

// SessionRecord represents an uploaded dataset session.
type SessionRecord struct {
	SessionID        string
	DatasetName      string
	RowCount         int64
	ColumnCount      int
	SnapshotPath     string
	SnapshotChecksum uint64
	SnapshotBytes    int64
	ColumnsJSON      string
	ProfileJSON      string
	CreatedAt        time.Time
	LastActiveAt     time.Time
}

// Columns decodes the session's column profile.
func (r *SessionRecord) Columns() ([]types.Column, error) {
	var cols []types.Column
	if err := json.Unmarshal([]byte(r.ColumnsJSON), &cols); err != nil {
		return nil, fmt.Errorf("catalog: failed to decode columns for session %s: %w", r.SessionID, err)
	}
	return cols, nil
}

// SetColumns encodes the column profile into the record.
func (r *SessionRecord) SetColumns(cols []types.Column) error {
	data, err := json.Marshal(cols)
	if err != nil {
		return fmt.Errorf("catalog: failed to encode columns: %w", err)
	}
	r.ColumnsJSON = string(data)
	return nil
}

// Profile decodes the upload-time dataset profile. Sessions created before
// schema v3 have no stored profile and return (nil, nil).
func (r *SessionRecord) Profile() (*profile.DatasetProfile, error) {
	if r.ProfileJSON == "" {
		return nil, nil
	}
	var prof profile.DatasetProfile
	if err := json.Unmarshal([]byte(r.ProfileJSON), &prof); err != nil {
		return nil, fmt.Errorf("catalog: failed to decode profile for session %s: %w", r.SessionID, err)
	}
	return &prof, nil
}

// SetProfile encodes the dataset profile into the record.
func (r *SessionRecord) SetProfile(prof *profile.DatasetProfile) error {
	data, err := json.Marshal(prof)
	if err != nil {
		return fmt.Errorf("catalog: failed to encode profile: %w", err)
	}
	r.ProfileJSON = string(data)
	return nil
}

// ChartRecord represents one chart in a session's library.
type ChartRecord struct {
	ChartID     string
	SessionID   string
	ChartType   string
	XColumn     string
	YColumn     string
	Theme       string
	SpecKey     string
	KeyHash     uint64
	Title       string
	FigurePath  string
	FigureBytes int64
	RenderMS    int64
	CreatedAt   time.Time
}

// InsightRecord represents a cached model-generated dataset summary.
type InsightRecord struct {
	SessionID  string
	PromptHash string
	Model      string
	Content    string
	CreatedAt  time.Time
}

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool (concurrent readers)
	dbPath string
	mu     sync.Mutex // Write-only lock (reads don't need this)

	// Prepared statement cache
	insertChartStmt *sql.Stmt
	readStmtCache   map[string]*sql.Stmt
	readStmtMu      sync.RWMutex
}

// NewCatalog creates a new SQLite-based catalog.
func NewCatalog(dbPath string) (*SQLiteCatalog, error) {
	// Write connection: single writer with WAL mode
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // Single writer
	db.SetMaxIdleConns(1)

	// Read connection pool: concurrent readers via read-only mode
	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&mode=ro")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	// Enable read_uncommitted on read connections so gallery reads never
	// block behind a generation batch committing chart rows
	if _, err := readDB.Exec("PRAGMA read_uncommitted = true"); err != nil {
		readDB.Close()
		db.Close()
		return nil, fmt.Errorf("catalog: failed to set read_uncommitted pragma: %w", err)
	}

	catalog := &SQLiteCatalog{
		db:            db,
		readDB:        readDB,
		dbPath:        dbPath,
		readStmtCache: make(map[string]*sql.Stmt),
	}

	// Initialize schema (uses write connection)
	if err := catalog.initSchema(); err != nil {
		readDB.Close()
		db.Close()
		return nil, fmt.Errorf("catalog: failed to initialize schema: %w", err)
	}

	// Apply pending schema migrations
	if err := catalog.migrate(context.Background()); err != nil {
		readDB.Close()
		db.Close()
		return nil, err
	}

	// Prepare cached insert statement on write connection
	insertStmt, err := db.Prepare(`
		INSERT INTO charts (
			chart_id, session_id, chart_type, x_column, y_column, theme,
			spec_key, key_hash, title, figure_path, figure_bytes, render_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		readDB.Close()
		db.Close()
		return nil, fmt.Errorf("catalog: failed to prepare insert statement: %w", err)
	}
	catalog.insertChartStmt = insertStmt

	return catalog, nil
}

// initSchema creates all required tables and indexes.
func (c *SQLiteCatalog) initSchema() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// CreateSession adds a new session to the catalog.
func (c *SQLiteCatalog) CreateSession(ctx context.Context, rec *SessionRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO sessions (
			session_id, dataset_name, row_count, column_count,
			snapshot_path, snapshot_checksum, snapshot_bytes, columns_json,
			profile_json, created_at, last_active_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.DatasetName, rec.RowCount, rec.ColumnCount,
		rec.SnapshotPath, int64(rec.SnapshotChecksum), rec.SnapshotBytes, rec.ColumnsJSON,
		rec.ProfileJSON, rec.CreatedAt.Unix(), rec.LastActiveAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSessionExists
		}
		return fmt.Errorf("catalog: failed to insert session: %w", err)
	}

	// Check session count thresholds and warn operators
	c.logSessionCountThreshold(ctx)

	return nil
}

// GetSession retrieves a single session by ID.
func (c *SQLiteCatalog) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	row := c.readDB.QueryRowContext(ctx, `
		SELECT session_id, dataset_name, row_count, column_count,
			snapshot_path, snapshot_checksum, snapshot_bytes, columns_json,
			profile_json, created_at, last_active_at
		FROM sessions
		WHERE session_id = ?`, sessionID)
	return scanSessionRecord(row)
}

// scanSessionRecord scans a row into a SessionRecord.
func scanSessionRecord(row *sql.Row) (*SessionRecord, error) {
	var rec SessionRecord
	var checksum, createdAtUnix, lastActiveUnix int64

	err := row.Scan(
		&rec.SessionID, &rec.DatasetName, &rec.RowCount, &rec.ColumnCount,
		&rec.SnapshotPath, &checksum, &rec.SnapshotBytes, &rec.ColumnsJSON,
		&rec.ProfileJSON, &createdAtUnix, &lastActiveUnix,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("catalog: failed to scan session: %w", err)
	}

	rec.SnapshotChecksum = uint64(checksum)
	rec.CreatedAt = time.Unix(createdAtUnix, 0)
	rec.LastActiveAt = time.Unix(lastActiveUnix, 0)
	return &rec, nil
}

// scanSessionRows scans rows into a SessionRecord.
func scanSessionRows(rows *sql.Rows) (*SessionRecord, error) {
	var rec SessionRecord
	var checksum, createdAtUnix, lastActiveUnix int64

	err := rows.Scan(
		&rec.SessionID, &rec.DatasetName, &rec.RowCount, &rec.ColumnCount,
		&rec.SnapshotPath, &checksum, &rec.SnapshotBytes, &rec.ColumnsJSON,
		&rec.ProfileJSON, &createdAtUnix, &lastActiveUnix,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to scan session: %w", err)
	}

	rec.SnapshotChecksum = uint64(checksum)
	rec.CreatedAt = time.Unix(createdAtUnix, 0)
	rec.LastActiveAt = time.Unix(lastActiveUnix, 0)
	return &rec, nil
}

// ListSessions returns sessions ordered by creation time, newest first.
// A limit of 0 returns all sessions.
func (c *SQLiteCatalog) ListSessions(ctx context.Context, limit int) ([]*SessionRecord, error) {
	query := `
		SELECT session_id, dataset_name, row_count, column_count,
			snapshot_path, snapshot_checksum, snapshot_bytes, columns_json,
			profile_json, created_at, last_active_at
		FROM sessions
		ORDER BY created_at DESC, session_id DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	stmt, err := c.getOrPrepareStmt(query)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to prepare session list query: %w", err)
	}

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query sessions: %w", err)
	}
	defer rows.Close()

	var records []*SessionRecord
	for rows.Next() {
		rec, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: error iterating sessions: %w", err)
	}

	return records, nil
}

// TouchSession updates a session's last_active_at timestamp.
func (c *SQLiteCatalog) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.db.ExecContext(ctx,
		"UPDATE sessions SET last_active_at = ? WHERE session_id = ?",
		at.Unix(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("catalog: failed to touch session: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteSession removes a session and all its chart and insight rows.
// Returns the object paths the session referenced so the caller can
// delete them from storage after the commit.
func (c *SQLiteCatalog) DeleteSession(ctx context.Context, sessionID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Collect the object paths before deleting the rows
	var objectPaths []string
	var snapshotPath string
	err = tx.QueryRowContext(ctx,
		"SELECT snapshot_path FROM sessions WHERE session_id = ?", sessionID,
	).Scan(&snapshotPath)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("catalog: failed to read session: %w", err)
	}
	objectPaths = append(objectPaths, snapshotPath)

	rows, err := tx.QueryContext(ctx,
		"SELECT figure_path FROM charts WHERE session_id = ?", sessionID)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query chart paths: %w", err)
	}
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			rows.Close()
			return nil, fmt.Errorf("catalog: failed to scan chart path: %w", err)
		}
		objectPaths = append(objectPaths, path)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("catalog: error iterating chart paths: %w", err)
	}
	rows.Close()

	// Delete dependents first, then the session row
	if _, err := tx.ExecContext(ctx, "DELETE FROM insights WHERE session_id = ?", sessionID); err != nil {
		return nil, fmt.Errorf("catalog: failed to delete insights for session %s: %w", sessionID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM charts WHERE session_id = ?", sessionID); err != nil {
		return nil, fmt.Errorf("catalog: failed to delete charts for session %s: %w", sessionID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", sessionID); err != nil {
		return nil, fmt.Errorf("catalog: failed to delete session %s: %w", sessionID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("catalog: failed to commit session delete: %w", err)
	}

	return objectPaths, nil
}

// AppendChart adds a chart record to a session's library.
func (c *SQLiteCatalog) AppendChart(ctx context.Context, rec *ChartRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Verify the session exists so a stale handle fails with a clear
	// error instead of an opaque foreign key violation
	var exists int
	err := c.db.QueryRowContext(ctx,
		"SELECT 1 FROM sessions WHERE session_id = ?", rec.SessionID,
	).Scan(&exists)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrSessionNotFound
		}
		return fmt.Errorf("catalog: failed to check session: %w", err)
	}

	_, err = c.insertChartStmt.ExecContext(ctx,
		rec.ChartID, rec.SessionID, rec.ChartType, rec.XColumn, rec.YColumn, rec.Theme,
		rec.SpecKey, int64(rec.KeyHash), rec.Title, rec.FigurePath, rec.FigureBytes,
		rec.RenderMS, rec.CreatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("catalog: failed to insert chart: %w", err)
	}

	return nil
}

// GetChart retrieves a single chart by session and chart ID.
func (c *SQLiteCatalog) GetChart(ctx context.Context, sessionID, chartID string) (*ChartRecord, error) {
	row := c.readDB.QueryRowContext(ctx, `
		SELECT chart_id, session_id, chart_type, x_column, y_column, theme,
			spec_key, key_hash, title, figure_path, figure_bytes, render_ms, created_at
		FROM charts
		WHERE session_id = ? AND chart_id = ?`, sessionID, chartID)
	return scanChartRecord(row)
}

// FindChart retrieves a chart by ID alone, for routes that do not carry
// the session in their path.
func (c *SQLiteCatalog) FindChart(ctx context.Context, chartID string) (*ChartRecord, error) {
	row := c.readDB.QueryRowContext(ctx, `
		SELECT chart_id, session_id, chart_type, x_column, y_column, theme,
			spec_key, key_hash, title, figure_path, figure_bytes, render_ms, created_at
		FROM charts
		WHERE chart_id = ?`, chartID)
	return scanChartRecord(row)
}

// scanChartRecord scans a row into a ChartRecord.
func scanChartRecord(row *sql.Row) (*ChartRecord, error) {
	var rec ChartRecord
	var keyHash, createdAtUnix int64

	err := row.Scan(
		&rec.ChartID, &rec.SessionID, &rec.ChartType, &rec.XColumn, &rec.YColumn, &rec.Theme,
		&rec.SpecKey, &keyHash, &rec.Title, &rec.FigurePath, &rec.FigureBytes,
		&rec.RenderMS, &createdAtUnix,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrChartNotFound
		}
		return nil, fmt.Errorf("catalog: failed to scan chart: %w", err)
	}

	rec.KeyHash = uint64(keyHash)
	rec.CreatedAt = time.Unix(createdAtUnix, 0)
	return &rec, nil
}

// scanChartRows scans rows into a ChartRecord.
func scanChartRows(rows *sql.Rows) (*ChartRecord, error) {
	var rec ChartRecord
	var keyHash, createdAtUnix int64

	err := rows.Scan(
		&rec.ChartID, &rec.SessionID, &rec.ChartType, &rec.XColumn, &rec.YColumn, &rec.Theme,
		&rec.SpecKey, &keyHash, &rec.Title, &rec.FigurePath, &rec.FigureBytes,
		&rec.RenderMS, &createdAtUnix,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to scan chart: %w", err)
	}

	rec.KeyHash = uint64(keyHash)
	rec.CreatedAt = time.Unix(createdAtUnix, 0)
	return &rec, nil
}

// ListCharts returns all charts of a session in append order. Chart IDs
// are monotonic, so ordering by chart_id preserves insertion order even
// when several charts land within the same second.
func (c *SQLiteCatalog) ListCharts(ctx context.Context, sessionID string) ([]*ChartRecord, error) {
	query := `
		SELECT chart_id, session_id, chart_type, x_column, y_column, theme,
			spec_key, key_hash, title, figure_path, figure_bytes, render_ms, created_at
		FROM charts
		WHERE session_id = ?
		ORDER BY chart_id ASC`

	stmt, err := c.getOrPrepareStmt(query)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to prepare chart list query: %w", err)
	}

	rows, err := stmt.QueryContext(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query charts: %w", err)
	}
	defer rows.Close()

	var records []*ChartRecord
	for rows.Next() {
		rec, err := scanChartRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: error iterating charts: %w", err)
	}

	return records, nil
}

// ChartKeys returns the set of spec keys already present in a session's
// library. This is the existing set the deduplicator partitions against.
func (c *SQLiteCatalog) ChartKeys(ctx context.Context, sessionID string) (map[string]struct{}, error) {
	query := "SELECT spec_key FROM charts WHERE session_id = ?"

	stmt, err := c.getOrPrepareStmt(query)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to prepare chart key query: %w", err)
	}

	rows, err := stmt.QueryContext(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query chart keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan chart key: %w", err)
		}
		keys[key] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: error iterating chart keys: %w", err)
	}

	return keys, nil
}

// HasChart reports whether the session already holds the spec key. The
// key_hash index narrows the scan; the full key decides equality.
func (c *SQLiteCatalog) HasChart(ctx context.Context, sessionID string, keyHash uint64, specKey string) (bool, error) {
	query := "SELECT 1 FROM charts WHERE session_id = ? AND key_hash = ? AND spec_key = ? LIMIT 1"

	stmt, err := c.getOrPrepareStmt(query)
	if err != nil {
		return false, fmt.Errorf("catalog: failed to prepare chart key lookup: %w", err)
	}

	var one int
	err = stmt.QueryRowContext(ctx, sessionID, int64(keyHash), specKey).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("catalog: failed to check chart key: %w", err)
	}
	return true, nil
}

// CountCharts returns the number of charts in a session's library.
func (c *SQLiteCatalog) CountCharts(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := c.readDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM charts WHERE session_id = ?", sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("catalog: failed to count charts: %w", err)
	}
	return count, nil
}

// RemoveChart deletes a chart row and returns the removed record.
func (c *SQLiteCatalog) RemoveChart(ctx context.Context, sessionID, chartID string) (*ChartRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT chart_id, session_id, chart_type, x_column, y_column, theme,
			spec_key, key_hash, title, figure_path, figure_bytes, render_ms, created_at
		FROM charts
		WHERE session_id = ? AND chart_id = ?`, sessionID, chartID)
	rec, err := scanChartRecord(row)
	if err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx,
		"DELETE FROM charts WHERE session_id = ? AND chart_id = ?", sessionID, chartID)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to delete chart %s: %w", chartID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return nil, ErrChartNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("catalog: failed to commit chart delete: %w", err)
	}

	return rec, nil
}

// PutInsight stores or replaces a cached insight.
func (c *SQLiteCatalog) PutInsight(ctx context.Context, rec *InsightRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO insights (session_id, prompt_hash, model, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.SessionID, rec.PromptHash, rec.Model, rec.Content, rec.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("catalog: failed to store insight: %w", err)
	}
	return nil
}

// GetInsight retrieves a cached insight. Returns (nil, nil) on cache miss.
func (c *SQLiteCatalog) GetInsight(ctx context.Context, sessionID, promptHash string) (*InsightRecord, error) {
	row := c.readDB.QueryRowContext(ctx,
		`SELECT session_id, prompt_hash, model, content, created_at
		 FROM insights
		 WHERE session_id = ? AND prompt_hash = ?`, sessionID, promptHash)

	var rec InsightRecord
	var createdAtUnix int64
	err := row.Scan(&rec.SessionID, &rec.PromptHash, &rec.Model, &rec.Content, &createdAtUnix)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: failed to scan insight: %w", err)
	}

	rec.CreatedAt = time.Unix(createdAtUnix, 0)
	return &rec, nil
}

// IdleSessions returns sessions whose last activity is before cutoff,
// oldest first, capped at limit. Used by the retention sweeper.
func (c *SQLiteCatalog) IdleSessions(ctx context.Context, cutoff time.Time, limit int) ([]*SessionRecord, error) {
	rows, err := c.readDB.QueryContext(ctx, `
		SELECT session_id, dataset_name, row_count, column_count,
			snapshot_path, snapshot_checksum, snapshot_bytes, columns_json,
			profile_json, created_at, last_active_at
		FROM sessions
		WHERE last_active_at < ?
		ORDER BY last_active_at ASC
		LIMIT ?`, cutoff.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query idle sessions: %w", err)
	}
	defer rows.Close()

	var records []*SessionRecord
	for rows.Next() {
		rec, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: error iterating idle sessions: %w", err)
	}

	return records, nil
}

// SessionCount returns the total number of sessions in the catalog.
func (c *SQLiteCatalog) SessionCount(ctx context.Context) (int64, error) {
	var count int64
	err := c.readDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("catalog: failed to count sessions: %w", err)
	}
	return count, nil
}

// getOrPrepareStmt returns a cached prepared statement or creates one.
func (c *SQLiteCatalog) getOrPrepareStmt(query string) (*sql.Stmt, error) {
	c.readStmtMu.RLock()
	if stmt, ok := c.readStmtCache[query]; ok {
		c.readStmtMu.RUnlock()
		return stmt, nil
	}
	c.readStmtMu.RUnlock()

	c.readStmtMu.Lock()
	defer c.readStmtMu.Unlock()

	// Double-check after acquiring write lock
	if stmt, ok := c.readStmtCache[query]; ok {
		return stmt, nil
	}

	stmt, err := c.readDB.Prepare(query)
	if err != nil {
		return nil, err
	}
	c.readStmtCache[query] = stmt
	return stmt, nil
}

// RunAnalyze runs ANALYZE to update SQLite query planner statistics.
// Should be called after bulk deletes to keep index statistics current.
func (c *SQLiteCatalog) RunAnalyze(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, AnalyzeSQL)
	if err != nil {
		return fmt.Errorf("catalog: failed to run ANALYZE: %w", err)
	}
	return nil
}

// Close closes the catalog database connections.
func (c *SQLiteCatalog) Close() error {
	// Close cached prepared statements (on write connection)
	if c.insertChartStmt != nil {
		c.insertChartStmt.Close()
	}
	// Close cached read statements (on read connection)
	c.readStmtMu.Lock()
	for _, stmt := range c.readStmtCache {
		stmt.Close()
	}
	c.readStmtCache = nil
	c.readStmtMu.Unlock()

	// Close read connection first, then write connection
	if err := c.readDB.Close(); err != nil {
		c.db.Close()
		return err
	}
	return c.db.Close()
}

// sessionCountThresholds defines the session count levels at which warnings are emitted.
var sessionCountThresholds = []int64{100000, 50000, 10000}

// logSessionCountThreshold checks the total session count and logs a warning
// when it crosses 10K, 50K, or 100K. Called after each CreateSession.
func (c *SQLiteCatalog) logSessionCountThreshold(ctx context.Context) {
	var count int64
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&count)
	if err != nil {
		return // best-effort; don't fail the write path
	}
	for _, threshold := range sessionCountThresholds {
		if count >= threshold {
			log.Printf("[WARN] catalog: session count (%d) has crossed %dK threshold, consider tightening retention", count, threshold/1000)
			return
		}
	}
}
