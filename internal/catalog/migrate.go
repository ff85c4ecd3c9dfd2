package catalog

import (
	"context"
	"fmt"
	"log"
	"time"
)

// schemaVersion is the schema version this binary writes. Fresh databases
// are created at this version; older databases are migrated up on open.
const schemaVersion = 3

// migrations maps a target version to the statements that bring a
// database at version-1 up to it. CREATE TABLE IF NOT EXISTS in the base
// schema only applies to fresh databases, so columns added later must
// also appear here as ALTERs for databases created before them.
var migrations = map[int][]string{
	// v2 added per-chart render timing for the stats endpoint.
	2: {`ALTER TABLE charts ADD COLUMN render_ms INTEGER NOT NULL DEFAULT 0`},

	// v3 added the persisted dataset profile, read by the session detail
	// endpoint and the insights prompt builder.
	3: {`ALTER TABLE sessions ADD COLUMN profile_json TEXT NOT NULL DEFAULT ''`},
}

// migrate brings the database schema up to schemaVersion. A fresh
// database (no recorded version) is stamped at the current version
// without running any migrations, since initSchema already created the
// tables in their latest shape.
func (c *SQLiteCatalog) migrate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var current int
	err := c.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM schema_versions",
	).Scan(&current)
	if err != nil {
		return fmt.Errorf("catalog: failed to read schema version: %w", err)
	}

	if current == 0 {
		_, err := c.db.ExecContext(ctx,
			"INSERT INTO schema_versions (version, applied_at) VALUES (?, ?)",
			schemaVersion, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("catalog: failed to stamp schema version: %w", err)
		}
		return nil
	}

	if current > schemaVersion {
		return fmt.Errorf("catalog: database schema version %d is newer than supported version %d", current, schemaVersion)
	}

	for v := current + 1; v <= schemaVersion; v++ {
		stmts, ok := migrations[v]
		if !ok {
			return fmt.Errorf("catalog: no migration defined for schema version %d", v)
		}

		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("catalog: failed to begin migration transaction: %w", err)
		}

		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("catalog: migration to version %d failed: %w", v, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_versions (version, applied_at) VALUES (?, ?)",
			v, time.Now().Unix()); err != nil {
			tx.Rollback()
			return fmt.Errorf("catalog: failed to record migration to version %d: %w", v, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("catalog: failed to commit migration to version %d: %w", v, err)
		}

		log.Printf("catalog: migrated schema to version %d", v)
	}

	return nil
}
