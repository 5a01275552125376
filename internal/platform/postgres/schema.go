package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"encore/internal/entity"
)

// Migrate applies the schema for every registered entity plus the shared
// audit tables. Statements are idempotent (IF NOT EXISTS) so startup can
// always run them, in the same spirit as migration-at-open stores.
func Migrate(ctx context.Context, db *sql.DB, registry *entity.Registry) error {
	var stmts []string
	for _, d := range registry.All() {
		stmts = append(stmts, rawTableDDL(d), typedTableDDL(d))
	}
	stmts = append(stmts, auditDDL...)

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func rawTableDDL(d *entity.Descriptor) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id           BIGSERIAL PRIMARY KEY,
			external_id  TEXT NOT NULL UNIQUE,
			payload      JSONB NOT NULL,
			source_url   TEXT NOT NULL DEFAULT '',
			version      INTEGER NOT NULL DEFAULT 1,
			is_processed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, d.RawTable)
}

func typedTableDDL(d *entity.Descriptor) string {
	var cols strings.Builder
	for _, c := range d.Columns {
		fmt.Fprintf(&cols, "\t\t\t%s %s,\n", c.Name, c.SQLType)
	}
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			external_id        TEXT PRIMARY KEY,
%s			source_raw_version INTEGER NOT NULL,
			processed_at       TIMESTAMPTZ NOT NULL
		)`, d.TypedTable, cols.String())
}

var auditDDL = []string{
	`CREATE TABLE IF NOT EXISTS processing_audit (
		id                UUID PRIMARY KEY,
		entity            TEXT NOT NULL,
		status            TEXT NOT NULL,
		records_processed INTEGER NOT NULL DEFAULT 0,
		error_count       INTEGER NOT NULL DEFAULT 0,
		duration_ms       BIGINT NOT NULL DEFAULT 0,
		completed_at      TIMESTAMPTZ NOT NULL,
		error_message     TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS processing_audit_completed_at_idx
		ON processing_audit (completed_at DESC)`,
	`CREATE TABLE IF NOT EXISTS error_log (
		id          UUID PRIMARY KEY,
		entity      TEXT NOT NULL,
		external_id TEXT NOT NULL,
		message     TEXT NOT NULL,
		payload     JSONB,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS error_log_entity_idx
		ON error_log (entity, created_at DESC)`,
}
