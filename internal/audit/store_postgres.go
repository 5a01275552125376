package audit

import (
	"context"
	"database/sql"
	"fmt"

	"encore/internal/domain"
)

// PostgresStore persists audit rows in the shared processing_audit and
// error_log tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) AppendRun(ctx context.Context, run domain.ProcessingAudit) error {
	query := `
		INSERT INTO processing_audit (
			id, entity, status, records_processed, error_count,
			duration_ms, completed_at, error_message
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Entity, string(run.Status), run.RecordsProcessed,
		run.ErrorCount, run.DurationMs, run.CompletedAt, run.ErrorMessage)
	if err != nil {
		return fmt.Errorf("insert processing audit: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]domain.ProcessingAudit, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, entity, status, records_processed, error_count,
		       duration_ms, completed_at, error_message
		FROM processing_audit
		ORDER BY completed_at DESC
		LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query processing audit: %w", err)
	}
	defer rows.Close()

	var out []domain.ProcessingAudit
	for rows.Next() {
		var run domain.ProcessingAudit
		var status string
		err := rows.Scan(&run.ID, &run.Entity, &status, &run.RecordsProcessed,
			&run.ErrorCount, &run.DurationMs, &run.CompletedAt, &run.ErrorMessage)
		if err != nil {
			return nil, fmt.Errorf("scan processing audit: %w", err)
		}
		run.Status = domain.RunStatus(status)
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query processing audit: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) AppendError(ctx context.Context, entry domain.ErrorLogEntry) error {
	query := `
		INSERT INTO error_log (id, entity, external_id, message, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.Entity, entry.ExternalID, entry.Message, entry.Payload, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert error log entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListErrors(ctx context.Context, entity string, limit int) ([]domain.ErrorLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, entity, external_id, message, payload, created_at
		FROM error_log
		WHERE ($1 = '' OR entity = $1)
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, entity, limit)
	if err != nil {
		return nil, fmt.Errorf("query error log: %w", err)
	}
	defer rows.Close()

	var out []domain.ErrorLogEntry
	for rows.Next() {
		var entry domain.ErrorLogEntry
		err := rows.Scan(&entry.ID, &entry.Entity, &entry.ExternalID,
			&entry.Message, &entry.Payload, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan error log entry: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query error log: %w", err)
	}
	return out, nil
}
