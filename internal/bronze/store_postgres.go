package bronze

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"encore/internal/domain"
	"encore/internal/entity"
	"encore/pkg/sentinel"
)

// PostgresStore persists raw records, one table per entity. Table names come
// from the static registry, never from request input.
type PostgresStore struct {
	db       *sql.DB
	registry *entity.Registry
}

func NewPostgresStore(db *sql.DB, registry *entity.Registry) *PostgresStore {
	return &PostgresStore{db: db, registry: registry}
}

func (s *PostgresStore) rawTable(entityName string) (string, error) {
	d, err := s.registry.Get(entityName)
	if err != nil {
		return "", err
	}
	return d.RawTable, nil
}

func (s *PostgresStore) Find(ctx context.Context, entityName, externalID string) (domain.RawRecord, error) {
	table, err := s.rawTable(entityName)
	if err != nil {
		return domain.RawRecord{}, err
	}
	query := fmt.Sprintf(`
		SELECT id, external_id, payload, source_url, version, is_processed, created_at, updated_at
		FROM %s WHERE external_id = $1`, table)
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RawRecord{}, sentinel.ErrNotFound
		}
		return domain.RawRecord{}, fmt.Errorf("find raw record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Insert(ctx context.Context, entityName, externalID string, payload domain.Payload, sourceURL string) error {
	table, err := s.rawTable(entityName)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (external_id, payload, source_url, version, is_processed, created_at, updated_at)
		VALUES ($1, $2, $3, 1, FALSE, now(), now())`, table)
	if _, err := s.db.ExecContext(ctx, query, externalID, payload.JSON(), sourceURL); err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert raw record: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdatePayload(ctx context.Context, entityName, externalID string, payload domain.Payload, sourceURL string) (int, error) {
	table, err := s.rawTable(entityName)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET payload = $2, source_url = $3, version = version + 1,
		    is_processed = FALSE, updated_at = now()
		WHERE external_id = $1
		RETURNING version`, table)
	var version int
	if err := s.db.QueryRowContext(ctx, query, externalID, payload.JSON(), sourceURL).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("update raw record: %w", err)
	}
	return version, nil
}

func (s *PostgresStore) ListUnprocessed(ctx context.Context, entityName string, limit int) ([]domain.RawRecord, error) {
	table, err := s.rawTable(entityName)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT id, external_id, payload, source_url, version, is_processed, created_at, updated_at
		FROM %s WHERE is_processed = FALSE ORDER BY id`, table)
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed: %w", err)
	}
	defer rows.Close()

	var out []domain.RawRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan raw record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unprocessed: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, entityName, externalID string, version int) error {
	table, err := s.rawTable(entityName)
	if err != nil {
		return err
	}
	// The version guard makes the flip safe under concurrent re-ingestion:
	// a bumped version means the typed row no longer reflects current
	// content, so the flag stays false and the next run re-transforms.
	query := fmt.Sprintf(`
		UPDATE %s SET is_processed = TRUE
		WHERE external_id = $1 AND version = $2`, table)
	res, err := s.db.ExecContext(ctx, query, externalID, version)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ResetProcessed(ctx context.Context, entityName string) (int64, error) {
	table, err := s.rawTable(entityName)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`
		UPDATE %s SET is_processed = FALSE WHERE is_processed = TRUE`, table)
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("reset processed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *PostgresStore) ListExternalIDs(ctx context.Context, entityName string) ([]string, error) {
	table, err := s.rawTable(entityName)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT external_id FROM %s ORDER BY external_id`, table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list external ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan external id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list external ids: %w", err)
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.RawRecord, error) {
	var (
		rec        domain.RawRecord
		rawPayload []byte
	)
	err := row.Scan(&rec.ID, &rec.ExternalID, &rawPayload, &rec.SourceURL,
		&rec.Version, &rec.Processed, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return domain.RawRecord{}, err
	}
	payload, err := domain.DecodePayload(rawPayload)
	if err != nil {
		return domain.RawRecord{}, fmt.Errorf("decode stored payload: %w", err)
	}
	rec.Payload = payload
	return rec, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
