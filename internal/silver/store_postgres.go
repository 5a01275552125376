package silver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"encore/internal/domain"
	"encore/internal/entity"
	"encore/pkg/sentinel"
)

// PostgresStore persists typed rows. Upsert statements are built once per
// entity from the registry's column lists, so the store stays generic over
// the closed entity set.
type PostgresStore struct {
	db       *sql.DB
	registry *entity.Registry
	upserts  map[string]string
}

func NewPostgresStore(db *sql.DB, registry *entity.Registry) *PostgresStore {
	s := &PostgresStore{
		db:       db,
		registry: registry,
		upserts:  make(map[string]string),
	}
	for _, d := range registry.All() {
		s.upserts[d.Name] = buildUpsert(d)
	}
	return s
}

// buildUpsert renders the per-entity statement:
//
//	INSERT INTO songs (external_id, name, ..., source_raw_version, processed_at)
//	VALUES ($1, $2, ...)
//	ON CONFLICT (external_id) DO UPDATE SET name = EXCLUDED.name, ...
func buildUpsert(d *entity.Descriptor) string {
	cols := []string{"external_id"}
	for _, c := range d.Columns {
		cols = append(cols, c.Name)
	}
	cols = append(cols, "source_raw_version", "processed_at")

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	updates := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (external_id) DO UPDATE SET %s",
		d.TypedTable,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
}

func (s *PostgresStore) Upsert(ctx context.Context, entityName string, rec domain.TypedRecord) error {
	d, err := s.registry.Get(entityName)
	if err != nil {
		return err
	}
	args := make([]any, 0, len(d.Columns)+3)
	args = append(args, rec.ExternalID)
	for _, c := range d.Columns {
		args = append(args, normalizeArg(rec.Fields[c.Name]))
	}
	args = append(args, rec.SourceRawVersion, rec.ProcessedAt)

	if _, err := s.db.ExecContext(ctx, s.upserts[entityName], args...); err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %s", sentinel.ErrConstraint, err.Error())
		}
		return fmt.Errorf("upsert typed record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, entityName, externalID string) (domain.TypedRecord, error) {
	d, err := s.registry.Get(entityName)
	if err != nil {
		return domain.TypedRecord{}, err
	}
	cols := make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		cols = append(cols, c.Name)
	}
	query := fmt.Sprintf(
		"SELECT %s, source_raw_version, processed_at FROM %s WHERE external_id = $1",
		strings.Join(cols, ", "), d.TypedTable)

	dest := make([]any, len(d.Columns)+2)
	values := make([]any, len(d.Columns))
	for i := range values {
		dest[i] = &values[i]
	}
	rec := domain.TypedRecord{ExternalID: externalID, Fields: make(domain.TypedFields, len(d.Columns))}
	dest[len(d.Columns)] = &rec.SourceRawVersion
	dest[len(d.Columns)+1] = &rec.ProcessedAt

	if err := s.db.QueryRowContext(ctx, query, externalID).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TypedRecord{}, sentinel.ErrNotFound
		}
		return domain.TypedRecord{}, fmt.Errorf("find typed record: %w", err)
	}
	for i, c := range d.Columns {
		rec.Fields[c.Name] = normalizeScanned(values[i])
	}
	return rec, nil
}

func (s *PostgresStore) ListExternalIDs(ctx context.Context, entityName string) ([]string, error) {
	d, err := s.registry.Get(entityName)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT external_id FROM %s ORDER BY external_id", d.TypedTable)
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

// normalizeArg maps Go zero-value conventions onto SQL: empty strings for
// optional text columns become NULL so silver rows stay clean to query.
func normalizeArg(v any) any {
	if s, ok := v.(string); ok && s == "" {
		return nil
	}
	return v
}

func normalizeScanned(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case int64:
		return int(t)
	case nil:
		return ""
	default:
		return v
	}
}

// isConstraintViolation reports integrity-constraint failures (SQLSTATE
// class 23). Those are per-record facts; everything else is treated as an
// engine-level store failure.
func isConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23")
}
