// Package transform turns unprocessed raw rows into typed silver rows.
// Mapping is a pure function of the payload, upserts are last-write-wins,
// and the processed flag flips only after the typed row is in place, so a
// crash between the two just causes a harmless re-transform.
package transform

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"encore/internal/audit"
	"encore/internal/bronze"
	"encore/internal/domain"
	"encore/internal/entity"
	"encore/internal/platform/metrics"
	domainerrors "encore/pkg/domain-errors"
	"encore/pkg/sentinel"
)

var tracer = otel.Tracer("encore/transform")

type Engine struct {
	raw        bronze.Store
	typed      silverStore
	audit      audit.Store
	logger     *slog.Logger
	metrics    *metrics.Metrics
	batchLimit int
	now        func() time.Time
}

// silverStore is the slice of the silver store the engine needs.
type silverStore interface {
	Upsert(ctx context.Context, entity string, rec domain.TypedRecord) error
}

func NewEngine(raw bronze.Store, typed silverStore, auditStore audit.Store, logger *slog.Logger, m *metrics.Metrics, batchLimit int) *Engine {
	return &Engine{
		raw:        raw,
		typed:      typed,
		audit:      auditStore,
		logger:     logger,
		metrics:    m,
		batchLimit: batchLimit,
		now:        time.Now,
	}
}

// Transform processes unprocessed raw rows for one entity. forceReprocess
// first resets every processed flag for the entity; payloads and versions
// are never touched, so a forced re-run with unchanged mapping logic yields
// byte-identical typed rows.
//
// Per-record mapping and constraint failures are logged to the error table
// and the batch continues; only an engine-level store failure aborts.
// Calling Transform again with no intervening ingestion processes zero rows.
func (e *Engine) Transform(ctx context.Context, d *entity.Descriptor, forceReprocess bool) (domain.TransformResult, error) {
	ctx, span := tracer.Start(ctx, "transform")
	defer span.End()
	span.SetAttributes(
		attribute.String("entity", d.Name),
		attribute.Bool("force_reprocess", forceReprocess),
	)

	start := e.now()
	result := domain.TransformResult{Entity: d.Name}

	if forceReprocess {
		n, err := e.raw.ResetProcessed(ctx, d.Name)
		if err != nil {
			return result, domainerrors.Wrap(err, domainerrors.CodeStore, "reset processed flags")
		}
		e.logger.InfoContext(ctx, "processed flags reset",
			"entity", d.Name, "count", n)
	}

	candidates, err := e.raw.ListUnprocessed(ctx, d.Name, e.batchLimit)
	if err != nil {
		return result, domainerrors.Wrap(err, domainerrors.CodeStore, "list unprocessed records")
	}

	for _, rec := range candidates {
		// Stop issuing new records on cancellation; the record in flight
		// always finishes cleanly, so partial completion is just progress.
		if ctx.Err() != nil {
			break
		}
		if err := e.transformOne(ctx, d, rec); err != nil {
			if perRecord(err) {
				e.recordFailure(ctx, d, rec, err)
				result.ErrorCount++
				continue
			}
			result.DurationMs = e.now().Sub(start).Milliseconds()
			return result, domainerrors.Wrap(err, domainerrors.CodeStore, "typed store write failed")
		}
		result.ProcessedCount++
		e.metrics.ObserveTransform(d.Name, "processed", 1)
	}

	result.DurationMs = e.now().Sub(start).Milliseconds()
	e.logger.InfoContext(ctx, "transformation finished",
		"entity", d.Name,
		"processed", result.ProcessedCount,
		"errors", result.ErrorCount,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}

// transformOne maps and upserts a single raw record, then flips its
// processed flag. Typed write first, flag second: the at-least-once
// ordering that can only ever duplicate work, never lose it.
func (e *Engine) transformOne(ctx context.Context, d *entity.Descriptor, rec domain.RawRecord) error {
	fields, err := d.Map(rec.Payload)
	if err != nil {
		return err
	}

	typed := domain.TypedRecord{
		ExternalID:       rec.ExternalID,
		Fields:           fields,
		SourceRawVersion: rec.Version,
		ProcessedAt:      e.now().UTC(),
	}
	if err := e.typed.Upsert(ctx, d.Name, typed); err != nil {
		return err
	}

	if err := e.raw.MarkProcessed(ctx, d.Name, rec.ExternalID, rec.Version); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Version moved under us: a concurrent ingest bumped it. Leave
			// the flag alone; the next run transforms the newer content.
			e.logger.DebugContext(ctx, "version changed during transform",
				"entity", d.Name, "external_id", rec.ExternalID, "version", rec.Version)
			return nil
		}
		return err
	}
	return nil
}

// perRecord distinguishes record-level facts (bad payload shape, data
// constraint) from store outages. Only the former keep the batch going.
func perRecord(err error) bool {
	return domainerrors.Is(err, domainerrors.CodeMapping) ||
		errors.Is(err, sentinel.ErrConstraint)
}

func (e *Engine) recordFailure(ctx context.Context, d *entity.Descriptor, rec domain.RawRecord, cause error) {
	e.metrics.ObserveTransform(d.Name, "error", 1)
	e.logger.WarnContext(ctx, "record transform failed",
		"entity", d.Name, "external_id", rec.ExternalID, "error", cause.Error())

	entry := domain.ErrorLogEntry{
		ID:         uuid.New(),
		Entity:     d.Name,
		ExternalID: rec.ExternalID,
		Message:    cause.Error(),
		Payload:    rec.Payload.JSON(),
		CreatedAt:  e.now().UTC(),
	}
	if err := e.audit.AppendError(ctx, entry); err != nil {
		// Diagnosis data is best-effort; the raw row stays unprocessed
		// either way and will be retried.
		e.logger.ErrorContext(ctx, "error log append failed",
			"entity", d.Name, "external_id", rec.ExternalID, "error", err.Error())
	}
}
