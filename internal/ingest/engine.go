// Package ingest decides, per fetched record, whether the raw store sees it
// for the first time, sees changed content, or sees nothing new. Only the
// raw store is touched; typed tables belong to the transformation engine.
package ingest

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"encore/internal/bronze"
	"encore/internal/domain"
	"encore/internal/entity"
	"encore/internal/platform/metrics"
	"encore/internal/runlock"
	domainerrors "encore/pkg/domain-errors"
	"encore/pkg/sentinel"
)

var tracer = otel.Tracer("encore/ingest")

type Engine struct {
	source  Source
	raw     bronze.Store
	locks   runlock.Locker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewEngine(source Source, raw bronze.Store, locks runlock.Locker, logger *slog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{source: source, raw: raw, locks: locks, logger: logger, metrics: m}
}

// Ingest fetches one bounded page for the entity and applies it to the raw
// store. A fetch-level failure aborts the call; a per-record failure is
// counted and the batch continues. Retries belong to the external trigger,
// not here.
func (e *Engine) Ingest(ctx context.Context, d *entity.Descriptor, opts FetchOptions) (domain.IngestResult, error) {
	ctx, span := tracer.Start(ctx, "ingest")
	defer span.End()
	span.SetAttributes(attribute.String("entity", d.Name))

	result := domain.IngestResult{Entity: d.Name}

	release, err := e.locks.Acquire(ctx, d.Name)
	if err != nil {
		if errors.Is(err, sentinel.ErrLocked) {
			return result, domainerrors.Newf(domainerrors.CodeLocked,
				"ingestion already running for %s", d.Name)
		}
		return result, domainerrors.Wrap(err, domainerrors.CodeStore, "acquire entity lock")
	}
	defer release()

	payloads, sourceURL, err := e.source.Fetch(ctx, d, opts)
	if err != nil {
		e.logger.ErrorContext(ctx, "source fetch failed",
			"entity", d.Name, "error", err.Error())
		return result, err
	}
	result.Fetched = len(payloads)

	for _, payload := range payloads {
		externalID, err := d.ExternalID(payload)
		if err != nil {
			// No usable identity: skip, count, never store under a null key.
			result.Errors = append(result.Errors, domain.RecordError{Message: err.Error()})
			e.metrics.ObserveIngest(d.Name, "error", 1)
			e.logger.WarnContext(ctx, "record skipped",
				"entity", d.Name, "error", err.Error())
			continue
		}

		outcome, err := e.apply(ctx, d, externalID, payload, sourceURL)
		if err != nil {
			// apply only fails on raw store errors, which are engine-level:
			// a partially written batch is safe to re-run, so abort cleanly.
			e.logger.ErrorContext(ctx, "raw store write failed",
				"entity", d.Name, "external_id", externalID, "error", err.Error())
			return result, domainerrors.Wrap(err, domainerrors.CodeStore, "raw store write failed")
		}

		switch outcome {
		case outcomeInserted:
			result.Inserted++
		case outcomeUpdated:
			result.Updated++
		case outcomeUnchanged:
			result.Unchanged++
		}
		e.metrics.ObserveIngest(d.Name, string(outcome), 1)
	}

	e.logger.InfoContext(ctx, "ingestion finished",
		"entity", d.Name,
		"fetched", result.Fetched,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"errors", len(result.Errors),
	)
	return result, nil
}

type outcome string

const (
	outcomeInserted  outcome = "inserted"
	outcomeUpdated   outcome = "updated"
	outcomeUnchanged outcome = "unchanged"
)

// apply runs the dedup/versioning decision for one record: absent -> insert
// at version 1; present with equal content -> no-op; present with different
// content -> replace payload and bump version.
func (e *Engine) apply(ctx context.Context, d *entity.Descriptor, externalID string, payload domain.Payload, sourceURL string) (outcome, error) {
	existing, err := e.raw.Find(ctx, d.Name, externalID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		if err := e.raw.Insert(ctx, d.Name, externalID, payload, sourceURL); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				// Raced with ourselves under lock loss; re-read and fall
				// through to the update path next run.
				return outcomeUnchanged, nil
			}
			return "", err
		}
		return outcomeInserted, nil
	case err != nil:
		return "", err
	}

	if existing.Payload.Equal(payload) {
		return outcomeUnchanged, nil
	}
	if _, err := e.raw.UpdatePayload(ctx, d.Name, externalID, payload, sourceURL); err != nil {
		return "", err
	}
	return outcomeUpdated, nil
}
