// Package bronze is the raw store: one table per entity holding fetched
// payloads verbatim with identity, version, and processed-state tracking.
package bronze

import (
	"context"

	"encore/internal/domain"
)

// Store is interface-driven to keep the engines testable and to allow
// swapping the in-memory implementation for PostgreSQL without rewiring
// business code.
//
// The processed flag has a single state machine, enforced here rather than
// mutated ad hoc: unprocessed -> processed via MarkProcessed (guarded on
// version), processed -> unprocessed only via a content change in
// UpdatePayload or an explicit ResetProcessed.
type Store interface {
	// Find returns the record for external_id, or sentinel.ErrNotFound.
	Find(ctx context.Context, entity, externalID string) (domain.RawRecord, error)

	// Insert creates a first-sighting record at version 1, unprocessed.
	// Returns sentinel.ErrConflict when the external_id already exists.
	Insert(ctx context.Context, entity, externalID string, payload domain.Payload, sourceURL string) error

	// UpdatePayload replaces the payload for an existing record, bumps the
	// version by one, and resets the processed flag. Returns the new version.
	UpdatePayload(ctx context.Context, entity, externalID string, payload domain.Payload, sourceURL string) (int, error)

	// ListUnprocessed returns unprocessed records in stable primary-key
	// order. limit <= 0 means no limit.
	ListUnprocessed(ctx context.Context, entity string, limit int) ([]domain.RawRecord, error)

	// MarkProcessed flips the processed flag, but only while the stored
	// version still equals version. A concurrent re-ingest that bumped the
	// version leaves the flag untouched (sentinel.ErrNotFound) so the new
	// content is picked up by the next run.
	MarkProcessed(ctx context.Context, entity, externalID string, version int) error

	// ResetProcessed clears the processed flag for every record of the
	// entity without touching payloads or versions. Returns the number of
	// rows reset. This is the force-reprocess trigger; it is idempotent.
	ResetProcessed(ctx context.Context, entity string) (int64, error)

	// ListExternalIDs returns all external ids for the entity, sorted.
	ListExternalIDs(ctx context.Context, entity string) ([]string, error)
}
