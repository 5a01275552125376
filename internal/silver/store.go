// Package silver is the typed store: one normalized table per entity, keyed
// by external_id, written only by the transformation engine.
package silver

import (
	"context"

	"encore/internal/domain"
)

// Store upserts typed rows. Last write wins on every mapped field because
// the raw payload, not prior typed state, is the source of truth.
type Store interface {
	// Upsert inserts or fully overwrites the row for rec.ExternalID.
	// Returns sentinel.ErrConstraint (wrapped) when the row itself is
	// rejected by a data constraint; any other error means the store call
	// failed at the engine level.
	Upsert(ctx context.Context, entity string, rec domain.TypedRecord) error

	// Find returns the typed row, or sentinel.ErrNotFound.
	Find(ctx context.Context, entity, externalID string) (domain.TypedRecord, error)

	// ListExternalIDs returns all external ids for the entity, sorted.
	ListExternalIDs(ctx context.Context, entity string) ([]string, error)
}
