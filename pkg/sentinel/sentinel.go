package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and lockers return these
// (optionally wrapped) so engines can translate them into coded domain
// errors without knowing which backend produced them.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: row does not exist in the store
// - ErrConflict: uniqueness constraint hit on insert
// - ErrConstraint: row rejected by a data constraint (per-record, retryable after fix)
// - ErrLocked: another worker holds the entity lock
// - ErrUnavailable: backend unreachable (engine-level, fatal to the call)
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrConstraint  = errors.New("constraint violation")
	ErrLocked      = errors.New("locked")
	ErrUnavailable = errors.New("unavailable")
)
