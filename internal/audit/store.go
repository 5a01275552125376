// Package audit persists the append-only run trail: one processing_audit
// row per engine run and one error_log row per failed record.
package audit

import (
	"context"

	"encore/internal/domain"
)

type Store interface {
	// AppendRun records the outcome of one run. Append-only.
	AppendRun(ctx context.Context, run domain.ProcessingAudit) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]domain.ProcessingAudit, error)

	// AppendError records one per-record transformation failure with the
	// offending payload snapshot. Never blocks a batch; callers log and
	// continue if this itself fails.
	AppendError(ctx context.Context, entry domain.ErrorLogEntry) error

	// ListErrors returns recent error entries, newest first, optionally
	// filtered by entity ("" means all).
	ListErrors(ctx context.Context, entity string, limit int) ([]domain.ErrorLogEntry, error)
}
