package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the per-run state machine:
// pending -> running -> {completed | partially_failed | failed}.
type RunStatus string

const (
	RunPending         RunStatus = "pending"
	RunRunning         RunStatus = "running"
	RunCompleted       RunStatus = "completed"
	RunPartiallyFailed RunStatus = "partially_failed"
	RunFailed          RunStatus = "failed"
)

// EntityStatus is the outcome of one entity within a run.
type EntityStatus string

const (
	EntityCompleted EntityStatus = "completed"
	EntityFailed    EntityStatus = "failed"
	EntitySkipped   EntityStatus = "skipped_due_to_dependency"
)

// RecordError is one per-record failure surfaced in a result. The batch
// keeps going; these exist so no record is ever silently dropped.
type RecordError struct {
	ExternalID string `json:"external_id"`
	Message    string `json:"message"`
}

// IngestResult reports one ingestion engine call.
type IngestResult struct {
	Entity    string        `json:"entity"`
	Fetched   int           `json:"fetched"`
	Inserted  int           `json:"inserted"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Errors    []RecordError `json:"errors,omitempty"`
}

// TransformResult reports one transformation engine call.
type TransformResult struct {
	Entity         string `json:"entity"`
	ProcessedCount int    `json:"processed_count"`
	ErrorCount     int    `json:"error_count"`
	DurationMs     int64  `json:"duration_ms"`
}

// EntityRunResult is one entity's contribution to an orchestrator run.
type EntityRunResult struct {
	Entity         string       `json:"entity"`
	Status         EntityStatus `json:"status"`
	ProcessedCount int          `json:"processed_count"`
	ErrorCount     int          `json:"error_count"`
	DurationMs     int64        `json:"duration_ms"`
	Message        string       `json:"message,omitempty"`
}

// RunResult aggregates an orchestrator run across entities.
type RunResult struct {
	RunID          uuid.UUID         `json:"run_id"`
	Scope          string            `json:"scope"`
	Status         RunStatus         `json:"status"`
	Entities       []EntityRunResult `json:"entities"`
	ProcessedCount int               `json:"processed_count"`
	ErrorCount     int               `json:"error_count"`
	DurationMs     int64             `json:"duration_ms"`
	CompletedAt    time.Time         `json:"completed_at"`
}

// ProcessingAudit is one append-only audit row, written at the end of every
// run whether it succeeded or not.
type ProcessingAudit struct {
	ID               uuid.UUID
	Entity           string // entity name, scope expression, or "all"
	Status           RunStatus
	RecordsProcessed int
	ErrorCount       int
	DurationMs       int64
	CompletedAt      time.Time
	ErrorMessage     string
}

// ErrorLogEntry is one per-record transformation failure, kept with the
// offending payload for diagnosis. Append-only; never blocks a batch.
type ErrorLogEntry struct {
	ID         uuid.UUID
	Entity     string
	ExternalID string
	Message    string
	Payload    []byte
	CreatedAt  time.Time
}
