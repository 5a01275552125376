package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"encore/internal/domain"
	"encore/internal/entity"
	domainerrors "encore/pkg/domain-errors"
)

type ingestRequest struct {
	Entity string `json:"entity,omitempty"`
	Mode   string `json:"mode,omitempty"` // incremental (default) or full
}

type ingestResponse struct {
	Mode    string                `json:"mode"`
	Results []domain.IngestResult `json:"results"`
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ingestRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	full, err := parseMode(req.Mode)
	if err != nil {
		writeError(w, err)
		return
	}

	descriptors, err := h.scopedDescriptors(req.Entity)
	if err != nil {
		writeError(w, err)
		return
	}

	opts := h.fetchOptions(full)
	start := time.Now()
	resp := ingestResponse{Mode: modeLabel(full)}
	var failure error
	for _, d := range descriptors {
		result, err := h.ingestor.Ingest(ctx, d, opts)
		resp.Results = append(resp.Results, result)
		if err != nil {
			// A fetch or store failure aborts this entity; remaining
			// entities are independent and still get their chance.
			failure = err
			h.logger.ErrorContext(ctx, "ingest failed",
				"entity", d.Name, "error", err.Error())
		}
	}

	h.appendIngestAudit(ctx, req.Entity, resp.Results, failure, start)

	if failure != nil && len(descriptors) == 1 {
		writeError(w, failure)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// appendIngestAudit leaves one audit row per ingest trigger so every run is
// traceable, mirroring what the orchestrator does for transform runs.
func (h *Handler) appendIngestAudit(ctx context.Context, scope string, results []domain.IngestResult, failure error, start time.Time) {
	status := domain.RunCompleted
	message := ""
	if failure != nil {
		status = domain.RunPartiallyFailed
		message = failure.Error()
		if len(results) == 1 {
			status = domain.RunFailed
		}
	}
	var processed, errorCount int
	for _, res := range results {
		processed += res.Inserted + res.Updated
		errorCount += len(res.Errors)
	}
	if scope == "" {
		scope = "all"
	}
	row := domain.ProcessingAudit{
		ID:               uuid.New(),
		Entity:           "ingest:" + scope,
		Status:           status,
		RecordsProcessed: processed,
		ErrorCount:       errorCount,
		DurationMs:       time.Since(start).Milliseconds(),
		CompletedAt:      time.Now().UTC(),
		ErrorMessage:     message,
	}
	if err := h.audits.AppendRun(ctx, row); err != nil {
		h.logger.ErrorContext(ctx, "ingest audit append failed", "error", err.Error())
	}
}

func (h *Handler) scopedDescriptors(entityName string) ([]*entity.Descriptor, error) {
	if entityName == "" {
		return h.registry.All(), nil
	}
	d, err := h.registry.Get(entityName)
	if err != nil {
		return nil, err
	}
	return []*entity.Descriptor{d}, nil
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeBadRequest, "invalid request body")
	}
	return nil
}

func parseMode(mode string) (full bool, err error) {
	switch mode {
	case "", "incremental":
		return false, nil
	case "full":
		return true, nil
	default:
		return false, domainerrors.Newf(domainerrors.CodeBadRequest, "unknown mode %q", mode)
	}
}

func modeLabel(full bool) string {
	if full {
		return "full"
	}
	return "incremental"
}
