package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"encore/internal/ingest"
)

func (h *Handler) fetchOptions(full bool) ingest.FetchOptions {
	return ingest.FetchOptions{
		Window:   h.ingestWindow,
		RowLimit: h.ingestRowLimit,
		Full:     full,
	}
}

type errorEntry struct {
	ID         string          `json:"id"`
	Entity     string          `json:"entity"`
	ExternalID string          `json:"external_id"`
	Message    string          `json:"message"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (h *Handler) handleListErrors(w http.ResponseWriter, r *http.Request) {
	entity := r.URL.Query().Get("entity")
	limit := queryInt(r, "limit", 50)

	entries, err := h.audits.ListErrors(r.Context(), entity, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]errorEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, errorEntry{
			ID:         e.ID.String(),
			Entity:     e.Entity,
			ExternalID: e.ExternalID,
			Message:    e.Message,
			Payload:    json.RawMessage(e.Payload),
			CreatedAt:  e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"errors": out})
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entity := r.URL.Query().Get("entity")

	if entity != "" {
		report, err := h.reconciler.Report(ctx, entity)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}
	reports, err := h.reconciler.ReportAll(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
