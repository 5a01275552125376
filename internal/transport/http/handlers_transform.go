package httpapi

import (
	"net/http"
	"strconv"
)

type transformRequest struct {
	Entity         string `json:"entity,omitempty"`
	ForceReprocess bool   `json:"force_reprocess,omitempty"`
}

func (h *Handler) handleTransform(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req transformRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	scope := req.Entity
	if scope == "" {
		scope = "all"
	}
	result, err := h.runner.Run(ctx, scope, req.ForceReprocess)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type runRequest struct {
	Mode           string `json:"mode,omitempty"`
	Scope          string `json:"scope,omitempty"`
	ForceReprocess bool   `json:"force_reprocess,omitempty"`
}

type runResponse struct {
	Ingest    ingestResponse `json:"ingest"`
	Transform any            `json:"transform"`
}

// handleRun is the combined trigger: ingest every scoped entity, then run
// the dependency-ordered transformation pass over the same scope.
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req runRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	full, err := parseMode(req.Mode)
	if err != nil {
		writeError(w, err)
		return
	}
	scope := req.Scope
	if scope == "" {
		scope = "all"
	}
	names, err := h.registry.ResolveScope(scope)
	if err != nil {
		writeError(w, err)
		return
	}

	var resp runResponse
	resp.Ingest.Mode = modeLabel(full)
	for _, name := range names {
		d, err := h.registry.Get(name)
		if err != nil {
			writeError(w, err)
			return
		}
		result, err := h.ingestor.Ingest(ctx, d, h.fetchOptions(full))
		resp.Ingest.Results = append(resp.Ingest.Results, result)
		if err != nil {
			h.logger.ErrorContext(ctx, "ingest failed during run",
				"entity", name, "error", err.Error())
		}
	}

	runResult, err := h.runner.Run(ctx, scope, req.ForceReprocess)
	if err != nil {
		writeError(w, err)
		return
	}
	resp.Transform = runResult
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	runs, err := h.audits.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
