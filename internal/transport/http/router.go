// Package httpapi is the thin HTTP layer over the engines. Handlers decode,
// delegate, and encode; pipeline semantics live in the engine packages.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"encore/internal/audit"
	"encore/internal/domain"
	"encore/internal/entity"
	"encore/internal/ingest"
	"encore/internal/reconcile"
	domainerrors "encore/pkg/domain-errors"
)

// Ingestor is the slice of the ingestion engine the handlers use.
type Ingestor interface {
	Ingest(ctx context.Context, d *entity.Descriptor, opts ingest.FetchOptions) (domain.IngestResult, error)
}

// Runner is the slice of the orchestrator the handlers use.
type Runner interface {
	Run(ctx context.Context, scope string, forceReprocess bool) (domain.RunResult, error)
}

// Reconciler builds bronze/silver drift reports.
type Reconciler interface {
	Report(ctx context.Context, entityName string) (reconcile.Report, error)
	ReportAll(ctx context.Context) ([]reconcile.Report, error)
}

type Handler struct {
	ingestor   Ingestor
	runner     Runner
	reconciler Reconciler
	audits     audit.Store
	registry   *entity.Registry
	logger     *slog.Logger
	health     func(ctx context.Context) error

	ingestWindow   time.Duration
	ingestRowLimit int
}

type Options struct {
	Ingestor       Ingestor
	Runner         Runner
	Reconciler     Reconciler
	Audits         audit.Store
	Registry       *entity.Registry
	Logger         *slog.Logger
	Health         func(ctx context.Context) error
	IngestWindow   time.Duration
	IngestRowLimit int
}

func NewHandler(opts Options) *Handler {
	return &Handler{
		ingestor:       opts.Ingestor,
		runner:         opts.Runner,
		reconciler:     opts.Reconciler,
		audits:         opts.Audits,
		registry:       opts.Registry,
		logger:         opts.Logger,
		health:         opts.Health,
		ingestWindow:   opts.IngestWindow,
		ingestRowLimit: opts.IngestRowLimit,
	}
}

// NewRouter wires all endpoints with the standard middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Post("/ingest", h.handleIngest)
	r.Post("/transform", h.handleTransform)
	r.Post("/run", h.handleRun)
	r.Get("/runs", h.handleListRuns)
	r.Get("/errors", h.handleListErrors)
	r.Get("/reconcile", h.handleReconcile)
	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation so every endpoint returns
// the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := domainerrors.CodeOf(err)
	writeJSON(w, domainerrors.ToHTTPStatus(code), map[string]string{
		"error":   string(code),
		"message": err.Error(),
	})
}
