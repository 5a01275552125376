// Package orchestrator coordinates transformation runs across entities in
// dependency order. Ordering comes from the registry's precomputed
// topological levels, not from a baked-in call sequence; entities within a
// level are independent and run concurrently under a bounded limit.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"encore/internal/audit"
	"encore/internal/domain"
	"encore/internal/entity"
	"encore/internal/platform/metrics"
)

var tracer = otel.Tracer("encore/orchestrator")

// Transformer is the slice of the transformation engine the orchestrator
// drives.
type Transformer interface {
	Transform(ctx context.Context, d *entity.Descriptor, forceReprocess bool) (domain.TransformResult, error)
}

type Orchestrator struct {
	transformer Transformer
	registry    *entity.Registry
	audits      audit.Store
	publisher   audit.RunPublisher // optional
	logger      *slog.Logger
	metrics     *metrics.Metrics
	concurrency int
	now         func() time.Time
}

func New(transformer Transformer, registry *entity.Registry, audits audit.Store, publisher audit.RunPublisher, logger *slog.Logger, m *metrics.Metrics, concurrency int) *Orchestrator {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Orchestrator{
		transformer: transformer,
		registry:    registry,
		audits:      audits,
		publisher:   publisher,
		logger:      logger,
		metrics:     m,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Run transforms every entity in scope, honoring dependency order. An
// engine-level failure is contained to its entity; dependents of a failed
// or skipped entity are skipped and reported, never run out of order.
// One audit row is written per run, success or failure.
func (o *Orchestrator) Run(ctx context.Context, scope string, forceReprocess bool) (domain.RunResult, error) {
	ctx, span := tracer.Start(ctx, "run")
	defer span.End()
	span.SetAttributes(attribute.String("scope", scope))

	start := o.now()
	result := domain.RunResult{
		RunID:  uuid.New(),
		Scope:  scopeLabel(scope),
		Status: domain.RunRunning,
	}

	names, err := o.registry.ResolveScope(scope)
	if err != nil {
		result.Status = domain.RunFailed
		result.CompletedAt = o.now().UTC()
		return result, err
	}
	inScope := make(map[string]bool, len(names))
	for _, name := range names {
		inScope[name] = true
	}

	o.logger.InfoContext(ctx, "run started",
		"run_id", result.RunID.String(),
		"scope", result.Scope,
		"entities", len(names),
		"force_reprocess", forceReprocess,
	)

	var mu sync.Mutex
	outcomes := make(map[string]domain.EntityRunResult, len(names))

	for _, level := range o.registry.Levels() {
		if ctx.Err() != nil {
			// Cancellation stops issuing new entities; whatever already ran
			// stands as partial completion.
			break
		}

		g := new(errgroup.Group)
		g.SetLimit(o.concurrency)
		for _, name := range level {
			if !inScope[name] {
				continue
			}
			if blocked, dep := o.blockedBy(name, inScope, outcomes, &mu); blocked {
				mu.Lock()
				outcomes[name] = domain.EntityRunResult{
					Entity:  name,
					Status:  domain.EntitySkipped,
					Message: fmt.Sprintf("dependency %s did not complete", dep),
				}
				mu.Unlock()
				o.logger.WarnContext(ctx, "entity skipped",
					"run_id", result.RunID.String(), "entity", name, "dependency", dep)
				continue
			}

			g.Go(func() error {
				o.runEntity(ctx, name, forceReprocess, outcomes, &mu)
				return nil
			})
		}
		// Tasks never return errors; Wait is just the level barrier that
		// keeps dependents behind their dependencies.
		_ = g.Wait()
	}

	o.finalize(&result, names, outcomes, start)

	auditRow := domain.ProcessingAudit{
		ID:               result.RunID,
		Entity:           result.Scope,
		Status:           result.Status,
		RecordsProcessed: result.ProcessedCount,
		ErrorCount:       result.ErrorCount,
		DurationMs:       result.DurationMs,
		CompletedAt:      result.CompletedAt,
		ErrorMessage:     failureSummary(result.Entities),
	}
	if err := o.audits.AppendRun(ctx, auditRow); err != nil {
		o.logger.ErrorContext(ctx, "audit append failed",
			"run_id", result.RunID.String(), "error", err.Error())
	}

	o.metrics.ObserveRun(result.Scope, string(result.Status), float64(result.DurationMs)/1000)

	if o.publisher != nil {
		if err := o.publisher.PublishRun(ctx, result); err != nil {
			o.logger.ErrorContext(ctx, "run event publish failed",
				"run_id", result.RunID.String(), "error", err.Error())
		}
	}

	o.logger.InfoContext(ctx, "run finished",
		"run_id", result.RunID.String(),
		"status", string(result.Status),
		"processed", result.ProcessedCount,
		"errors", result.ErrorCount,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}

func (o *Orchestrator) runEntity(ctx context.Context, name string, forceReprocess bool, outcomes map[string]domain.EntityRunResult, mu *sync.Mutex) {
	d, err := o.registry.Get(name)
	if err != nil {
		mu.Lock()
		outcomes[name] = domain.EntityRunResult{Entity: name, Status: domain.EntityFailed, Message: err.Error()}
		mu.Unlock()
		return
	}

	res, err := o.transformer.Transform(ctx, d, forceReprocess)
	outcome := domain.EntityRunResult{
		Entity:         name,
		ProcessedCount: res.ProcessedCount,
		ErrorCount:     res.ErrorCount,
		DurationMs:     res.DurationMs,
	}
	if err != nil {
		outcome.Status = domain.EntityFailed
		outcome.Message = err.Error()
		o.logger.ErrorContext(ctx, "entity transform failed",
			"entity", name, "error", err.Error())
	} else {
		outcome.Status = domain.EntityCompleted
	}
	mu.Lock()
	outcomes[name] = outcome
	mu.Unlock()
}

// blockedBy reports whether any in-scope dependency of name failed or was
// skipped. Dependencies outside the scope are the caller's responsibility
// and do not block a targeted run.
func (o *Orchestrator) blockedBy(name string, inScope map[string]bool, outcomes map[string]domain.EntityRunResult, mu *sync.Mutex) (bool, string) {
	mu.Lock()
	defer mu.Unlock()
	for _, dep := range o.registry.Dependencies(name) {
		if !inScope[dep] {
			continue
		}
		if out, ok := outcomes[dep]; !ok || out.Status != domain.EntityCompleted {
			return true, dep
		}
	}
	return false, ""
}

func (o *Orchestrator) finalize(result *domain.RunResult, names []string, outcomes map[string]domain.EntityRunResult, start time.Time) {
	var completed int
	for _, name := range names {
		out, ok := outcomes[name]
		if !ok {
			// Never reached: the run was canceled before this entity.
			out = domain.EntityRunResult{
				Entity:  name,
				Status:  domain.EntitySkipped,
				Message: "run canceled before entity started",
			}
		}
		result.Entities = append(result.Entities, out)
		result.ProcessedCount += out.ProcessedCount
		result.ErrorCount += out.ErrorCount
		if out.Status == domain.EntityCompleted {
			completed++
		}
	}

	switch {
	case completed == len(names):
		result.Status = domain.RunCompleted
	case completed > 0:
		result.Status = domain.RunPartiallyFailed
	default:
		result.Status = domain.RunFailed
	}

	result.CompletedAt = o.now().UTC()
	result.DurationMs = result.CompletedAt.Sub(start.UTC()).Milliseconds()
}

func scopeLabel(scope string) string {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return "all"
	}
	return scope
}

func failureSummary(entities []domain.EntityRunResult) string {
	var parts []string
	for _, e := range entities {
		if e.Status != domain.EntityCompleted && e.Message != "" {
			parts = append(parts, e.Entity+": "+e.Message)
		}
	}
	return strings.Join(parts, "; ")
}
