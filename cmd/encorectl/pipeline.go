package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"encore/internal/audit"
	"encore/internal/bronze"
	"encore/internal/entity"
	"encore/internal/ingest"
	"encore/internal/orchestrator"
	"encore/internal/platform/config"
	"encore/internal/platform/logger"
	"encore/internal/platform/metrics"
	"encore/internal/platform/postgres"
	platformredis "encore/internal/platform/redis"
	"encore/internal/reconcile"
	"encore/internal/runlock"
	"encore/internal/silver"
	"encore/internal/transform"
)

// pipeline bundles the wired engines for one-shot CLI invocations. The CLI
// talks straight to the store with the same wiring the server uses.
type pipeline struct {
	cfg         config.Config
	db          *sql.DB
	registry    *entity.Registry
	rawStore    bronze.Store
	typedStore  silver.Store
	locker      runlock.Locker
	ingestor    *ingest.Engine
	transformer *transform.Engine
	runner      *orchestrator.Orchestrator
	reconciler  *reconcile.Service
	audits      audit.Store
	closers     []func()
}

func openPipeline(ctx context.Context) (*pipeline, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	log := logger.New()
	registry := entity.New()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	p := &pipeline{cfg: cfg, db: db, registry: registry}
	p.closers = append(p.closers, func() { _ = db.Close() })

	if err := postgres.Migrate(ctx, db, registry); err != nil {
		p.close()
		return nil, err
	}

	var locker runlock.Locker = runlock.NewMemoryLocker()
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		p.close()
		return nil, err
	}
	if redisClient != nil {
		p.closers = append(p.closers, func() { _ = redisClient.Close() })
		locker = runlock.NewRedisLocker(redisClient, 15*time.Minute)
	}

	m := metrics.NewUnregistered()
	p.locker = locker
	p.rawStore = bronze.NewPostgresStore(db, registry)
	p.typedStore = silver.NewPostgresStore(db, registry)
	p.audits = audit.NewPostgresStore(db)

	source := ingest.NewHTTPSource(cfg.SourceBaseURL, cfg.SourceTimeout)
	p.ingestor = ingest.NewEngine(source, p.rawStore, locker, log, m)
	p.transformer = transform.NewEngine(p.rawStore, p.typedStore, p.audits, log, m, cfg.TransformBatchLimit)
	p.runner = orchestrator.New(p.transformer, registry, p.audits, nil, log, m, cfg.RunConcurrency)
	p.reconciler = reconcile.NewService(p.rawStore, p.typedStore, registry)
	return p, nil
}

func (p *pipeline) close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

func (p *pipeline) fetchOptions(full bool) ingest.FetchOptions {
	return ingest.FetchOptions{
		Window:   p.cfg.IngestWindow,
		RowLimit: p.cfg.IngestRowLimit,
		Full:     full,
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseFullMode(mode string) (bool, error) {
	switch mode {
	case "", "incremental":
		return false, nil
	case "full":
		return true, nil
	default:
		return false, fmt.Errorf("unknown mode %q (want incremental or full)", mode)
	}
}
