package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"encore/internal/audit"
	"encore/internal/bronze"
	"encore/internal/entity"
	"encore/internal/ingest"
	"encore/internal/orchestrator"
	"encore/internal/platform/config"
	"encore/internal/platform/httpserver"
	"encore/internal/platform/logger"
	"encore/internal/platform/metrics"
	"encore/internal/platform/postgres"
	platformredis "encore/internal/platform/redis"
	"encore/internal/reconcile"
	"encore/internal/runlock"
	"encore/internal/silver"
	"encore/internal/transform"
	httpapi "encore/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Pipeline logic lives in the internal engine packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := entity.New()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database connection failed", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db, registry); err != nil {
		log.Error("schema migration failed", "error", err.Error())
		os.Exit(1)
	}

	var locker runlock.Locker = runlock.NewMemoryLocker()
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = runlock.NewRedisLocker(redisClient, 15*time.Minute)
		log.Info("using redis entity locks")
	}

	var publisher audit.RunPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("kafka connection failed", "error", err.Error())
			os.Exit(1)
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Info("publishing run events", "topic", cfg.KafkaTopic)
	}

	m := metrics.New()
	rawStore := bronze.NewPostgresStore(db, registry)
	typedStore := silver.NewPostgresStore(db, registry)
	auditStore := audit.NewPostgresStore(db)

	source := ingest.NewHTTPSource(cfg.SourceBaseURL, cfg.SourceTimeout)
	ingestor := ingest.NewEngine(source, rawStore, locker, log, m)
	transformer := transform.NewEngine(rawStore, typedStore, auditStore, log, m, cfg.TransformBatchLimit)
	runner := orchestrator.New(transformer, registry, auditStore, publisher, log, m, cfg.RunConcurrency)
	reconciler := reconcile.NewService(rawStore, typedStore, registry)

	handler := httpapi.NewHandler(httpapi.Options{
		Ingestor:       ingestor,
		Runner:         runner,
		Reconciler:     reconciler,
		Audits:         auditStore,
		Registry:       registry,
		Logger:         log,
		Health:         db.PingContext,
		IngestWindow:   cfg.IngestWindow,
		IngestRowLimit: cfg.IngestRowLimit,
	})
	srv := httpserver.New(cfg.Addr, httpapi.NewRouter(handler))

	log.Info("starting encore", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}
}
