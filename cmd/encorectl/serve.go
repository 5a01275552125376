package main

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"encore/internal/audit"
	"encore/internal/ingest"
	"encore/internal/orchestrator"
	"encore/internal/platform/httpserver"
	"encore/internal/platform/logger"
	"encore/internal/platform/metrics"
	"encore/internal/reconcile"
	"encore/internal/transform"
	httpapi "encore/internal/transport/http"
)

// newServeCommand runs the HTTP service in the foreground. It is the same
// wiring as cmd/server, kept here so a single binary covers both one-shot
// and long-running use.
func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logger.New()

			p, err := openPipeline(ctx)
			if err != nil {
				return err
			}
			defer p.close()

			var publisher audit.RunPublisher
			if len(p.cfg.KafkaBrokers) > 0 {
				kafkaPublisher, err := audit.NewKafkaPublisher(p.cfg.KafkaBrokers, p.cfg.KafkaTopic)
				if err != nil {
					return err
				}
				defer kafkaPublisher.Close()
				publisher = kafkaPublisher
			}

			// The one-shot pipeline carries unregistered metrics and no
			// publisher; the service re-wires the engines with both.
			m := metrics.New()
			source := ingest.NewHTTPSource(p.cfg.SourceBaseURL, p.cfg.SourceTimeout)
			ingestor := ingest.NewEngine(source, p.rawStore, p.locker, log, m)
			transformer := transform.NewEngine(p.rawStore, p.typedStore, p.audits, log, m, p.cfg.TransformBatchLimit)
			runner := orchestrator.New(transformer, p.registry, p.audits, publisher, log, m, p.cfg.RunConcurrency)
			reconciler := reconcile.NewService(p.rawStore, p.typedStore, p.registry)

			handler := httpapi.NewHandler(httpapi.Options{
				Ingestor:       ingestor,
				Runner:         runner,
				Reconciler:     reconciler,
				Audits:         p.audits,
				Registry:       p.registry,
				Logger:         log,
				Health:         p.db.PingContext,
				IngestWindow:   p.cfg.IngestWindow,
				IngestRowLimit: p.cfg.IngestRowLimit,
			})
			srv := httpserver.New(p.cfg.Addr, httpapi.NewRouter(handler))

			errCh := make(chan error, 1)
			log.Info("starting encore", "addr", p.cfg.Addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
