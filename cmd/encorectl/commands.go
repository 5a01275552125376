package main

import (
	"github.com/spf13/cobra"

	"encore/internal/domain"
)

func newIngestCommand() *cobra.Command {
	var entityFlag, modeFlag string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch source records into the raw store",
		RunE: func(cmd *cobra.Command, args []string) error {
			full, err := parseFullMode(modeFlag)
			if err != nil {
				return err
			}
			p, err := openPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.close()

			names, err := p.registry.ResolveScope(entityFlag)
			if err != nil {
				return err
			}
			var results []domain.IngestResult
			for _, name := range names {
				d, err := p.registry.Get(name)
				if err != nil {
					return err
				}
				result, err := p.ingestor.Ingest(cmd.Context(), d, p.fetchOptions(full))
				results = append(results, result)
				if err != nil {
					_ = printJSON(results)
					return err
				}
			}
			return printJSON(results)
		},
	}
	cmd.Flags().StringVarP(&entityFlag, "entity", "e", "all", "Entity to ingest, or all")
	cmd.Flags().StringVarP(&modeFlag, "mode", "m", "incremental", "Fetch mode: incremental or full")
	return cmd
}

func newTransformCommand() *cobra.Command {
	var entityFlag string
	var forceFlag bool
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Transform unprocessed raw records into typed tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.close()

			result, err := p.runner.Run(cmd.Context(), entityFlag, forceFlag)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVarP(&entityFlag, "entity", "e", "all", "Entity to transform, or all")
	cmd.Flags().BoolVar(&forceFlag, "force-reprocess", false, "Reset processed flags and re-run the mapping")
	return cmd
}

func newRunCommand() *cobra.Command {
	var scopeFlag, modeFlag string
	var forceFlag bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest then transform in one pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			full, err := parseFullMode(modeFlag)
			if err != nil {
				return err
			}
			p, err := openPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.close()

			names, err := p.registry.ResolveScope(scopeFlag)
			if err != nil {
				return err
			}
			var ingests []domain.IngestResult
			for _, name := range names {
				d, err := p.registry.Get(name)
				if err != nil {
					return err
				}
				result, ingestErr := p.ingestor.Ingest(cmd.Context(), d, p.fetchOptions(full))
				ingests = append(ingests, result)
				if ingestErr != nil {
					cmd.PrintErrf("ingest %s: %v\n", name, ingestErr)
				}
			}
			runResult, err := p.runner.Run(cmd.Context(), scopeFlag, forceFlag)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"ingest":    ingests,
				"transform": runResult,
			})
		},
	}
	cmd.Flags().StringVarP(&scopeFlag, "scope", "s", "all", "Entity scope: one entity, a comma list, or all")
	cmd.Flags().StringVarP(&modeFlag, "mode", "m", "incremental", "Fetch mode: incremental or full")
	cmd.Flags().BoolVar(&forceFlag, "force-reprocess", false, "Reset processed flags and re-run the mapping")
	return cmd
}

func newReconcileCommand() *cobra.Command {
	var entityFlag string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare bronze and silver id sets per entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.close()

			if entityFlag != "" && entityFlag != "all" {
				report, err := p.reconciler.Report(cmd.Context(), entityFlag)
				if err != nil {
					return err
				}
				return printJSON(report)
			}
			reports, err := p.reconciler.ReportAll(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(reports)
		},
	}
	cmd.Flags().StringVarP(&entityFlag, "entity", "e", "all", "Entity to reconcile, or all")
	return cmd
}

func newRunsCommand() *cobra.Command {
	var limitFlag int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent processing audit records",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.close()

			runs, err := p.audits.ListRuns(cmd.Context(), limitFlag)
			if err != nil {
				return err
			}
			return printJSON(runs)
		},
	}
	cmd.Flags().IntVarP(&limitFlag, "limit", "n", 20, "Number of runs to show")
	return cmd
}
