package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/a11yscope/a11yscope-cli/api/schemas"
	"github.com/a11yscope/a11yscope-cli/internal/config"
	"github.com/a11yscope/a11yscope-cli/internal/normalize"
	"github.com/a11yscope/a11yscope-cli/internal/observability"
	"github.com/a11yscope/a11yscope-cli/internal/pipeline"
	"github.com/a11yscope/a11yscope-cli/internal/policy"
	"github.com/a11yscope/a11yscope-cli/internal/prompt"
	"github.com/a11yscope/a11yscope-cli/internal/reporting"
	"github.com/a11yscope/a11yscope-cli/internal/retrieval"
	"github.com/a11yscope/a11yscope-cli/internal/reviewer"
)

// newAuditCmd creates and configures the `audit` command.
func newAuditCmd() *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit <axe-results.json>",
		Short: "Normalize scanner findings and run them through semantic review",
		Long: `Ingests an axe-core results file, normalizes and deduplicates the findings,
resolves mechanical rules through the policy table, and routes the remaining
candidates through topic-specific semantic review. Emits one verdict record
per distinct issue.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind override flags to their viper keys so flag > env > file
			// precedence holds.
			bindings := map[string]string{
				"pipeline.worker_concurrency": "concurrency",
				"pipeline.skip_best_practice": "skip-best-practice",
				"pipeline.include_passes":     "include-passes",
				"reviewer.mode":               "reviewer",
				"policy.path":                 "policy",
			}
			for key, flag := range bindings {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			cfg.Audit = config.AuditConfig{
				Input:      args[0],
				PageURL:    mustString(cmd, "url"),
				Output:     mustString(cmd, "output"),
				Format:     mustString(cmd, "format"),
				PromptsDir: mustString(cmd, "prompts-dir"),
				Persist:    mustBool(cmd, "store"),
			}

			return runAudit(ctx, logger, cfg, NewStoreProvider())
		},
	}

	auditCmd.Flags().String("url", "", "URL of the audited page, recorded in the report.")
	auditCmd.Flags().StringP("output", "o", "", "Output file path for the report. Defaults to stdout.")
	auditCmd.Flags().StringP("format", "f", "text", "Report format: 'text' or 'json'.")
	auditCmd.Flags().IntP("concurrency", "j", 0, "Number of concurrent review workers. (Overrides config/env)")
	auditCmd.Flags().String("reviewer", "", "Reviewer mode: 'stub' or 'live'. (Overrides config/env)")
	auditCmd.Flags().String("policy", "", "Path to a policy table JSON file. Defaults to the built-in table.")
	auditCmd.Flags().String("prompts-dir", "", "Directory to persist built prompts for audit trails.")
	auditCmd.Flags().Bool("skip-best-practice", false, "Defer non-WCAG findings to human review without calling the reviewer.")
	auditCmd.Flags().Bool("include-passes", false, "Expand suspicious passed nodes (generic alt text, vague link text) into review candidates.")
	auditCmd.Flags().Bool("store", false, "Persist the run to the configured database.")

	return auditCmd
}

// runAudit contains the core, testable logic for an audit run.
func runAudit(ctx context.Context, logger *zap.Logger, cfg *config.Config, provider storeProvider) error {
	raw, err := os.ReadFile(cfg.Audit.Input)
	if err != nil {
		return fmt.Errorf("failed to read scan results %s: %w", cfg.Audit.Input, err)
	}

	normalizer := normalize.New(normalize.Options{IncludePasses: cfg.Pipeline.IncludePasses}, logger)
	issues, normStats, err := normalizer.ParsePayload(raw)
	if err != nil {
		return fmt.Errorf("failed to parse scan results: %w", err)
	}

	table, err := policy.Load(cfg.Policy.Path)
	if err != nil {
		return fmt.Errorf("failed to load policy table: %w", err)
	}

	// The store is optional: needed only for run persistence or
	// prior-verdict retrieval.
	var runStore schemas.Store
	var cleanup func()
	if cfg.Audit.Persist || cfg.Retrieval.PriorVerdicts {
		runStore, cleanup, err = provider.Create(ctx, cfg)
		if err != nil {
			if cfg.Audit.Persist {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			logger.Warn("Store unavailable, prior-verdict retrieval disabled", zap.Error(err))
		}
		if cleanup != nil {
			defer cleanup()
		}
	}

	retriever, err := retrieval.NewFromLibrary(retrieval.Options{
		TopK:              cfg.Retrieval.TopK,
		Timeout:           cfg.Retrieval.Timeout,
		PriorVerdicts:     cfg.Retrieval.PriorVerdicts,
		PriorVerdictLimit: cfg.Retrieval.PriorVerdictLimit,
	}, runStore, logger)
	if err != nil {
		return fmt.Errorf("failed to load reference library: %w", err)
	}

	builder, err := prompt.NewBuilder()
	if err != nil {
		return fmt.Errorf("failed to compile prompt templates: %w", err)
	}

	rev, err := reviewer.FromConfig(cfg.Reviewer, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize reviewer: %w", err)
	}

	var sink pipeline.PromptSink
	if cfg.Audit.PromptsDir != "" {
		dirSink, err := pipeline.NewDirSink(cfg.Audit.PromptsDir)
		if err != nil {
			return fmt.Errorf("failed to create prompts directory: %w", err)
		}
		sink = dirSink
	}

	pipe, err := pipeline.New(table, retriever, builder, rev, cfg.Pipeline, sink, logger)
	if err != nil {
		return fmt.Errorf("failed to assemble pipeline: %w", err)
	}

	runID := uuid.New().String()
	logger.Info("Starting audit run",
		zap.String("run_id", runID),
		zap.String("input", cfg.Audit.Input),
		zap.Int("issues", len(issues)),
		zap.String("reviewer", rev.Name()),
		zap.Int("concurrency", cfg.Pipeline.WorkerConcurrency),
	)

	records, stats, err := pipe.Run(ctx, issues)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Audit aborted", zap.String("run_id", runID))
		}
		return err
	}
	stats.RawFindings = normStats.RawFindings
	stats.MalformedSkipped = normStats.MalformedSkipped
	stats.Deduplicated = normStats.Deduplicated

	report := &schemas.ReviewReport{
		RunID:       runID,
		PageURL:     cfg.Audit.PageURL,
		GeneratedAt: time.Now().UTC(),
		Records:     records,
		Stats:       stats,
		Summary:     pipeline.Summarize(records),
	}

	if cfg.Audit.Persist && runStore != nil {
		if err := runStore.PersistReport(ctx, report); err != nil {
			return fmt.Errorf("failed to persist run %s: %w", runID, err)
		}
		logger.Info("Run persisted", zap.String("run_id", runID))
	}

	if err := writeReport(logger, report, cfg.Audit.Output, cfg.Audit.Format); err != nil {
		return err
	}

	logger.Info("Audit complete",
		zap.String("run_id", runID),
		zap.Int("records", len(records)),
		zap.Int("auto_resolved", stats.AutoResolved),
		zap.Int("reviewed", stats.Candidates),
	)
	return nil
}

// writeReport renders the report via the reporting module.
func writeReport(logger *zap.Logger, report *schemas.ReviewReport, outputPath, format string) error {
	rep, err := reporting.New(format, outputPath)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	defer func() {
		if err := rep.Close(); err != nil {
			logger.Warn("Failed to close reporter cleanly.", zap.Error(err))
		}
	}()

	if err := rep.Write(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if outputPath != "" && outputPath != "stdout" {
		logger.Info("Report written", zap.String("path", outputPath))
	}
	return nil
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func mustBool(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Flags().GetBool(name)
	return v
}
