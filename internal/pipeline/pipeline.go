// Package pipeline wires the review core together: it partitions normalized
// issues by the policy table, runs retrieval, prompt building, and review for
// each candidate under a bounded worker pool, and merges everything back into
// one FinalRecord per issue in the normalizer's order.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/a11yscope/a11yscope-cli/api/schemas"
	"github.com/a11yscope/a11yscope-cli/internal/config"
	"github.com/a11yscope/a11yscope-cli/internal/policy"
	"github.com/a11yscope/a11yscope-cli/internal/prompt"
	"github.com/a11yscope/a11yscope-cli/internal/reviewer"
)

// Pipeline routes issues through selection, retrieval, prompting, and review.
type Pipeline struct {
	table     *policy.Table
	retriever schemas.Retriever
	builder   *prompt.Builder
	reviewer  schemas.Reviewer
	cfg       config.PipelineConfig
	sink      PromptSink
	logger    *zap.Logger
}

// PromptSink receives each built prompt for audit persistence. Sink failures
// are logged and never affect the run.
type PromptSink interface {
	Persist(ordinal int, cand schemas.Candidate, p schemas.Prompt) error
}

// New assembles a pipeline. sink may be nil.
func New(
	table *policy.Table,
	retriever schemas.Retriever,
	builder *prompt.Builder,
	reviewer schemas.Reviewer,
	cfg config.PipelineConfig,
	sink PromptSink,
	logger *zap.Logger,
) (*Pipeline, error) {
	if table == nil {
		return nil, fmt.Errorf("policy table cannot be nil")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever cannot be nil")
	}
	if builder == nil {
		return nil, fmt.Errorf("prompt builder cannot be nil")
	}
	if reviewer == nil {
		return nil, fmt.Errorf("reviewer cannot be nil")
	}
	if cfg.WorkerConcurrency <= 0 {
		return nil, fmt.Errorf("worker concurrency must be positive")
	}
	return &Pipeline{
		table:     table,
		retriever: retriever,
		builder:   builder,
		reviewer:  reviewer,
		cfg:       cfg,
		sink:      sink,
		logger:    logger.Named("pipeline"),
	}, nil
}

// Run produces exactly one FinalRecord per issue, preserving input order.
// Every upstream degradation (retrieval failure, reviewer failure) yields a
// marked record instead of aborting; the returned stats count them. The only
// error Run itself returns is context cancellation of the whole run.
func (p *Pipeline) Run(ctx context.Context, issues []schemas.Issue) ([]schemas.FinalRecord, schemas.RunStats, error) {
	records := make([]schemas.FinalRecord, len(issues))
	stats := schemas.RunStats{}

	// Partition: auto-resolved records are final immediately; the rest
	// become review candidates carrying their original ordinal.
	var candidates []schemas.Candidate
	for i, issue := range issues {
		decision := p.table.Decide(issue.RuleID)
		if !decision.Review {
			stats.AutoResolved++
			records[i] = schemas.FinalRecord{
				Issue:      issue,
				Topic:      decision.Topic,
				Outcome:    decision.Outcome,
				Confidence: 1.0,
				Source:     schemas.SourceAuto,
			}
			continue
		}
		if p.cfg.SkipBestPractice && !issue.IsWCAG() {
			rec := placeholder(issue,
				"Best-practice finding skipped by configuration; review manually.")
			rec.Topic = decision.Topic
			records[i] = rec
			continue
		}
		candidates = append(candidates, schemas.Candidate{
			Issue:   issue,
			Topic:   decision.Topic,
			Ordinal: i,
		})
	}
	stats.Candidates = len(candidates)

	p.logger.Info("Issues partitioned",
		zap.Int("total", len(issues)),
		zap.Int("auto_resolved", stats.AutoResolved),
		zap.Int("candidates", stats.Candidates))

	var retrievalFailures, reviewerFailures atomic.Int64

	// Candidates are independent; process them under a bounded pool. Each
	// worker writes only its own ordinal slot, so no locking is needed and
	// completion order cannot affect output order.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.WorkerConcurrency)

	for _, cand := range candidates {
		cand := cand
		if gctx.Err() != nil {
			// Cancelled: stop dispatching, placeholder the remainder.
			rec := placeholder(cand.Issue, "Run cancelled before review.")
			rec.Topic = cand.Topic
			records[cand.Ordinal] = rec
			continue
		}
		g.Go(func() error {
			records[cand.Ordinal] = p.reviewOne(gctx, cand, &retrievalFailures, &reviewerFailures)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, stats, err
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	stats.RetrievalFailures = int(retrievalFailures.Load())
	stats.ReviewerFailures = int(reviewerFailures.Load())
	return records, stats, nil
}

// reviewOne runs the per-candidate chain: retrieve, build, review. Every
// failure degrades to the needs-human-review placeholder.
func (p *Pipeline) reviewOne(ctx context.Context, cand schemas.Candidate, retrievalFailures, reviewerFailures *atomic.Int64) schemas.FinalRecord {
	log := p.logger.With(
		zap.String("issue_id", cand.Issue.ID),
		zap.String("rule_id", cand.Issue.RuleID),
		zap.String("topic", string(cand.Topic)))

	rctx, err := p.retriever.Retrieve(ctx, cand)
	if err != nil {
		retrievalFailures.Add(1)
		log.Warn("Context retrieval degraded", zap.Error(err))
		// rctx may still hold partial snippets; an empty context is valid.
	}

	pr, err := p.builder.Build(cand, rctx)
	if err != nil {
		// Template failures are deterministic per candidate, not transient.
		reviewerFailures.Add(1)
		log.Error("Prompt construction failed", zap.Error(err))
		rec := placeholder(cand.Issue, "Prompt construction failed; review manually.")
		rec.Topic = cand.Topic
		return rec
	}

	if p.sink != nil {
		if err := p.sink.Persist(cand.Ordinal, cand, pr); err != nil {
			log.Warn("Failed to persist prompt for audit", zap.Error(err))
		}
	}

	if ctx.Err() != nil {
		rec := placeholderWithHash(cand.Issue, "Run cancelled before review.", pr.Hash)
		rec.Topic = cand.Topic
		return rec
	}

	reviewCtx := ctx
	if p.cfg.ReviewTimeout > 0 {
		var cancel context.CancelFunc
		reviewCtx, cancel = context.WithTimeout(ctx, p.cfg.ReviewTimeout)
		defer cancel()
	}

	verdict, err := p.reviewer.Review(reviewCtx, pr)
	if err != nil {
		reviewerFailures.Add(1)
		log.Warn("Review failed, deferring to human", zap.Error(err))
		rec := placeholderWithHash(cand.Issue, "Automated review unavailable; review manually.", pr.Hash)
		rec.Topic = cand.Topic
		return rec
	}

	source := schemas.SourceLive
	if verdict.Reviewer == reviewer.StubName {
		source = schemas.SourceStub
	}

	return schemas.FinalRecord{
		Issue:      cand.Issue,
		Topic:      cand.Topic,
		Outcome:    verdict.Outcome,
		Confidence: verdict.Confidence,
		Rationale:  verdict.Rationale,
		Source:     source,
		PromptHash: pr.Hash,
	}
}

// placeholder is the degraded-but-valid record for a candidate that never
// received a verdict.
func placeholder(issue schemas.Issue, rationale string) schemas.FinalRecord {
	return schemas.FinalRecord{
		Issue:      issue,
		Outcome:    schemas.OutcomeNeedsHumanReview,
		Confidence: 0,
		Rationale:  rationale,
		Source:     schemas.SourceNone,
	}
}

func placeholderWithHash(issue schemas.Issue, rationale, hash string) schemas.FinalRecord {
	rec := placeholder(issue, rationale)
	rec.PromptHash = hash
	return rec
}

// Summarize aggregates outcome counts for the report envelope.
func Summarize(records []schemas.FinalRecord) map[string]int {
	summary := make(map[string]int)
	summary["total"] = len(records)
	for _, r := range records {
		summary[string(r.Outcome)]++
	}
	return summary
}
