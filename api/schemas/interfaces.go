package schemas

import (
	"context"
)

// -- Reviewer Interface --

// Reviewer is the pluggable judgment capability: given a fully-built prompt,
// return a structured verdict or fail. Implementations must be safe for
// concurrent use and idempotent for identical prompts; each call is
// independent of every other.
type Reviewer interface {
	// Review judges one candidate prompt. A returned error is always
	// per-candidate and non-fatal to the run: the merger substitutes the
	// needs-human-review placeholder for the missing verdict.
	Review(ctx context.Context, prompt Prompt) (Verdict, error)

	// Name identifies the capability for the FinalRecord source field.
	Name() string
}

// -- Retrieval Interface --

// Retriever fetches topic-relevant reference snippets to ground a review
// prompt. An unavailable knowledge source degrades to an empty context.
type Retriever interface {
	Retrieve(ctx context.Context, cand Candidate) (RetrievedContext, error)
}

// -- Store Interface --

// Store abstracts the persistence layer for review runs. It lets the pipeline
// and the report command stay independent of the concrete database, and lets
// the retriever consult prior verdicts without knowing where they live.
type Store interface {
	// PersistReport saves a complete review report under its run ID.
	PersistReport(ctx context.Context, report *ReviewReport) error
	// GetReport retrieves a previously persisted run.
	GetReport(ctx context.Context, runID string) (*ReviewReport, error)
	// PriorVerdicts returns recent reviewed records for a topic, newest
	// first, for use as retrieval context.
	PriorVerdicts(ctx context.Context, topic Topic, limit int) ([]FinalRecord, error)
}
