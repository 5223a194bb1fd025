package reviewer

import (
	"context"
	"hash/fnv"

	"github.com/a11yscope/a11yscope-cli/api/schemas"
)

// StubName identifies the stub capability on verdicts it produces.
const StubName = "stub"

// Stub is the offline judgment capability. Its verdict is a pure function of
// the prompt text, which keeps demo runs and tests reproducible: identical
// prompts always yield identical verdicts.
type Stub struct{}

// NewStub creates the stub reviewer.
func NewStub() *Stub { return &Stub{} }

// Name implements schemas.Reviewer.
func (s *Stub) Name() string { return StubName }

// Review derives a fixed verdict from an FNV-1a hash of the prompt text.
// Roughly three quarters of prompts confirm; the rest are deferred to a
// human, so demo reports exercise both paths.
func (s *Stub) Review(_ context.Context, prompt schemas.Prompt) (schemas.Verdict, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(prompt.Text))
	sum := h.Sum64()

	outcome := schemas.OutcomeConfirmed
	rationale := "Deterministic stub verdict; no live reviewer configured."
	if sum%4 == 0 {
		outcome = schemas.OutcomeNeedsHumanReview
		rationale = "Deterministic stub verdict; flagged for human review by hash rule."
	}

	// Confidence in [0.50, 0.89], stable for a given prompt.
	confidence := 0.5 + float64(sum%40)/100

	return schemas.Verdict{
		Outcome:    outcome,
		Confidence: confidence,
		Rationale:  rationale,
		Reviewer:   StubName,
	}, nil
}
