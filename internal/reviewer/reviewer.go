// Package reviewer implements the pluggable judgment capability behind the
// review pipeline: a deterministic offline stub and a live LLM-backed
// variant, both satisfying schemas.Reviewer.
package reviewer

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/a11yscope/a11yscope-cli/api/schemas"
	"github.com/a11yscope/a11yscope-cli/internal/config"
)

var (
	// ErrReviewerUnavailable marks a transport-level failure reaching the
	// judgment capability. Per-candidate, non-fatal.
	ErrReviewerUnavailable = errors.New("reviewer unavailable")

	// ErrReviewerMalformedResponse marks a response that could not be parsed
	// into a Verdict. Per-candidate, non-fatal.
	ErrReviewerMalformedResponse = errors.New("reviewer returned malformed response")
)

// FromConfig builds the reviewer selected by configuration.
func FromConfig(cfg config.ReviewerConfig, logger *zap.Logger) (schemas.Reviewer, error) {
	switch cfg.Mode {
	case config.ReviewerStub:
		return NewStub(), nil
	case config.ReviewerLive:
		return NewLive(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown reviewer mode %q", cfg.Mode)
	}
}
