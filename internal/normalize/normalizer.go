package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/a11yscope/a11yscope-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMalformedInput marks a raw finding record missing a required field (rule
// id or node selector). Such records are skipped and counted, never fatal.
var ErrMalformedInput = errors.New("malformed raw finding")

// wcagTagRegex matches axe rule tags like "wcag111" or "wcag1410" and captures
// the success criterion digits (principle, guideline, criterion).
var wcagTagRegex = regexp.MustCompile(`^wcag(\d)(\d)(\d{1,2})$`)

// Stats counts what happened to the raw input during normalization.
type Stats struct {
	RawFindings      int
	MalformedSkipped int
	Deduplicated     int
}

// Options tunes which raw buckets the normalizer ingests.
type Options struct {
	// IncludePasses expands selected passed rules (image-alt, link-name)
	// into review candidates when their markup looks suspicious, e.g. a
	// generic alt text that technically satisfies the deterministic check.
	IncludePasses bool
}

// Normalizer parses raw scanner output into the canonical issue form.
type Normalizer struct {
	opts   Options
	logger *zap.Logger
}

// New creates a Normalizer.
func New(opts Options, logger *zap.Logger) *Normalizer {
	return &Normalizer{opts: opts, logger: logger.Named("normalizer")}
}

// ParsePayload decodes a raw axe-core result document and normalizes it.
// It accepts either the full axe payload ({violations, incomplete, passes})
// or a flat JSON array of pre-flattened finding records. A document that
// cannot be decoded at all is an input error and aborts the run; individual
// bad records inside a decodable document are skipped and counted.
func (n *Normalizer) ParsePayload(raw []byte) ([]schemas.Issue, Stats, error) {
	findings, err := n.flatten(raw)
	if err != nil {
		return nil, Stats{}, err
	}
	issues, stats := n.Normalize(findings)
	return issues, stats, nil
}

// Normalize converts raw findings into an ordered, deduplicated sequence of
// issues. Order is encounter order; duplicates by (rule id, selector) collapse
// into the first-seen issue, retaining its evidence reference.
func (n *Normalizer) Normalize(findings []schemas.RawFinding) ([]schemas.Issue, Stats) {
	stats := Stats{RawFindings: len(findings)}
	seen := make(map[string]struct{}, len(findings))
	issues := make([]schemas.Issue, 0, len(findings))

	for _, f := range findings {
		if f.RuleID == "" || f.Selector == "" {
			stats.MalformedSkipped++
			n.logger.Debug("Skipping malformed raw finding",
				zap.String("rule_id", f.RuleID),
				zap.String("selector", f.Selector))
			continue
		}

		id := IssueID(f.RuleID, f.Selector)
		if _, dup := seen[id]; dup {
			stats.Deduplicated++
			continue
		}
		seen[id] = struct{}{}

		issues = append(issues, schemas.Issue{
			ID:             id,
			RuleID:         f.RuleID,
			Severity:       schemas.ParseSeverity(f.Impact),
			Selector:       f.Selector,
			Message:        f.Help,
			HTML:           f.HTML,
			FailureSummary: f.FailureSummary,
			Evidence:       f.Evidence,
			HelpURL:        f.HelpURL,
			WCAGCriteria:   ExtractCriteria(f.Tags),
		})
	}

	n.logger.Info("Normalization complete",
		zap.Int("raw", stats.RawFindings),
		zap.Int("issues", len(issues)),
		zap.Int("malformed_skipped", stats.MalformedSkipped),
		zap.Int("deduplicated", stats.Deduplicated))
	return issues, stats
}

// IssueID derives the stable issue identifier from the (rule id, selector)
// pair. Reruns over the same page produce identical IDs.
func IssueID(ruleID, selector string) string {
	sum := sha256.Sum256([]byte(ruleID + "\x00" + selector))
	return hex.EncodeToString(sum[:])[:16]
}

// ExtractCriteria pulls normalized WCAG success criteria ("1.1.1" style) out
// of the scanner's rule tags, preserving tag order.
func ExtractCriteria(tags []string) []string {
	var out []string
	for _, t := range tags {
		m := wcagTagRegex.FindStringSubmatch(strings.ToLower(t))
		if m == nil {
			continue
		}
		out = append(out, fmt.Sprintf("%s.%s.%s", m[1], m[2], criterionDigits(m[3])))
	}
	return out
}

// criterionDigits splits a two-digit criterion suffix: "10" stays "10" for
// criteria like 1.4.10, single digits pass through.
func criterionDigits(d string) string {
	return strings.TrimPrefix(d, "0")
}

// flatten decodes either payload shape into a flat finding sequence.
func (n *Normalizer) flatten(raw []byte) ([]schemas.RawFinding, error) {
	trimmed := strings.TrimLeftFunc(string(raw), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if strings.HasPrefix(trimmed, "[") {
		var findings []schemas.RawFinding
		if err := json.Unmarshal(raw, &findings); err != nil {
			return nil, fmt.Errorf("failed to decode raw finding array: %w", err)
		}
		return findings, nil
	}

	var payload axePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode axe payload: %w", err)
	}

	var findings []schemas.RawFinding
	appendBucket := func(bucket string, results []axeResult) {
		for _, r := range results {
			for _, node := range r.Nodes {
				impact := node.Impact
				if impact == "" {
					impact = r.Impact
				}
				findings = append(findings, schemas.RawFinding{
					RuleID:         r.ID,
					Selector:       node.selector(),
					Impact:         impact,
					Help:           r.Help,
					HelpURL:        r.HelpURL,
					Tags:           r.Tags,
					HTML:           node.HTML,
					FailureSummary: node.FailureSummary,
					Evidence:       node.Screenshot,
					Bucket:         bucket,
				})
			}
		}
	}

	appendBucket("violations", payload.Violations)
	appendBucket("incomplete", payload.Incomplete)
	if n.opts.IncludePasses {
		findings = append(findings, n.expandPasses(payload.Passes)...)
	}
	return findings, nil
}
