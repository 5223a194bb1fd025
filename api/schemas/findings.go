package schemas

import (
	"time"
)

// -- Issue Schemas --

// Severity represents the impact level of an accessibility issue. The values
// are lowercase to align with the axe-core impact vocabulary and database ENUMs.
type Severity string

// Constants defining the standard severity levels for issues.
const (
	SeverityMinor    Severity = "minor"    // Cosmetic or low-impact barrier.
	SeverityModerate Severity = "moderate" // Noticeable barrier with a workaround.
	SeveritySerious  Severity = "serious"  // Significant barrier for some users.
	SeverityCritical Severity = "critical" // Blocks access for affected users.
)

// ParseSeverity maps a scanner-supplied impact hint onto the closed Severity
// enum. Unknown or absent hints default to moderate rather than failing, since
// the hint is advisory input from an untrusted producer.
func ParseSeverity(hint string) Severity {
	switch Severity(hint) {
	case SeverityMinor, SeverityModerate, SeveritySerious, SeverityCritical:
		return Severity(hint)
	default:
		return SeverityModerate
	}
}

// RawFinding is a single scanner-native record as emitted by the automated
// accessibility scan (one axe-core rule result node). It is treated as
// untrusted input: any field may be absent or malformed.
type RawFinding struct {
	RuleID         string   `json:"rule_id"`
	Selector       string   `json:"selector"`
	Impact         string   `json:"impact"`
	Help           string   `json:"help"`
	HelpURL        string   `json:"help_url"`
	Tags           []string `json:"tags"`
	HTML           string   `json:"html"`
	FailureSummary string   `json:"failure_summary"`
	Evidence       string   `json:"evidence,omitempty"`
	Bucket         string   `json:"bucket,omitempty"`
}

// Issue is the canonical, immutable form of a RawFinding. Exactly one Issue
// exists per distinct (rule id, selector) pair in a scan; its ID is derived
// deterministically from that pair so reruns produce identical IDs.
type Issue struct {
	ID             string   `json:"id"`
	RuleID         string   `json:"rule_id"`
	Severity       Severity `json:"severity"`
	Selector       string   `json:"selector"`
	Message        string   `json:"message"`
	HTML           string   `json:"html,omitempty"`
	FailureSummary string   `json:"failure_summary,omitempty"`
	Evidence       string   `json:"evidence,omitempty"`
	HelpURL        string   `json:"help_url,omitempty"`

	// WCAGCriteria holds the normalized success criteria ("1.1.1" style)
	// extracted from the scanner's wcag tags. Empty for best-practice rules.
	WCAGCriteria []string `json:"wcag_criteria,omitempty"`
}

// PrimaryCriterion returns the first WCAG success criterion associated with
// the issue, or an empty string for best-practice findings.
func (i Issue) PrimaryCriterion() string {
	if len(i.WCAGCriteria) == 0 {
		return ""
	}
	return i.WCAGCriteria[0]
}

// IsWCAG reports whether the issue maps to at least one WCAG success criterion.
func (i Issue) IsWCAG() bool { return len(i.WCAGCriteria) > 0 }

// -- Routing Schemas --

// Topic is a closed enumeration of semantic review categories. Each topic maps
// to exactly one prompt template and one retrieval strategy.
type Topic string

// Constants for the supported review topics.
const (
	TopicColorContrast    Topic = "color-contrast"
	TopicAltText          Topic = "alt-text"
	TopicLinkPurpose      Topic = "link-purpose"
	TopicHeadingStructure Topic = "heading-structure"
	TopicARIASemantics    Topic = "aria-semantics"
	TopicFocusOrder       Topic = "focus-order"
	TopicLanguage         Topic = "language"
	TopicOther            Topic = "other"
)

// Candidate is an Issue that the policy table flagged for semantic review,
// together with its assigned topic and its position in the normalized sequence.
type Candidate struct {
	Issue Issue `json:"issue"`
	Topic Topic `json:"topic"`

	// Ordinal is the issue's index in the normalizer's output. The merger
	// uses it to restore input ordering regardless of review completion order.
	Ordinal int `json:"ordinal"`
}

// -- Retrieval Schemas --

// Snippet is one reference passage attached to a candidate's prompt.
type Snippet struct {
	SourceID string `json:"source_id"`
	Text     string `json:"text"`
}

// RetrievedContext is the relevance-ranked, bounded set of snippets grounding
// a single review prompt. Most relevant first. An empty context is valid and
// means the prompt degrades to a context-free form.
type RetrievedContext struct {
	Snippets []Snippet `json:"snippets"`
}

// Empty reports whether no reference material was retrieved.
func (rc RetrievedContext) Empty() bool { return len(rc.Snippets) == 0 }

// -- Review Schemas --

// Prompt is a fully-resolved review prompt. Text is byte-deterministic given
// identical inputs; Hash is a stable truncated digest carried on the final
// record for traceability.
type Prompt struct {
	Topic Topic  `json:"topic"`
	Text  string `json:"text"`
	Hash  string `json:"hash"`
}

// Outcome is the closed set of judgment results for an issue.
type Outcome string

// Constants for the possible judgment outcomes.
const (
	OutcomeConfirmed        Outcome = "confirmed"
	OutcomeFalsePositive    Outcome = "false-positive"
	OutcomeNeedsHumanReview Outcome = "needs-human-review"
)

// Verdict is the immutable result of one semantic review call.
type Verdict struct {
	Outcome    Outcome `json:"outcome"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`

	// Reviewer identifies the capability that produced the verdict,
	// e.g. "stub" or a live model name.
	Reviewer string `json:"reviewer"`
}

// -- Output Schemas --

// Source records which path produced a final record's outcome.
type Source string

// Constants for the verdict source.
const (
	SourceAuto Source = "auto" // Policy table resolved the issue directly.
	SourceStub Source = "stub" // Deterministic stub reviewer.
	SourceLive Source = "live" // External judgment capability.
	SourceNone Source = ""     // Review was attempted but no verdict arrived.
)

// FinalRecord is the single consistent verdict record per issue, the sole
// contract between the review core and report rendering. Exactly one exists
// per normalized issue; it is never mutated after the merger emits it.
type FinalRecord struct {
	Issue

	Topic      Topic   `json:"topic,omitempty"`
	Outcome    Outcome `json:"outcome"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
	Source     Source  `json:"source"`
	PromptHash string  `json:"prompt_hash,omitempty"`
}

// RunStats counts the non-fatal degradations observed during a run so the
// summary can report degraded coverage instead of silently dropping issues.
type RunStats struct {
	RawFindings       int `json:"raw_findings"`
	MalformedSkipped  int `json:"malformed_skipped"`
	Deduplicated      int `json:"deduplicated"`
	AutoResolved      int `json:"auto_resolved"`
	Candidates        int `json:"candidates"`
	RetrievalFailures int `json:"retrieval_failures"`
	ReviewerFailures  int `json:"reviewer_failures"`
}

// ReviewReport is the aggregated run artifact handed whole to reporters.
type ReviewReport struct {
	RunID       string         `json:"run_id"`
	PageURL     string         `json:"page_url"`
	GeneratedAt time.Time      `json:"generated_at"`
	Records     []FinalRecord  `json:"records"`
	Stats       RunStats       `json:"stats"`
	Summary     map[string]int `json:"summary"`
}
