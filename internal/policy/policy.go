// Package policy holds the versioned rule policy table that drives candidate
// selection and topic routing. All routing logic is a lookup into one
// immutable table loaded at startup; adding support for a new scanner rule
// means adding a table row, not code.
package policy

import (
	_ "embed"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/a11yscope/a11yscope-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed default_policy.json
var defaultPolicy []byte

// Action determines whether a rule's findings are resolved directly from
// deterministic data or handed to semantic review.
type Action string

const (
	// ActionAuto resolves every instance of the rule from the table alone.
	ActionAuto Action = "auto"
	// ActionReview flags every instance for semantic review.
	ActionReview Action = "review"
)

// Rule is one policy table row.
type Rule struct {
	Action  Action          `json:"action"`
	Outcome schemas.Outcome `json:"outcome,omitempty"`
	Topic   schemas.Topic   `json:"topic"`
}

// Decision is the resolved routing for a single rule id.
type Decision struct {
	Review  bool
	Outcome schemas.Outcome
	Topic   schemas.Topic
}

// Table is the immutable rule policy table. It is loaded once per run and is
// safe for concurrent lookups.
type Table struct {
	version string
	rules   map[string]Rule
}

type tableDoc struct {
	Version string          `json:"version"`
	Rules   map[string]Rule `json:"rules"`
}

// Load reads the policy table from the given path, or the embedded default
// table when path is empty. An unreadable or invalid table is a configuration
// error and therefore fatal to the run.
func Load(path string) (*Table, error) {
	raw := defaultPolicy
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy table %s: %w", path, err)
		}
	}
	return Parse(raw)
}

// Parse decodes and validates a policy table document.
func Parse(raw []byte) (*Table, error) {
	var doc tableDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode policy table: %w", err)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("policy table is missing a version")
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("policy table %s defines no rules", doc.Version)
	}
	for id, r := range doc.Rules {
		if err := validateRule(r); err != nil {
			return nil, fmt.Errorf("policy table %s, rule %q: %w", doc.Version, id, err)
		}
	}
	return &Table{version: doc.Version, rules: doc.Rules}, nil
}

func validateRule(r Rule) error {
	switch r.Action {
	case ActionAuto:
		switch r.Outcome {
		case schemas.OutcomeConfirmed, schemas.OutcomeFalsePositive, schemas.OutcomeNeedsHumanReview:
		default:
			return fmt.Errorf("auto rule requires a valid outcome, got %q", r.Outcome)
		}
	case ActionReview:
		if r.Outcome != "" {
			return fmt.Errorf("review rule must not carry an outcome")
		}
	default:
		return fmt.Errorf("unknown action %q", r.Action)
	}
	if !knownTopic(r.Topic) {
		return fmt.Errorf("unknown topic %q", r.Topic)
	}
	return nil
}

func knownTopic(t schemas.Topic) bool {
	switch t {
	case schemas.TopicColorContrast, schemas.TopicAltText, schemas.TopicLinkPurpose,
		schemas.TopicHeadingStructure, schemas.TopicARIASemantics,
		schemas.TopicFocusOrder, schemas.TopicLanguage, schemas.TopicOther:
		return true
	}
	return false
}

// Version returns the table's version string.
func (t *Table) Version() string { return t.version }

// Len returns the number of rule rows.
func (t *Table) Len() int { return len(t.rules) }

// Decide resolves the routing for a rule id. It is total over all inputs:
// rule ids absent from the table route to semantic review under the generic
// topic rather than failing.
func (t *Table) Decide(ruleID string) Decision {
	r, ok := t.rules[ruleID]
	if !ok {
		return Decision{Review: true, Topic: schemas.TopicOther}
	}
	if r.Action == ActionAuto {
		return Decision{Review: false, Outcome: r.Outcome, Topic: r.Topic}
	}
	return Decision{Review: true, Topic: r.Topic}
}
