// Package prompt assembles review prompts. Building is a pure function: no
// I/O, no clock, no randomness, so identical inputs always produce
// byte-identical prompt text. That property is what makes prompt caching and
// prompt unit tests possible without invoking a reviewer.
package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"text/template"

	"github.com/a11yscope/a11yscope-cli/api/schemas"
)

const (
	// maxHTMLLen bounds the element snippet so prompts stay small.
	maxHTMLLen = 1200
)

// Builder renders candidates into prompts.
type Builder struct {
	tmpl *template.Template
}

// NewBuilder compiles the prompt template.
func NewBuilder() (*Builder, error) {
	tmpl, err := template.New("review").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}
	return &Builder{tmpl: tmpl}, nil
}

// templateData carries only ordered, deterministic values into the template.
type templateData struct {
	TopicLabel     string
	Instructions   string
	RuleID         string
	Severity       schemas.Severity
	Selector       string
	Message        string
	FailureSummary string
	Criteria       string
	HTML           string
	Snippets       []schemas.Snippet
}

// Build renders the prompt for a candidate and its retrieved context.
func (b *Builder) Build(cand schemas.Candidate, rctx schemas.RetrievedContext) (schemas.Prompt, error) {
	issue := cand.Issue

	data := templateData{
		TopicLabel:     topicLabel(cand),
		Instructions:   instructionsFor(cand.Topic),
		RuleID:         issue.RuleID,
		Severity:       issue.Severity,
		Selector:       issue.Selector,
		Message:        issue.Message,
		FailureSummary: issue.FailureSummary,
		Criteria:       strings.Join(issue.WCAGCriteria, ", "),
		HTML:           truncate(issue.HTML, maxHTMLLen),
		Snippets:       rctx.Snippets,
	}

	var sb strings.Builder
	if err := b.tmpl.Execute(&sb, data); err != nil {
		return schemas.Prompt{}, fmt.Errorf("failed to render prompt for issue %s: %w", issue.ID, err)
	}

	text := sb.String()
	return schemas.Prompt{
		Topic: cand.Topic,
		Text:  text,
		Hash:  Hash(text),
	}, nil
}

// Hash returns the truncated sha256 digest used for prompt traceability.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// topicLabel prefers the WCAG success criterion over the bare topic name,
// e.g. "SC 1.4.3" instead of "color-contrast".
func topicLabel(cand schemas.Candidate) string {
	if sc := cand.Issue.PrimaryCriterion(); sc != "" {
		return "SC " + sc
	}
	return string(cand.Topic)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
