package normalize

import (
	"regexp"
	"strings"

	"github.com/a11yscope/a11yscope-cli/api/schemas"
)

// Passed-but-interesting expansion: a handful of rules that axe marks as
// passing can still hide semantic defects the deterministic check cannot see.
// A decorative alt text of "image" passes image-alt, and "click here" passes
// link-name. These nodes are surfaced as review candidates.

var altAttrRegex = regexp.MustCompile(`(?i)\balt\s*=\s*["']([^"']*)["']`)

// genericAltWords flag alt text that names the medium instead of the meaning.
var genericAltWords = []string{"image", "photo", "picture", "icon", "img_", ".jpg", ".jpeg", ".png", ".gif"}

// genericLinkText are link labels that carry no purpose out of context.
var genericLinkText = map[string]struct{}{
	"click here": {},
	"learn more": {},
	"read more":  {},
	"more":       {},
	"here":       {},
}

// expandPasses scans the passed-rule buckets for image-alt and link-name
// nodes whose markup looks semantically weak and re-emits them as findings.
func (n *Normalizer) expandPasses(passes []axeResult) []schemas.RawFinding {
	var findings []schemas.RawFinding
	for _, r := range passes {
		switch r.ID {
		case "image-alt":
			for _, node := range r.Nodes {
				if !hasGenericAlt(node.HTML) {
					continue
				}
				findings = append(findings, passFinding(r, node, "image-alt-quality",
					"Image alternative text may be generic or redundant"))
			}
		case "link-name":
			for _, node := range r.Nodes {
				if !hasGenericLinkText(node.HTML) {
					continue
				}
				findings = append(findings, passFinding(r, node, "link-name-quality",
					"Link text may not describe the link purpose"))
			}
		}
	}
	return findings
}

// passFinding re-emits a passed node under a distinct quality rule so it
// routes to semantic review instead of the original rule's policy row.
func passFinding(r axeResult, node axeNode, ruleID, summary string) schemas.RawFinding {
	return schemas.RawFinding{
		RuleID:         ruleID,
		Selector:       node.selector(),
		Impact:         string(schemas.SeverityModerate),
		Help:           r.Help,
		HelpURL:        r.HelpURL,
		Tags:           r.Tags,
		HTML:           node.HTML,
		FailureSummary: summary,
		Evidence:       node.Screenshot,
		Bucket:         "passes",
	}
}

func hasGenericAlt(html string) bool {
	m := altAttrRegex.FindStringSubmatch(html)
	if m == nil {
		return false
	}
	alt := strings.ToLower(strings.TrimSpace(m[1]))
	if alt == "" {
		// Empty alt is a deliberate decorative marker, not a defect.
		return false
	}
	for _, w := range genericAltWords {
		if strings.Contains(alt, w) {
			return true
		}
	}
	return false
}

var tagStripRegex = regexp.MustCompile(`<[^>]*>`)

func hasGenericLinkText(html string) bool {
	text := strings.ToLower(strings.TrimSpace(tagStripRegex.ReplaceAllString(html, " ")))
	text = strings.Join(strings.Fields(text), " ")
	_, ok := genericLinkText[text]
	return ok
}
