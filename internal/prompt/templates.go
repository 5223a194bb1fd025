package prompt

import (
	"github.com/a11yscope/a11yscope-cli/api/schemas"
)

// Per-topic review instructions. Each topic maps to exactly one template; the
// generic block serves topics without a specialized one and unknown topics.
var topicInstructions = map[schemas.Topic]string{
	schemas.TopicColorContrast: `Judge whether the flagged text or component truly fails the contrast requirement in its rendered context. Consider computed colors, background imagery, and text size. The numeric ratio is the criterion, not subjective readability.`,

	schemas.TopicAltText: `Judge whether the image's text alternative serves an equivalent purpose. Distinguish functional, informative, and decorative images. Generic alt text (naming the medium or a filename) and alt text duplicating adjacent visible text are inadequate.`,

	schemas.TopicLinkPurpose: `Judge whether the link's purpose is determinable from its text together with its programmatic context. Generic phrases are acceptable only when the surrounding sentence, list item, or cell disambiguates them.`,

	schemas.TopicHeadingStructure: `Judge whether the heading or landmark structure conveys the document outline correctly. Consider whether an apparent violation reflects a deliberate, meaningful structure rather than a defect.`,

	schemas.TopicARIASemantics: `Judge whether the element's ARIA usage yields a correct accessible name, role, and state. An attribute invalid for the role is a defect even if assistive technology happens to cope.`,

	schemas.TopicFocusOrder: `Judge whether keyboard focus order through the flagged element preserves meaning and operability. Positive tabindex values are nearly always defects; tabindex="-1" is a deliberate removal from sequential focus.`,

	schemas.TopicLanguage: `Judge whether the language attribution is correct: valid BCP 47 tags matching the actual content language, with inline foreign passages marked separately.`,

	schemas.TopicOther: `Judge conservatively whether this automated finding is a genuine accessibility defect in context. Prefer needs-human-review when the evidence is insufficient.`,
}

// instructionsFor returns the topic's instruction block, falling back to the
// generic block for unknown topics.
func instructionsFor(topic schemas.Topic) string {
	if instr, ok := topicInstructions[topic]; ok {
		return instr
	}
	return topicInstructions[schemas.TopicOther]
}

// promptTemplate is the shared skeleton every topic template renders through.
// All fields come from the candidate and its retrieved context; the output is
// byte-deterministic for identical inputs.
const promptTemplate = `You are reviewing one automated accessibility finding for {{.TopicLabel}}.

{{.Instructions}}

FINDING:
  rule: {{.RuleID}}
  severity hint: {{.Severity}}
  selector: {{.Selector}}
  message: {{.Message}}
{{- if .FailureSummary}}
  failure summary: {{.FailureSummary}}
{{- end}}
{{- if .Criteria}}
  wcag criteria: {{.Criteria}}
{{- end}}
{{- if .HTML}}

ELEMENT:
{{.HTML}}
{{- end}}
{{- if .Snippets}}

REFERENCE MATERIAL (most relevant first):
{{- range .Snippets}}
[{{.SourceID}}]
{{.Text}}
{{- end}}
{{- else}}

No reference material was available for this finding. Judge conservatively.
{{- end}}

Respond with ONLY a compact JSON object with keys:
  "outcome": one of "confirmed", "false-positive", "needs-human-review"
  "confidence": a number between 0.0 and 1.0
  "rationale": one or two sentences grounding the outcome in the evidence above
`
