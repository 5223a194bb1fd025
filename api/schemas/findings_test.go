package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, ParseSeverity("critical"))
	assert.Equal(t, SeverityMinor, ParseSeverity("minor"))
	// Unknown or absent hints default to moderate.
	assert.Equal(t, SeverityModerate, ParseSeverity(""))
	assert.Equal(t, SeverityModerate, ParseSeverity("catastrophic"))
}

func TestIssueCriteriaHelpers(t *testing.T) {
	wcag := Issue{WCAGCriteria: []string{"1.4.3", "1.4.11"}}
	assert.Equal(t, "1.4.3", wcag.PrimaryCriterion())
	assert.True(t, wcag.IsWCAG())

	bestPractice := Issue{}
	assert.Empty(t, bestPractice.PrimaryCriterion())
	assert.False(t, bestPractice.IsWCAG())
}

func TestRetrievedContextEmpty(t *testing.T) {
	assert.True(t, RetrievedContext{}.Empty())
	assert.False(t, RetrievedContext{Snippets: []Snippet{{SourceID: "d"}}}.Empty())
}
