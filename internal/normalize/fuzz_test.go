//go:build go1.18
// +build go1.18

package normalize

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"go.uber.org/zap"

	"github.com/a11yscope/a11yscope-cli/api/schemas"
)

// FuzzParsePayload asserts the parser never panics and either fails cleanly
// or produces well-formed issues for arbitrary input documents.
func FuzzParsePayload(f *testing.F) {
	f.Add([]byte(`{"violations": []}`))
	f.Add([]byte(`[{"rule_id": "color-contrast", "selector": "p"}]`))
	f.Add([]byte(`{"violations": [{"id": "image-alt", "nodes": [{"target": ["img"]}]}]}`))
	f.Add([]byte(`{`))

	n := New(Options{IncludePasses: true}, zap.NewNop())

	f.Fuzz(func(t *testing.T, data []byte) {
		issues, stats, err := n.ParsePayload(data)
		if err != nil {
			return
		}
		if len(issues) > stats.RawFindings {
			t.Fatalf("more issues (%d) than raw findings (%d)", len(issues), stats.RawFindings)
		}
		for _, issue := range issues {
			if issue.ID == "" || issue.RuleID == "" || issue.Selector == "" {
				t.Fatalf("normalized issue missing required field: %+v", issue)
			}
		}
	})
}

// FuzzNormalizeStruct drives Normalize with structured random findings.
func FuzzNormalizeStruct(f *testing.F) {
	f.Add([]byte("seed"))

	n := New(Options{}, zap.NewNop())

	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)
		findings := make([]schemas.RawFinding, 0, 4)
		for i := 0; i < 4; i++ {
			var raw schemas.RawFinding
			if err := consumer.GenerateStruct(&raw); err != nil {
				break
			}
			findings = append(findings, raw)
		}

		issues, stats := n.Normalize(findings)
		if stats.MalformedSkipped+stats.Deduplicated+len(issues) != len(findings) {
			t.Fatalf("accounting mismatch: %d issues, %+v stats, %d findings",
				len(issues), stats, len(findings))
		}

		seen := make(map[string]struct{})
		for _, issue := range issues {
			if _, dup := seen[issue.ID]; dup {
				t.Fatalf("duplicate issue id %s survived dedupe", issue.ID)
			}
			seen[issue.ID] = struct{}{}
		}
	})
}
