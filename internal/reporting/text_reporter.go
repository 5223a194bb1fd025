package reporting

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/a11yscope/a11yscope-cli/api/schemas"
)

// TextReporter writes a human-readable rendering of the report.
type TextReporter struct {
	writer io.WriteCloser
}

// NewTextReporter creates a text reporter. It takes ownership of the writer.
func NewTextReporter(writer io.WriteCloser) *TextReporter {
	return &TextReporter{writer: writer}
}

// Write renders the run header, a per-record table and the outcome summary.
func (r *TextReporter) Write(report *schemas.ReviewReport) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Accessibility Review Report\n")
	fmt.Fprintf(&b, "===========================\n")
	fmt.Fprintf(&b, "Run ID:    %s\n", report.RunID)
	if report.PageURL != "" {
		fmt.Fprintf(&b, "Page:      %s\n", report.PageURL)
	}
	fmt.Fprintf(&b, "Generated: %s\n\n", report.GeneratedAt.UTC().Format(time.RFC3339))

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tSELECTOR\tSEVERITY\tOUTCOME\tCONF\tSOURCE")
	for _, rec := range report.Records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
			rec.RuleID, truncateCell(rec.Selector, 48), rec.Severity,
			rec.Outcome, rec.Confidence, sourceLabel(rec.Source))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush record table: %w", err)
	}

	fmt.Fprintf(&b, "\nSummary\n")
	fmt.Fprintf(&b, "-------\n")
	for _, outcome := range []string{"total", string(schemas.OutcomeConfirmed), string(schemas.OutcomeFalsePositive), string(schemas.OutcomeNeedsHumanReview)} {
		if count, ok := report.Summary[outcome]; ok {
			fmt.Fprintf(&b, "%-20s %d\n", outcome+":", count)
		}
	}

	stats := report.Stats
	fmt.Fprintf(&b, "\nRaw findings: %d, malformed skipped: %d, deduplicated: %d\n",
		stats.RawFindings, stats.MalformedSkipped, stats.Deduplicated)
	fmt.Fprintf(&b, "Auto-resolved: %d, reviewed candidates: %d\n",
		stats.AutoResolved, stats.Candidates)
	if stats.RetrievalFailures > 0 || stats.ReviewerFailures > 0 {
		fmt.Fprintf(&b, "Degraded: %d retrieval failures, %d reviewer failures\n",
			stats.RetrievalFailures, stats.ReviewerFailures)
	}

	if _, err := io.WriteString(r.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (r *TextReporter) Close() error {
	return r.writer.Close()
}

func sourceLabel(s schemas.Source) string {
	if s == schemas.SourceNone {
		return "none"
	}
	return string(s)
}

func truncateCell(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
