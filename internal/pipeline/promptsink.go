package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/a11yscope/a11yscope-cli/api/schemas"
)

// DirSink writes each built prompt to a file for audit, named
// NNN_<criterion>_<rule>.txt after the candidate's ordinal.
type DirSink struct {
	dir string
}

// NewDirSink creates the directory if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create prompts directory %s: %w", dir, err)
	}
	return &DirSink{dir: dir}, nil
}

var filenameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Persist implements PromptSink.
func (s *DirSink) Persist(ordinal int, cand schemas.Candidate, p schemas.Prompt) error {
	label := cand.Issue.PrimaryCriterion()
	if label == "" {
		label = "UNMAPPED"
	}
	name := fmt.Sprintf("%03d_%s_%s.txt", ordinal, label, cand.Issue.RuleID)
	name = filenameSanitizer.ReplaceAllString(name, "_")
	return os.WriteFile(filepath.Join(s.dir, name), []byte(p.Text), 0o644)
}
