package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/a11yscope/a11yscope-cli/api/schemas"
	"github.com/a11yscope/a11yscope-cli/internal/config"
)

var testJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// fakeProvider injects an in-memory store (or a failure) into commands.
type fakeProvider struct {
	store *memoryStore
	err   error
}

func (f *fakeProvider) Create(ctx context.Context, cfg *config.Config) (schemas.Store, func(), error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.store, func() {}, nil
}

// memoryStore is a minimal schemas.Store for command tests.
type memoryStore struct {
	reports map[string]*schemas.ReviewReport
}

func newMemoryStore() *memoryStore {
	return &memoryStore{reports: make(map[string]*schemas.ReviewReport)}
}

func (m *memoryStore) PersistReport(ctx context.Context, report *schemas.ReviewReport) error {
	m.reports[report.RunID] = report
	return nil
}

func (m *memoryStore) GetReport(ctx context.Context, runID string) (*schemas.ReviewReport, error) {
	r, ok := m.reports[runID]
	if !ok {
		return nil, errors.New("not found")
	}
	return r, nil
}

func (m *memoryStore) PriorVerdicts(ctx context.Context, topic schemas.Topic, limit int) ([]schemas.FinalRecord, error) {
	return nil, nil
}

const auditInputSample = `{
  "violations": [
    {
      "id": "image-alt",
      "impact": "critical",
      "help": "Images must have alternate text",
      "tags": ["wcag2a", "wcag111"],
      "nodes": [{"target": ["img.hero"], "html": "<img class=\"hero\" src=\"x.png\">"}]
    },
    {
      "id": "color-contrast",
      "impact": "serious",
      "help": "Elements must meet minimum color contrast ratio thresholds",
      "tags": ["wcag2aa", "wcag143"],
      "nodes": [{"target": ["#main > p"], "html": "<p>text</p>"}]
    }
  ]
}`

func writeAuditInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "axe.json")
	require.NoError(t, os.WriteFile(path, []byte(auditInputSample), 0o644))
	return path
}

func auditTestConfig(t *testing.T, input, output string) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Audit = config.AuditConfig{
		Input:   input,
		PageURL: "https://example.com",
		Output:  output,
		Format:  "json",
	}
	return cfg
}

func TestRunAudit_StubEndToEnd(t *testing.T) {
	output := filepath.Join(t.TempDir(), "report.json")
	cfg := auditTestConfig(t, writeAuditInput(t), output)

	err := runAudit(context.Background(), zaptest.NewLogger(t), cfg, &fakeProvider{store: newMemoryStore()})
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)

	var report schemas.ReviewReport
	require.NoError(t, testJSON.Unmarshal(data, &report))
	require.Len(t, report.Records, 2)

	// image-alt resolves from the policy table; color-contrast goes through
	// the stub reviewer.
	auto := report.Records[0]
	assert.Equal(t, "image-alt", auto.RuleID)
	assert.Equal(t, schemas.OutcomeConfirmed, auto.Outcome)
	assert.Equal(t, schemas.SourceAuto, auto.Source)
	assert.Equal(t, 1.0, auto.Confidence)

	reviewed := report.Records[1]
	assert.Equal(t, "color-contrast", reviewed.RuleID)
	assert.Equal(t, schemas.SourceStub, reviewed.Source)
	assert.NotEmpty(t, reviewed.PromptHash)

	assert.Equal(t, 1, report.Stats.AutoResolved)
	assert.Equal(t, 1, report.Stats.Candidates)
	assert.Equal(t, 2, report.Summary["total"])
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "https://example.com", report.PageURL)
}

func TestRunAudit_Deterministic(t *testing.T) {
	input := writeAuditInput(t)
	dir := t.TempDir()

	render := func(name string) *schemas.ReviewReport {
		output := filepath.Join(dir, name)
		cfg := auditTestConfig(t, input, output)
		require.NoError(t, runAudit(context.Background(), zaptest.NewLogger(t), cfg, &fakeProvider{}))

		data, err := os.ReadFile(output)
		require.NoError(t, err)
		var report schemas.ReviewReport
		require.NoError(t, testJSON.Unmarshal(data, &report))
		return &report
	}

	first := render("a.json")
	second := render("b.json")

	// Run IDs and timestamps differ; the verdict records must not.
	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, first.Stats, second.Stats)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestRunAudit_PersistsWhenRequested(t *testing.T) {
	store := newMemoryStore()
	cfg := auditTestConfig(t, writeAuditInput(t), filepath.Join(t.TempDir(), "r.json"))
	cfg.Audit.Persist = true

	require.NoError(t, runAudit(context.Background(), zaptest.NewLogger(t), cfg, &fakeProvider{store: store}))
	require.Len(t, store.reports, 1)
	for _, report := range store.reports {
		assert.Len(t, report.Records, 2)
	}
}

func TestRunAudit_PersistFailsWithoutStore(t *testing.T) {
	cfg := auditTestConfig(t, writeAuditInput(t), "")
	cfg.Audit.Persist = true

	err := runAudit(context.Background(), zaptest.NewLogger(t), cfg, &fakeProvider{err: errors.New("no database")})
	require.Error(t, err)
}

func TestRunAudit_MissingInput(t *testing.T) {
	cfg := auditTestConfig(t, filepath.Join(t.TempDir(), "missing.json"), "")
	err := runAudit(context.Background(), zaptest.NewLogger(t), cfg, &fakeProvider{})
	require.Error(t, err)
}

func TestRunAudit_PromptsDir(t *testing.T) {
	promptsDir := filepath.Join(t.TempDir(), "prompts")
	cfg := auditTestConfig(t, writeAuditInput(t), filepath.Join(t.TempDir(), "r.json"))
	cfg.Audit.PromptsDir = promptsDir

	require.NoError(t, runAudit(context.Background(), zaptest.NewLogger(t), cfg, &fakeProvider{}))

	entries, err := os.ReadDir(promptsDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "one prompt file for the single review candidate")
}

func TestRunReport_RendersPersistedRun(t *testing.T) {
	store := newMemoryStore()
	store.reports["run-7"] = &schemas.ReviewReport{
		RunID: "run-7",
		Records: []schemas.FinalRecord{
			{
				Issue:   schemas.Issue{ID: "x", RuleID: "color-contrast", Selector: "#p"},
				Outcome: schemas.OutcomeConfirmed,
				Source:  schemas.SourceStub,
			},
		},
		Summary: map[string]int{"total": 1, "confirmed": 1},
	}

	output := filepath.Join(t.TempDir(), "rendered.json")
	cfg := config.NewDefaultConfig()

	err := runReport(context.Background(), zaptest.NewLogger(t), cfg, "run-7", output, "json", &fakeProvider{store: store})
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id": "run-7"`)
}

func TestRunReport_UnknownRun(t *testing.T) {
	cfg := config.NewDefaultConfig()
	err := runReport(context.Background(), zaptest.NewLogger(t), cfg, "nope", "", "json", &fakeProvider{store: newMemoryStore()})
	require.Error(t, err)
}

func TestRunReport_ProviderFailure(t *testing.T) {
	cfg := config.NewDefaultConfig()
	err := runReport(context.Background(), zaptest.NewLogger(t), cfg, "run-1", "", "json", &fakeProvider{err: errors.New("no database")})
	require.Error(t, err)
}
