package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/a11yscope/a11yscope-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrRunNotFound is returned by GetReport when no run exists under the ID.
var ErrRunNotFound = errors.New("review run not found")

// DBPool abstracts the pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store provides a PostgreSQL implementation of schemas.Store.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// PersistReport saves a run header plus all of its records in one transaction.
func (s *Store) PersistReport(ctx context.Context, report *schemas.ReviewReport) error {
	if report == nil || report.RunID == "" {
		return errors.New("report must carry a run id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if err := s.persistRun(ctx, tx, report); err != nil {
		return err
	}
	if len(report.Records) > 0 {
		if err := s.persistRecords(ctx, tx, report.RunID, report.Records); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) persistRun(ctx context.Context, tx pgx.Tx, report *schemas.ReviewReport) error {
	statsJSON, err := json.Marshal(report.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal run stats: %w", err)
	}
	summaryJSON, err := json.Marshal(report.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	sql := `
        INSERT INTO review_runs (run_id, page_url, generated_at, stats, summary)
        VALUES ($1, $2, $3, $4, $5);
    `
	if _, err := tx.Exec(ctx, sql,
		report.RunID, report.PageURL, report.GeneratedAt.UTC(), statsJSON, summaryJSON,
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.RunID, err)
	}
	return nil
}

func (s *Store) persistRecords(ctx context.Context, tx pgx.Tx, runID string, records []schemas.FinalRecord) error {
	rows := make([][]interface{}, len(records))
	for i, r := range records {
		criteriaJSON, err := json.Marshal(r.WCAGCriteria)
		if err != nil {
			return fmt.Errorf("failed to marshal criteria for %s: %w", r.ID, err)
		}
		rows[i] = []interface{}{
			r.ID, runID, i,
			r.RuleID, string(r.Severity), r.Selector, r.Message,
			r.HTML, r.FailureSummary, r.Evidence, r.HelpURL, criteriaJSON,
			string(r.Topic), string(r.Outcome), r.Confidence, r.Rationale,
			string(r.Source), r.PromptHash,
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"review_records"},
		[]string{
			"id", "run_id", "seq",
			"rule_id", "severity", "selector", "message",
			"html", "failure_summary", "evidence", "help_url", "wcag_criteria",
			"topic", "outcome", "confidence", "rationale",
			"source", "prompt_hash",
		},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy records: %w", err)
	}
	if int(copyCount) != len(records) {
		return fmt.Errorf("mismatch in copied records count: expected %d, got %d", len(records), copyCount)
	}
	return nil
}

// GetReport retrieves a persisted run with its records in original order.
func (s *Store) GetReport(ctx context.Context, runID string) (*schemas.ReviewReport, error) {
	runSQL := `
        SELECT run_id, page_url, generated_at, stats, summary
        FROM review_runs
        WHERE run_id = $1;
    `
	report := &schemas.ReviewReport{}
	var statsJSON, summaryJSON []byte
	err := s.pool.QueryRow(ctx, runSQL, runID).Scan(
		&report.RunID, &report.PageURL, &report.GeneratedAt, &statsJSON, &summaryJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}
	if err := json.Unmarshal(statsJSON, &report.Stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run stats: %w", err)
	}
	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &report.Summary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run summary: %w", err)
		}
	}

	records, err := s.recordsForRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	report.Records = records
	return report, nil
}

func (s *Store) recordsForRun(ctx context.Context, runID string) ([]schemas.FinalRecord, error) {
	sql := `
        SELECT id, rule_id, severity, selector, message, html, failure_summary,
               evidence, help_url, wcag_criteria, topic, outcome, confidence,
               rationale, source, prompt_hash
        FROM review_records
        WHERE run_id = $1
        ORDER BY seq ASC;
    `
	rows, err := s.pool.Query(ctx, sql, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []schemas.FinalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

// PriorVerdicts returns the most recent reviewed records for a topic, newest
// run first. Placeholder records carry no judgment and are excluded.
func (s *Store) PriorVerdicts(ctx context.Context, topic schemas.Topic, limit int) ([]schemas.FinalRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	sql := `
        SELECT r.id, r.rule_id, r.severity, r.selector, r.message, r.html,
               r.failure_summary, r.evidence, r.help_url, r.wcag_criteria,
               r.topic, r.outcome, r.confidence, r.rationale, r.source,
               r.prompt_hash
        FROM review_records r
        JOIN review_runs ru ON ru.run_id = r.run_id
        WHERE r.topic = $1 AND r.source IN ('stub', 'live')
        ORDER BY ru.generated_at DESC, r.seq ASC
        LIMIT $2;
    `
	rows, err := s.pool.Query(ctx, sql, string(topic), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query prior verdicts: %w", err)
	}
	defer rows.Close()

	var records []schemas.FinalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prior verdicts: %w", err)
	}
	return records, nil
}

func scanRecord(row pgx.Row) (schemas.FinalRecord, error) {
	var rec schemas.FinalRecord
	var severity, topic, outcome, source string
	var criteriaJSON []byte
	if err := row.Scan(
		&rec.ID, &rec.RuleID, &severity, &rec.Selector, &rec.Message,
		&rec.HTML, &rec.FailureSummary, &rec.Evidence, &rec.HelpURL,
		&criteriaJSON, &topic, &outcome, &rec.Confidence, &rec.Rationale,
		&source, &rec.PromptHash,
	); err != nil {
		return schemas.FinalRecord{}, fmt.Errorf("failed to scan record: %w", err)
	}
	rec.Severity = schemas.Severity(severity)
	rec.Topic = schemas.Topic(topic)
	rec.Outcome = schemas.Outcome(outcome)
	rec.Source = schemas.Source(source)
	if len(criteriaJSON) > 0 {
		if err := json.Unmarshal(criteriaJSON, &rec.WCAGCriteria); err != nil {
			return schemas.FinalRecord{}, fmt.Errorf("failed to unmarshal criteria: %w", err)
		}
	}
	return rec, nil
}
