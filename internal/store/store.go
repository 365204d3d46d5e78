package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/metalagman/goalpilot/internal/analysis"
	"github.com/metalagman/goalpilot/internal/model"
)

// Store persists test outcomes. One Store wraps one database handle; the
// handle is safe for use from concurrent workers.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// TestRecord is the summary row for one executed test.
type TestRecord struct {
	TestID       string
	ScenarioName string
	Passed       bool
	TurnCount    int
	DurationMs   int64
	Summary      string
	ErrorMessage string
	Seed         int64
	CreatedAt    string
}

// APICall records one outbound call made during a test.
type APICall struct {
	TestID     string
	Kind       string
	Endpoint   string
	Status     string
	DurationMs int64
	Error      string
}

// SaveTestResult inserts the summary row and the full verdict in one
// transaction.
func (s *Store) SaveTestResult(ctx context.Context, scenarioName string, res model.GoalTestResult) error {
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	createdAt := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin save result: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO test_results(test_id, scenario_name, passed, turn_count, duration_ms, summary, error_message, seed, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.TestID, scenarioName, res.Passed, res.TurnCount, res.DurationMs, res.Summary,
		nullableString(res.ErrorMessage), res.Seed, createdAt); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert test result: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO goal_test_results(test_id, result_json) VALUES(?, ?)`,
		res.TestID, string(resultJSON)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert goal test result: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save result: %w", err)
	}
	return nil
}

// SaveTranscript stores every turn of a finished conversation.
func (s *Store) SaveTranscript(ctx context.Context, testID string, transcript []model.Turn) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin save transcript: %w", err)
	}
	for i, t := range transcript {
		ts := t.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO transcripts(test_id, turn_index, role, content, response_time_ms, step_id, ts)
			VALUES(?, ?, ?, ?, ?, ?, ?)`,
			testID, i, string(t.Role), t.Content, t.ResponseTimeMs, nullableString(t.StepID),
			ts.UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert turn %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save transcript: %w", err)
	}
	return nil
}

// SaveGoalTestResult upserts the full verdict JSON on its own, for callers
// that re-evaluate after the summary row exists.
func (s *Store) SaveGoalTestResult(ctx context.Context, res model.GoalTestResult) error {
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO goal_test_results(test_id, result_json) VALUES(?, ?)
		ON CONFLICT(test_id) DO UPDATE SET result_json=excluded.result_json`,
		res.TestID, string(resultJSON)); err != nil {
		return fmt.Errorf("save goal test result: %w", err)
	}
	return nil
}

// SaveGoalProgressSnapshot stores the tracker state after one turn.
func (s *Store) SaveGoalProgressSnapshot(ctx context.Context, testID string, snap model.ProgressState) error {
	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO progress_snapshots(test_id, turn_number, snapshot_json) VALUES(?, ?, ?)
		ON CONFLICT(test_id, turn_number) DO UPDATE SET snapshot_json=excluded.snapshot_json`,
		testID, snap.TurnNumber, string(snapJSON)); err != nil {
		return fmt.Errorf("save progress snapshot: %w", err)
	}
	return nil
}

// SaveAPICall records one outbound call.
func (s *Store) SaveAPICall(ctx context.Context, call APICall) error {
	ts := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, `INSERT INTO api_calls(test_id, kind, endpoint, status, duration_ms, error, ts)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		call.TestID, call.Kind, nullableString(call.Endpoint), call.Status, call.DurationMs,
		nullableString(call.Error), ts); err != nil {
		return fmt.Errorf("save api call: %w", err)
	}
	return nil
}

// SaveFinding upserts one deduplicated failure finding.
func (s *Store) SaveFinding(ctx context.Context, f analysis.Finding) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO findings(id, code, phrase, location, test_ids, occurrences)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET test_ids=excluded.test_ids, occurrences=excluded.occurrences`,
		f.ID, f.Code, f.Phrase, nullableString(f.Location), strings.Join(f.TestIDs, ","), f.Occurrences); err != nil {
		return fmt.Errorf("save finding: %w", err)
	}
	return nil
}

// GetFailedTestIDs lists ids of failed tests, oldest first.
func (s *Store) GetFailedTestIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT test_id FROM test_results WHERE passed=0 ORDER BY created_at, test_id`)
	if err != nil {
		return nil, fmt.Errorf("query failed tests: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan test id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetTestResults lists summary rows, newest first.
func (s *Store) GetTestResults(ctx context.Context) ([]TestRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT test_id, scenario_name, passed, turn_count, duration_ms, summary, COALESCE(error_message, ''), COALESCE(seed, 0), created_at
		FROM test_results ORDER BY created_at DESC, test_id`)
	if err != nil {
		return nil, fmt.Errorf("query test results: %w", err)
	}
	defer rows.Close()

	var out []TestRecord
	for rows.Next() {
		var r TestRecord
		if err := rows.Scan(&r.TestID, &r.ScenarioName, &r.Passed, &r.TurnCount, &r.DurationMs,
			&r.Summary, &r.ErrorMessage, &r.Seed, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan test result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetGoalTestResult loads the full verdict for one test.
func (s *Store) GetGoalTestResult(ctx context.Context, testID string) (model.GoalTestResult, error) {
	var raw string
	row := s.db.QueryRowContext(ctx, `SELECT result_json FROM goal_test_results WHERE test_id=?`, testID)
	if err := row.Scan(&raw); err != nil {
		return model.GoalTestResult{}, fmt.Errorf("load goal test result: %w", err)
	}
	var res model.GoalTestResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return model.GoalTestResult{}, fmt.Errorf("decode goal test result: %w", err)
	}
	return res, nil
}

// GetTranscript loads the stored turns of one test in order.
func (s *Store) GetTranscript(ctx context.Context, testID string) ([]model.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role, content, response_time_ms, COALESCE(step_id, ''), ts
		FROM transcripts WHERE test_id=? ORDER BY turn_index`, testID)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	var out []model.Turn
	for rows.Next() {
		var (
			t  model.Turn
			ts string
		)
		if err := rows.Scan((*string)(&t.Role), &t.Content, &t.ResponseTimeMs, &t.StepID, &ts); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			t.Timestamp = parsed
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetAPICalls lists the outbound calls recorded for one test.
func (s *Store) GetAPICalls(ctx context.Context, testID string) ([]APICall, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT test_id, kind, COALESCE(endpoint, ''), status, duration_ms, COALESCE(error, '')
		FROM api_calls WHERE test_id=? ORDER BY id`, testID)
	if err != nil {
		return nil, fmt.Errorf("query api calls: %w", err)
	}
	defer rows.Close()

	var out []APICall
	for rows.Next() {
		var c APICall
		if err := rows.Scan(&c.TestID, &c.Kind, &c.Endpoint, &c.Status, &c.DurationMs, &c.Error); err != nil {
			return nil, fmt.Errorf("scan api call: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetFindings lists stored failure findings.
func (s *Store) GetFindings(ctx context.Context) ([]analysis.Finding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, code, phrase, COALESCE(location, ''), test_ids, occurrences FROM findings ORDER BY occurrences DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var out []analysis.Finding
	for rows.Next() {
		var (
			f   analysis.Finding
			ids string
		)
		if err := rows.Scan(&f.ID, &f.Code, &f.Phrase, &f.Location, &ids, &f.Occurrences); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		if ids != "" {
			f.TestIDs = strings.Split(ids, ",")
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
