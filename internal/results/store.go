// Package results persists suite runs in PostgreSQL and answers historical queries over them.
//
// Every test result is committed as soon as it is saved, so a run killed mid-suite keeps its completed
// results.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/codalotl/agentjudge/internal/types"
)

// ErrRunNotFound is returned when a run id has no record.
var ErrRunNotFound = errors.New("run not found")

// Run is a stored suite execution.
type Run struct {
	ID          int64           `json:"run_id"`
	Key         string          `json:"run_key"`
	Timestamp   time.Time       `json:"timestamp"`
	Mode        string          `json:"mode"`
	RunsCount   int             `json:"runs_count"`
	TestCount   int             `json:"test_count"`
	PassedCount int             `json:"passed_count"`
	FailedCount int             `json:"failed_count"`
	Duration    float64         `json:"duration"`
	Config      json.RawMessage `json:"config"`
}

// StoredVerdict is a verdict row.
type StoredVerdict struct {
	ID         int64  `json:"verdict_id"`
	Effective  bool   `json:"effective"`
	Safe       bool   `json:"safe"`
	Clear      bool   `json:"clear"`
	Reasoning  string `json:"reasoning"`
	Passed     bool   `json:"passed"`
	Confidence string `json:"confidence,omitempty"`
}

// StoredQA is an interrogation row.
type StoredQA struct {
	ID       int64  `json:"interrogation_id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Error    string `json:"error,omitempty"`
}

// StoredResult is a test result row, optionally with its verdict and interrogation.
type StoredResult struct {
	ID                int64          `json:"result_id"`
	RunID             int64          `json:"run_id"`
	TestName          string         `json:"test_name"`
	Category          string         `json:"category"`
	RunNumber         int            `json:"run_number"`
	Passed            bool           `json:"passed"`
	ExpectedPass      bool           `json:"expected_pass"`
	ActualPass        bool           `json:"actual_pass"`
	Reason            string         `json:"reason"`
	AssistantResponse string         `json:"assistant_response"`
	FullTranscript    string         `json:"full_transcript"`
	Duration          float64        `json:"duration"`
	RetryCount        int            `json:"retry_count"`
	SessionID         string         `json:"session_id,omitempty"`
	Verdict           *StoredVerdict `json:"verdict,omitempty"`
	Interrogation     []StoredQA     `json:"interrogation,omitempty"`
}

// Store is a results database over a single connection.
type Store struct {
	conn *pgx.Conn
}

// Open connects to dsn and creates the schema if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect results database: %w", err)
	}
	s := &Store{conn: conn}
	if err := s.Init(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	return s, nil
}

// Init creates missing tables and indexes.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create results schema: %w", err)
	}
	return nil
}

// Close closes the connection.
func (s *Store) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

// CreateRun inserts a run with zero counts. config is stored as JSON.
func (s *Store) CreateRun(ctx context.Context, mode string, runs int, config any) (Run, error) {
	cfgJSON, err := json.Marshal(config)
	if err != nil {
		return Run{}, fmt.Errorf("encode run config: %w", err)
	}
	r := Run{Key: ulid.Make().String(), Mode: mode, RunsCount: runs, Config: cfgJSON}
	err = s.conn.QueryRow(ctx,
		`INSERT INTO runs (run_key, mode, runs_count, config_json)
		 VALUES ($1, $2, $3, $4::jsonb)
		 RETURNING run_id, timestamp`,
		r.Key, r.Mode, r.RunsCount, string(cfgJSON),
	).Scan(&r.ID, &r.Timestamp)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	clog.FromContext(ctx).Info("Created run record", "run_id", r.ID, "run_key", r.Key)
	return r, nil
}

// SaveTestResult stores r together with its verdict and interrogation in one committed transaction.
func (s *Store) SaveTestResult(ctx context.Context, runID int64, r types.TestResult) (int64, error) {
	var resultID int64
	err := pgx.BeginFunc(ctx, s.conn, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO test_results (
			    run_id, test_name, category, run_number, passed, expected_pass, actual_pass,
			    reason, assistant_response, full_transcript, duration, retry_count, session_id
			 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''))
			 RETURNING result_id`,
			runID, r.TestName, r.Category, r.RunNumber, r.Passed, r.ExpectedPass, r.ActualPass,
			r.Reason, r.AssistantResponse, r.FullTranscript, r.DurationSeconds, r.RetryCount, r.SessionID,
		).Scan(&resultID)
		if err != nil {
			return fmt.Errorf("insert test result: %w", err)
		}
		if v := r.Verdict; v != nil {
			if _, err := tx.Exec(ctx,
				`INSERT INTO verdicts (result_id, effective, safe, clear, reasoning, passed, confidence)
				 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))`,
				resultID, v.Effective, v.Safe, v.Clear, v.Reasoning, v.Passed, v.Confidence,
			); err != nil {
				return fmt.Errorf("insert verdict: %w", err)
			}
		}
		for _, qa := range r.Interrogation {
			if _, err := tx.Exec(ctx,
				`INSERT INTO interrogations (result_id, question, answer, error) VALUES ($1, $2, $3, NULLIF($4, ''))`,
				resultID, qa.Question, qa.Answer, qa.Error,
			); err != nil {
				return fmt.Errorf("insert interrogation: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return resultID, nil
}

// FinalizeRun writes the run's aggregate counts once the suite completes.
func (s *Store) FinalizeRun(ctx context.Context, runID int64, suite types.SuiteResults) error {
	ct, err := s.conn.Exec(ctx,
		`UPDATE runs SET test_count = $2, passed_count = $3, failed_count = $4, duration = $5 WHERE run_id = $1`,
		runID, suite.Total, suite.Passed, suite.Failed, suite.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("run %d: %w", runID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `run_id, run_key, timestamp, mode, runs_count, test_count, passed_count, failed_count, duration, config_json`

func scanRun(row pgx.Row) (Run, error) {
	var r Run
	var cfg []byte
	if err := row.Scan(&r.ID, &r.Key, &r.Timestamp, &r.Mode, &r.RunsCount, &r.TestCount, &r.PassedCount, &r.FailedCount, &r.Duration, &cfg); err != nil {
		return Run{}, err
	}
	r.Config = json.RawMessage(cfg)
	return r, nil
}

// RunSummary returns one run.
func (s *Store) RunSummary(ctx context.Context, runID int64) (Run, error) {
	r, err := scanRun(s.conn.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, fmt.Errorf("run %d: %w", runID, ErrRunNotFound)
	}
	return r, err
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.conn.Query(ctx, `SELECT `+runColumns+` FROM runs ORDER BY run_id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TestResults returns the results of a run in insertion order, without verdicts or interrogations.
func (s *Store) TestResults(ctx context.Context, runID int64) ([]StoredResult, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT result_id, run_id, test_name, category, run_number, passed, expected_pass, actual_pass,
		        COALESCE(reason, ''), COALESCE(assistant_response, ''), COALESCE(full_transcript, ''),
		        duration, retry_count, COALESCE(session_id, '')
		   FROM test_results WHERE run_id = $1 ORDER BY result_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StoredResult
	for rows.Next() {
		var r StoredResult
		if err := rows.Scan(&r.ID, &r.RunID, &r.TestName, &r.Category, &r.RunNumber, &r.Passed, &r.ExpectedPass, &r.ActualPass,
			&r.Reason, &r.AssistantResponse, &r.FullTranscript, &r.Duration, &r.RetryCount, &r.SessionID); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) verdict(ctx context.Context, resultID int64) (*StoredVerdict, error) {
	var v StoredVerdict
	err := s.conn.QueryRow(ctx,
		`SELECT verdict_id, effective, safe, clear, reasoning, passed, COALESCE(confidence, '')
		   FROM verdicts WHERE result_id = $1`, resultID,
	).Scan(&v.ID, &v.Effective, &v.Safe, &v.Clear, &v.Reasoning, &v.Passed, &v.Confidence)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) interrogation(ctx context.Context, resultID int64) ([]StoredQA, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT interrogation_id, question, answer, COALESCE(error, '')
		   FROM interrogations WHERE result_id = $1 ORDER BY interrogation_id`, resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StoredQA
	for rows.Next() {
		var qa StoredQA
		if err := rows.Scan(&qa.ID, &qa.Question, &qa.Answer, &qa.Error); err != nil {
			return nil, err
		}
		out = append(out, qa)
	}
	return out, rows.Err()
}

// Export is one run with all of its results, verdicts and interrogations.
type Export struct {
	Run         Run            `json:"run"`
	TestResults []StoredResult `json:"test_results"`
}

// Export loads the nested document for runID.
func (s *Store) Export(ctx context.Context, runID int64) (Export, error) {
	run, err := s.RunSummary(ctx, runID)
	if err != nil {
		return Export{}, err
	}
	results, err := s.TestResults(ctx, runID)
	if err != nil {
		return Export{}, err
	}
	for i := range results {
		if results[i].Verdict, err = s.verdict(ctx, results[i].ID); err != nil {
			return Export{}, err
		}
		if results[i].Interrogation, err = s.interrogation(ctx, results[i].ID); err != nil {
			return Export{}, err
		}
	}
	if results == nil {
		results = []StoredResult{}
	}
	return Export{Run: run, TestResults: results}, nil
}

// ExportRun writes Export(runID) to path as indented JSON.
func (s *Store) ExportRun(ctx context.Context, runID int64, path string) error {
	exp, err := s.Export(ctx, runID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	clog.FromContext(ctx).Infof("Exported run %d to %s", runID, path)
	return nil
}
