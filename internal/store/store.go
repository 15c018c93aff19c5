package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/mohammad-safakhou/deepresearch/internal/research"
)

// Store archives finished research runs in Postgres.
type Store struct {
	DB *sql.DB
}

// RunRecord is one archived run. Outcomes keep the bundle order.
type RunRecord struct {
	ID         string
	Query      string
	Plan       string
	Subtasks   []research.Subtask
	Outcomes   []research.WorkerOutcome
	Report     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// RecordFromResult converts a pipeline result into its archive form.
func RecordFromResult(res *research.Result) RunRecord {
	return RunRecord{
		ID:         res.RunID,
		Query:      res.Query,
		Plan:       res.Plan,
		Subtasks:   res.Subtasks,
		Outcomes:   res.Bundle,
		Report:     res.Report,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
}

// Result converts the record back into a pipeline result.
func (r RunRecord) Result() *research.Result {
	return &research.Result{
		RunID:      r.ID,
		Query:      r.Query,
		Plan:       r.Plan,
		Subtasks:   r.Subtasks,
		Bundle:     research.ReportBundle(r.Outcomes),
		Report:     r.Report,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

const upsertRunSQL = `
INSERT INTO research_runs (id, query, plan, subtasks, report, started_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  query = EXCLUDED.query,
  plan = EXCLUDED.plan,
  subtasks = EXCLUDED.subtasks,
  report = EXCLUDED.report,
  started_at = EXCLUDED.started_at,
  finished_at = EXCLUDED.finished_at;
`

const deleteOutcomesSQL = `DELETE FROM research_outcomes WHERE run_id = $1`

const insertOutcomeSQL = `
INSERT INTO research_outcomes (run_id, position, subtask_id, title, status, payload)
VALUES ($1,$2,$3,$4,$5,$6)
`

// SaveRun writes the run and replaces its outcomes in one transaction.
func (s *Store) SaveRun(ctx context.Context, rec RunRecord) (err error) {
	if rec.ID == "" {
		return errors.New("run id required")
	}
	subtasks := rec.Subtasks
	if subtasks == nil {
		subtasks = []research.Subtask{}
	}
	subtasksJSON, err := json.Marshal(subtasks)
	if err != nil {
		return fmt.Errorf("marshal subtasks: %w", err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, upsertRunSQL, rec.ID, rec.Query, rec.Plan, subtasksJSON, rec.Report, rec.StartedAt, rec.FinishedAt); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	if _, err = tx.ExecContext(ctx, deleteOutcomesSQL, rec.ID); err != nil {
		return fmt.Errorf("clear outcomes: %w", err)
	}
	for i, o := range rec.Outcomes {
		if _, err = tx.ExecContext(ctx, insertOutcomeSQL, rec.ID, i, o.SubtaskID, o.Title, string(o.Status), o.Payload); err != nil {
			return fmt.Errorf("insert outcome %s: %w", o.SubtaskID, err)
		}
	}
	return tx.Commit()
}

// GetRun loads an archived run. The bool is false when no run has that id.
func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, bool, error) {
	var (
		rec          RunRecord
		subtasksJSON []byte
	)
	row := s.DB.QueryRowContext(ctx, `
SELECT id, query, plan, subtasks, report, started_at, finished_at
FROM research_runs
WHERE id = $1`, id)
	if err := row.Scan(&rec.ID, &rec.Query, &rec.Plan, &subtasksJSON, &rec.Report, &rec.StartedAt, &rec.FinishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, false, nil
		}
		return RunRecord{}, false, err
	}
	if len(subtasksJSON) > 0 {
		if err := json.Unmarshal(subtasksJSON, &rec.Subtasks); err != nil {
			return RunRecord{}, false, fmt.Errorf("decode subtasks: %w", err)
		}
	}

	rows, err := s.DB.QueryContext(ctx, `
SELECT subtask_id, title, status, payload
FROM research_outcomes
WHERE run_id = $1
ORDER BY position`, id)
	if err != nil {
		return RunRecord{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			o      research.WorkerOutcome
			status string
		)
		if err := rows.Scan(&o.SubtaskID, &o.Title, &status, &o.Payload); err != nil {
			return RunRecord{}, false, err
		}
		o.Status = research.Status(status)
		rec.Outcomes = append(rec.Outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return RunRecord{}, false, err
	}
	return rec, true, nil
}
