package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Run is the persisted summary of one coordinated batch.
type Run struct {
	ID             string            `json:"id"`
	WorkflowID     string            `json:"workflow_id"`
	Success        bool              `json:"success"`
	CompletedTasks []string          `json:"completed_tasks"`
	FailedTasks    []string          `json:"failed_tasks"`
	TaskErrors     map[string]string `json:"task_errors"`
	TotalTokens    int64             `json:"total_tokens"`
	TotalCost      float64           `json:"total_cost"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     *time.Time        `json:"finished_at"`
}

// SaveRun inserts or replaces a run summary.
func (db *DB) SaveRun(ctx context.Context, r *Run) error {
	completed, err := json.Marshal(nonNil(r.CompletedTasks))
	if err != nil {
		return fmt.Errorf("marshal completed tasks: %w", err)
	}
	failed, err := json.Marshal(nonNil(r.FailedTasks))
	if err != nil {
		return fmt.Errorf("marshal failed tasks: %w", err)
	}
	taskErrors := r.TaskErrors
	if taskErrors == nil {
		taskErrors = map[string]string{}
	}
	errs, err := json.Marshal(taskErrors)
	if err != nil {
		return fmt.Errorf("marshal task errors: %w", err)
	}

	var finishedAt sql.NullString
	if r.FinishedAt != nil {
		finishedAt = sql.NullString{String: formatTime(*r.FinishedAt), Valid: true}
	}

	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, workflow_id, success, completed_tasks, failed_tasks, task_errors,
			total_tokens, total_cost, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.WorkflowID, r.Success, string(completed), string(failed), string(errs),
		r.TotalTokens, r.TotalCost, formatTime(r.StartedAt), finishedAt)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil, nil when it does not exist.
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	runs, err := db.queryRuns(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// ListRuns returns the most recent runs, newest first. An empty workflowID
// lists runs across all workflows. A limit of zero or less means no limit.
func (db *DB) ListRuns(ctx context.Context, workflowID string, limit int) ([]Run, error) {
	where := ""
	var args []any
	if workflowID != "" {
		where = "WHERE workflow_id = ?"
		args = append(args, workflowID)
	}
	where += " ORDER BY started_at DESC, rowid DESC"
	if limit > 0 {
		where += " LIMIT ?"
		args = append(args, limit)
	}
	return db.queryRuns(ctx, where, args...)
}

func (db *DB) queryRuns(ctx context.Context, clause string, args ...any) ([]Run, error) {
	db.mu.RLock()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, workflow_id, success, completed_tasks, failed_tasks, task_errors,
			total_tokens, total_cost, started_at, finished_at
		FROM runs `+clause, args...)
	db.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var completed, failed, errs, startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.WorkflowID, &r.Success, &completed, &failed, &errs,
			&r.TotalTokens, &r.TotalCost, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(completed), &r.CompletedTasks); err != nil {
			return nil, fmt.Errorf("unmarshal completed tasks: %w", err)
		}
		if err := json.Unmarshal([]byte(failed), &r.FailedTasks); err != nil {
			return nil, fmt.Errorf("unmarshal failed tasks: %w", err)
		}
		if err := json.Unmarshal([]byte(errs), &r.TaskErrors); err != nil {
			return nil, fmt.Errorf("unmarshal task errors: %w", err)
		}
		r.StartedAt, _ = parseTime(startedAt)
		r.FinishedAt = parseNullableTime(finishedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
