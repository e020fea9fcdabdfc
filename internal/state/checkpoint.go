package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Checkpoint is a durable record of one step's output and resource usage.
type Checkpoint struct {
	ID               string         `json:"id"`
	WorkflowID       string         `json:"workflow_id"`
	CheckpointName   string         `json:"checkpoint_name"`
	StateSnapshot    map[string]any `json:"state_snapshot"`
	TokensUsedInStep int64          `json:"tokens_used_in_step"`
	CostUSDInStep    float64        `json:"cost_usd_in_step"`
	CreatedAt        time.Time      `json:"created_at"`
}

// CreateCheckpoint inserts a checkpoint, assigning an ID and timestamp when
// they are unset.
func (db *DB) CreateCheckpoint(ctx context.Context, cp *Checkpoint) error {
	if cp.WorkflowID == "" {
		return fmt.Errorf("create checkpoint: workflow id is required")
	}
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}

	snapshot, err := json.Marshal(cp.StateSnapshot)
	if err != nil {
		return fmt.Errorf("marshal state snapshot: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO checkpoints (id, workflow_id, checkpoint_name, state_snapshot, tokens_used, cost_usd, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, cp.ID, cp.WorkflowID, cp.CheckpointName, string(snapshot), cp.TokensUsedInStep, cp.CostUSDInStep, formatTime(cp.CreatedAt))
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	return nil
}

// ListCheckpoints returns the checkpoints of a workflow, oldest first.
func (db *DB) ListCheckpoints(ctx context.Context, workflowID string) ([]Checkpoint, error) {
	db.mu.RLock()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, workflow_id, checkpoint_name, state_snapshot, tokens_used, cost_usd, created_at
		FROM checkpoints WHERE workflow_id = ?
		ORDER BY created_at, rowid
	`, workflowID)
	db.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []Checkpoint
	for rows.Next() {
		var cp Checkpoint
		var snapshot, createdAt string
		if err := rows.Scan(&cp.ID, &cp.WorkflowID, &cp.CheckpointName, &snapshot,
			&cp.TokensUsedInStep, &cp.CostUSDInStep, &createdAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		if err := json.Unmarshal([]byte(snapshot), &cp.StateSnapshot); err != nil {
			return nil, fmt.Errorf("unmarshal state snapshot for %s: %w", cp.ID, err)
		}
		cp.CreatedAt, _ = parseTime(createdAt)
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, rows.Err()
}
