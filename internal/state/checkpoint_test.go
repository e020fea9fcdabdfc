package state

import (
	"testing"
	"time"
)

func TestCreateCheckpoint_AssignsIDAndTimestamp(t *testing.T) {
	db := setupTestDB(t)
	ctx := t.Context()

	cp := &Checkpoint{
		WorkflowID:       "wf-1",
		CheckpointName:   "task_send_email",
		StateSnapshot:    map[string]any{"messageId": "m-1", "count": 2},
		TokensUsedInStep: 150,
		CostUSDInStep:    0.0021,
	}
	if err := db.CreateCheckpoint(ctx, cp); err != nil {
		t.Fatalf("CreateCheckpoint failed: %v", err)
	}
	if cp.ID == "" {
		t.Error("expected ID to be assigned")
	}
	if cp.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be assigned")
	}

	got, err := db.ListCheckpoints(ctx, "wf-1")
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d checkpoints, want 1", len(got))
	}
	c := got[0]
	if c.ID != cp.ID || c.CheckpointName != "task_send_email" {
		t.Errorf("checkpoint = %+v", c)
	}
	if c.TokensUsedInStep != 150 || c.CostUSDInStep != 0.0021 {
		t.Errorf("usage = %d/%v, want 150/0.0021", c.TokensUsedInStep, c.CostUSDInStep)
	}
	if c.StateSnapshot["messageId"] != "m-1" {
		t.Errorf("snapshot messageId = %v, want m-1", c.StateSnapshot["messageId"])
	}
	// JSON numbers decode as float64.
	if c.StateSnapshot["count"] != float64(2) {
		t.Errorf("snapshot count = %v, want 2", c.StateSnapshot["count"])
	}
}

func TestCreateCheckpoint_RequiresWorkflowID(t *testing.T) {
	db := setupTestDB(t)
	if err := db.CreateCheckpoint(t.Context(), &Checkpoint{CheckpointName: "x"}); err == nil {
		t.Error("expected error for missing workflow id")
	}
}

func TestListCheckpoints_ScopedAndOrdered(t *testing.T) {
	db := setupTestDB(t)
	ctx := t.Context()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	inputs := []*Checkpoint{
		{WorkflowID: "wf-a", CheckpointName: "second", CreatedAt: base.Add(time.Minute)},
		{WorkflowID: "wf-b", CheckpointName: "other"},
		{WorkflowID: "wf-a", CheckpointName: "first", CreatedAt: base},
	}
	for _, cp := range inputs {
		if err := db.CreateCheckpoint(ctx, cp); err != nil {
			t.Fatalf("CreateCheckpoint failed: %v", err)
		}
	}

	got, err := db.ListCheckpoints(ctx, "wf-a")
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d checkpoints, want 2", len(got))
	}
	if got[0].CheckpointName != "first" || got[1].CheckpointName != "second" {
		t.Errorf("order = [%s %s], want [first second]", got[0].CheckpointName, got[1].CheckpointName)
	}

	none, err := db.ListCheckpoints(ctx, "wf-missing")
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no checkpoints, got %d", len(none))
	}
}
