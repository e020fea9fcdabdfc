package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// blockingWriter records checkpoints and can be held to fill the queue.
type blockingWriter struct {
	mu      sync.Mutex
	written []string
	release chan struct{}
	err     error
}

func (w *blockingWriter) CreateCheckpoint(_ context.Context, cp *Checkpoint) error {
	if w.release != nil {
		<-w.release
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, cp.CheckpointName)
	return nil
}

func (w *blockingWriter) names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.written...)
}

func TestAsyncCheckpointer_DrainsOnClose(t *testing.T) {
	w := &blockingWriter{}
	a := NewAsyncCheckpointer(w, nil, 8)

	for _, name := range []string{"one", "two", "three"} {
		if !a.Enqueue(&Checkpoint{WorkflowID: "wf", CheckpointName: name}) {
			t.Fatalf("Enqueue(%s) rejected", name)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	got := w.names()
	if len(got) != 3 || got[0] != "one" || got[2] != "three" {
		t.Errorf("written = %v, want [one two three]", got)
	}
	written, failed, dropped := a.Stats()
	if written != 3 || failed != 0 || dropped != 0 {
		t.Errorf("Stats() = %d/%d/%d, want 3/0/0", written, failed, dropped)
	}
}

func TestAsyncCheckpointer_DropsWhenFull(t *testing.T) {
	w := &blockingWriter{release: make(chan struct{})}
	a := NewAsyncCheckpointer(w, nil, 1)

	// The writer holds the first checkpoint; the second fills the queue.
	a.Enqueue(&Checkpoint{WorkflowID: "wf", CheckpointName: "held"})
	deadline := time.Now().Add(2 * time.Second)
	for len(a.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !a.Enqueue(&Checkpoint{WorkflowID: "wf", CheckpointName: "queued"}) {
		t.Fatal("second Enqueue should fit in the queue")
	}

	start := time.Now()
	if a.Enqueue(&Checkpoint{WorkflowID: "wf", CheckpointName: "dropped"}) {
		t.Error("Enqueue on a full queue should be rejected")
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Enqueue blocked on a full queue")
	}

	close(w.release)
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, _, dropped := a.Stats(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestAsyncCheckpointer_FailuresAreCounted(t *testing.T) {
	w := &blockingWriter{err: errors.New("disk full")}
	a := NewAsyncCheckpointer(w, nil, 4)

	if err := a.CreateCheckpoint(context.Background(), &Checkpoint{WorkflowID: "wf", CheckpointName: "x"}); err != nil {
		t.Fatalf("CreateCheckpoint should never fail, got %v", err)
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, failed, _ := a.Stats(); failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
}

func TestAsyncCheckpointer_RejectsAfterClose(t *testing.T) {
	a := NewAsyncCheckpointer(&blockingWriter{}, nil, 4)
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if a.Enqueue(&Checkpoint{WorkflowID: "wf"}) {
		t.Error("Enqueue after Close should be rejected")
	}
	// Close is idempotent.
	if err := a.Close(context.Background()); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestAsyncCheckpointer_WritesToDB(t *testing.T) {
	db := setupTestDB(t)
	a := NewAsyncCheckpointer(db, nil, 4)
	a.Enqueue(&Checkpoint{WorkflowID: "wf", CheckpointName: "task_a_email", StateSnapshot: map[string]any{"ok": true}})
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	cps, err := db.ListCheckpoints(context.Background(), "wf")
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(cps) != 1 || cps[0].CheckpointName != "task_a_email" {
		t.Errorf("checkpoints = %+v", cps)
	}
}
