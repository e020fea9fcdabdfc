package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/flowpilot-dev/flowpilot/internal/api"
	"github.com/flowpilot-dev/flowpilot/internal/api/apitest"
	"github.com/flowpilot-dev/flowpilot/internal/state"
	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

// recordingWriter captures checkpoints and can be told to fail.
type recordingWriter struct {
	mu  sync.Mutex
	cps []*state.Checkpoint
	err error
}

func (w *recordingWriter) CreateCheckpoint(_ context.Context, cp *state.Checkpoint) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cps = append(w.cps, cp)
	return w.err
}

func emailWorker(t *testing.T) models.Worker {
	t.Helper()
	r, err := NewDefaultRegistry(nil)
	if err != nil {
		t.Fatalf("NewDefaultRegistry() error = %v", err)
	}
	w, _ := r.Get(WorkerEmail)
	return w
}

func TestExecutor_Success(t *testing.T) {
	fake := &apitest.Fake{Handler: func(req api.Request) api.Completion {
		return apitest.Reply("Subject: Hello", 120, 0.0018)
	}}
	writer := &recordingWriter{}
	exec := NewExecutor(fake, WithCheckpoints(writer), WithExecutorMaxTokens(1000))
	worker := emailWorker(t)

	task := &models.Task{
		ID:          "draft",
		Name:        "Draft welcome email",
		Description: "Write a short welcome email.",
		Input:       map[string]any{"name": "Ada"},
	}
	result := exec.Execute(context.Background(), "wf-1", worker, task)

	if !result.Success || result.Output != "Subject: Hello" {
		t.Errorf("result = %+v", result)
	}
	if result.TokensUsed != 120 || result.CostUSD != 0.0018 {
		t.Errorf("usage = %d/%v, want 120/0.0018", result.TokensUsed, result.CostUSD)
	}
	if result.WorkerID != WorkerEmail {
		t.Errorf("WorkerID = %q, want email", result.WorkerID)
	}

	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	req := calls[0]
	if req.System != worker.Instructions || req.Model != worker.Model {
		t.Errorf("request did not use worker instructions/model: %+v", req)
	}
	if req.MaxTokens != 1000 {
		t.Errorf("MaxTokens = %d, want 1000", req.MaxTokens)
	}
	if req.TaskType != api.TaskTypeExecution {
		t.Errorf("TaskType = %q, want execution", req.TaskType)
	}
	if !strings.Contains(req.Message, "Write a short welcome email.") || !strings.Contains(req.Message, `"name": "Ada"`) {
		t.Errorf("message missing description or input:\n%s", req.Message)
	}

	if len(writer.cps) != 1 {
		t.Fatalf("got %d checkpoints, want 1", len(writer.cps))
	}
	cp := writer.cps[0]
	if cp.WorkflowID != "wf-1" || cp.CheckpointName != "task_draft_email" {
		t.Errorf("checkpoint = %s/%s", cp.WorkflowID, cp.CheckpointName)
	}
	if cp.TokensUsedInStep != 120 || cp.CostUSDInStep != 0.0018 {
		t.Errorf("checkpoint usage = %d/%v", cp.TokensUsedInStep, cp.CostUSDInStep)
	}
	if cp.StateSnapshot["output"] != "Subject: Hello" {
		t.Errorf("checkpoint snapshot = %v", cp.StateSnapshot)
	}
}

func TestExecutor_ProviderFailureBecomesResult(t *testing.T) {
	fake := &apitest.Fake{Handler: func(api.Request) api.Completion {
		return apitest.Fail("503 overloaded")
	}}
	writer := &recordingWriter{}
	exec := NewExecutor(fake, WithCheckpoints(writer))

	result := exec.Execute(context.Background(), "wf", emailWorker(t), &models.Task{ID: "t", Name: "t"})
	if result.Success {
		t.Error("expected failed result")
	}
	if result.Error != "503 overloaded" || result.Output != "" {
		t.Errorf("result = %+v", result)
	}
	if len(writer.cps) != 0 {
		t.Error("failed execution should not checkpoint")
	}
}

func TestExecutor_CheckpointFailureDoesNotFailTask(t *testing.T) {
	fake := &apitest.Fake{Handler: func(api.Request) api.Completion {
		return apitest.Reply("ok", 10, 0.0001)
	}}
	writer := &recordingWriter{err: errors.New("database is locked")}
	exec := NewExecutor(fake, WithCheckpoints(writer))

	result := exec.Execute(context.Background(), "wf", emailWorker(t), &models.Task{ID: "t", Name: "t"})
	if !result.Success {
		t.Errorf("checkpoint failure should not fail the task: %+v", result)
	}
}

func TestExecutor_DefaultMaxTokens(t *testing.T) {
	fake := &apitest.Fake{}
	NewExecutor(fake).Execute(context.Background(), "wf", emailWorker(t), &models.Task{ID: "t"})
	if got := fake.Calls()[0].MaxTokens; got != DefaultExecutorMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", got, DefaultExecutorMaxTokens)
	}
}

func TestExecutor_UnserializableInput(t *testing.T) {
	fake := &apitest.Fake{}
	exec := NewExecutor(fake)

	task := &models.Task{ID: "t", Input: map[string]any{"ch": make(chan int)}}
	result := exec.Execute(context.Background(), "wf", emailWorker(t), task)
	if result.Success || result.Error == "" {
		t.Errorf("expected failure for unserializable input, got %+v", result)
	}
	if len(fake.Calls()) != 0 {
		t.Error("capability should not be called when input cannot be serialized")
	}
}

func TestBuildTaskMessage(t *testing.T) {
	msg, err := BuildTaskMessage(&models.Task{
		Name:           "Sync contacts",
		Description:    "Copy new leads.",
		ExpectedOutput: "A list of ids",
	})
	if err != nil {
		t.Fatalf("BuildTaskMessage() error = %v", err)
	}
	for _, want := range []string{"## Task: Sync contacts", "Copy new leads.", "## Expected Output", "A list of ids"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "## Input") {
		t.Error("message should omit the input section when input is empty")
	}
}
