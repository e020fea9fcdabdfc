package agent

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/flowpilot-dev/flowpilot/internal/api"
	"github.com/flowpilot-dev/flowpilot/internal/api/apitest"
	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantOK     bool
		wantAction models.SupervisorAction
		wantNext   models.WorkerID
	}{
		{
			name:       "bare object",
			text:       `{"action": "continue", "reason": "looks good"}`,
			wantOK:     true,
			wantAction: models.ActionContinue,
		},
		{
			name:       "object inside prose and code fence",
			text:       "Here is my decision:\n```json\n{\"action\": \"retry\", \"reason\": \"missing subject\"}\n```\nThanks.",
			wantOK:     true,
			wantAction: models.ActionRetry,
		},
		{
			name:       "braces inside strings",
			text:       `{"action": "skip", "reason": "output was literally \"{\" and }"}`,
			wantOK:     true,
			wantAction: models.ActionSkip,
		},
		{
			name:       "nested modified input",
			text:       `{"action":"retry","reason":"r","modifiedInput":{"filters":{"status":"open"}}}`,
			wantOK:     true,
			wantAction: models.ActionRetry,
		},
		{
			name:       "escalate with next agent",
			text:       `{"action": "escalate", "reason": "needs email", "nextAgentId": "email"}`,
			wantOK:     true,
			wantAction: models.ActionEscalate,
			wantNext:   WorkerEmail,
		},
		{
			name:       "action is case-insensitive",
			text:       `{"action": " ABORT ", "reason": "bad"}`,
			wantOK:     true,
			wantAction: models.ActionAbort,
		},
		{
			name:       "skips non-JSON brace span",
			text:       `Checked {placeholder} then decided {"action": "continue", "reason": "fine"}`,
			wantOK:     true,
			wantAction: models.ActionContinue,
		},
		{
			name:   "garbage",
			text:   "I think it is fine!!",
			wantOK: false,
		},
		{
			name:   "unbalanced",
			text:   `{"action": "continue"`,
			wantOK: false,
		},
		{
			name:   "unknown action",
			text:   `{"action": "celebrate"}`,
			wantOK: false,
		},
		{
			name:   "escalate without next agent",
			text:   `{"action": "escalate", "reason": "someone else"}`,
			wantOK: false,
		},
		{
			name:   "object without action",
			text:   `{"reason": "no verdict"}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDecision(tt.text)
			if got.Ok() != tt.wantOK {
				t.Fatalf("Ok() = %v, want %v (reason %q)", got.Ok(), tt.wantOK, got.Reason)
			}
			if !tt.wantOK {
				if got.Reason == "" {
					t.Error("fallback should carry a reason")
				}
				return
			}
			if got.Decision.Action != tt.wantAction {
				t.Errorf("Action = %q, want %q", got.Decision.Action, tt.wantAction)
			}
			if got.Decision.NextAgentID != tt.wantNext {
				t.Errorf("NextAgentID = %q, want %q", got.Decision.NextAgentID, tt.wantNext)
			}
		})
	}
}

func TestParseDecision_ModifiedInput(t *testing.T) {
	got := ParseDecision(`{"action":"retry","reason":"r","modifiedInput":{"limit":10}}`)
	if !got.Ok() {
		t.Fatalf("unexpected fallback: %s", got.Reason)
	}
	if got.Decision.ModifiedInput["limit"] != float64(10) {
		t.Errorf("ModifiedInput = %v", got.Decision.ModifiedInput)
	}
}

func supervisorWorker(t *testing.T) models.Worker {
	t.Helper()
	r, err := NewDefaultRegistry(nil)
	if err != nil {
		t.Fatalf("NewDefaultRegistry() error = %v", err)
	}
	w, _ := r.Get(WorkerSupervisor)
	return w
}

func TestSupervisor_Review(t *testing.T) {
	tests := []struct {
		name         string
		reply        api.Completion
		taskSuccess  bool
		wantAction   models.SupervisorAction
		wantFallback bool
	}{
		{"parsed decision", apitest.Reply(`{"action":"abort","reason":"wrong account"}`, 40, 0.0002), true, models.ActionAbort, false},
		{"unparseable after success", apitest.Reply("garbage", 40, 0.0002), true, models.ActionContinue, true},
		{"unparseable after failure", apitest.Reply("garbage", 40, 0.0002), false, models.ActionRetry, true},
		{"call failure after success", apitest.Fail("timeout"), true, models.ActionContinue, true},
		{"call failure after failure", apitest.Fail("timeout"), false, models.ActionSkip, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &apitest.Fake{Handler: func(api.Request) api.Completion { return tt.reply }}
			sup := NewSupervisor(fake, supervisorWorker(t))

			review := sup.Review(context.Background(),
				models.TaskResult{Success: tt.taskSuccess, Output: "out", WorkerID: WorkerEmail},
				ReviewContext{TaskName: "Send invoice", ExpectedOutput: "an invoice id", PreviousAttempts: 1})

			if review.Decision.Action != tt.wantAction {
				t.Errorf("Action = %q, want %q", review.Decision.Action, tt.wantAction)
			}
			if review.Fallback != tt.wantFallback {
				t.Errorf("Fallback = %v, want %v", review.Fallback, tt.wantFallback)
			}
			if tt.wantFallback && review.FallbackReason == "" {
				t.Error("fallback should carry a reason")
			}
			if review.TokensUsed != tt.reply.TokensUsed || review.CostUSD != tt.reply.CostUSD {
				t.Errorf("review usage = %d/%v, want %d/%v", review.TokensUsed, review.CostUSD, tt.reply.TokensUsed, tt.reply.CostUSD)
			}
		})
	}
}

func TestSupervisor_RequestShape(t *testing.T) {
	fake := &apitest.Fake{Handler: func(api.Request) api.Completion {
		return apitest.Reply(`{"action":"continue","reason":"ok"}`, 5, 0)
	}}
	worker := supervisorWorker(t)
	sup := NewSupervisor(fake, worker, WithSupervisorMaxTokens(300))

	sup.Review(context.Background(),
		models.TaskResult{Success: false, Error: "quota exceeded", WorkerID: WorkerCRM},
		ReviewContext{TaskName: "Update lead", ExpectedOutput: "lead id", PreviousAttempts: 2})

	req := fake.Calls()[0]
	if req.MaxTokens != 300 {
		t.Errorf("MaxTokens = %d, want 300", req.MaxTokens)
	}
	if req.TaskType != api.TaskTypeReview || req.Model != worker.Model || req.System != worker.Instructions {
		t.Errorf("request = %+v", req)
	}
	for _, want := range []string{"Update lead", "lead id", "Previous attempts: 2", "quota exceeded", "crm"} {
		if !strings.Contains(req.Message, want) {
			t.Errorf("review message missing %q:\n%s", want, req.Message)
		}
	}
}

func TestBuildReviewMessage_TruncatesLongOutput(t *testing.T) {
	long := strings.Repeat("x", maxReviewedOutput+100)
	msg := BuildReviewMessage(models.TaskResult{Success: true, Output: long}, ReviewContext{TaskName: "t"})
	if !strings.Contains(msg, "[truncated]") {
		t.Error("long output should be truncated")
	}
	if strings.Contains(msg, long) {
		t.Error("full output should not be included")
	}
}

func TestBuildReviewMessage_TruncatesOnRuneBoundary(t *testing.T) {
	// One ASCII byte shifts every 3-byte rune across the cut.
	long := "x" + strings.Repeat("界", maxReviewedOutput)
	msg := BuildReviewMessage(models.TaskResult{Success: true, Output: long}, ReviewContext{TaskName: "t"})
	if !utf8.ValidString(msg) {
		t.Error("review message is not valid UTF-8")
	}
	if !strings.Contains(msg, "界\n...[truncated]") {
		t.Error("truncated output should end on a whole rune")
	}
}

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		name string
		s    string
		n    int
		want string
	}{
		{"short", "abc", 5, "abc"},
		{"ascii", "abcdef", 3, "abc"},
		{"cut inside rune", "aé", 2, "a"},
		{"cut after rune", "aéb", 3, "aé"},
		{"cut inside first rune", "€", 2, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateUTF8(tt.s, tt.n); got != tt.want {
				t.Errorf("truncateUTF8(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.want)
			}
		})
	}
}
