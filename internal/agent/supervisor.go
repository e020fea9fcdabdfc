package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	charmlog "github.com/charmbracelet/log"

	"github.com/flowpilot-dev/flowpilot/internal/api"
	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

// DefaultSupervisorMaxTokens is the output budget for a review.
const DefaultSupervisorMaxTokens = 500

// maxReviewedOutput bounds how much of a task's output is sent for review.
const maxReviewedOutput = 8000

// ReviewContext describes the task whose result is being reviewed.
type ReviewContext struct {
	TaskName       string
	ExpectedOutput string
	// PreviousAttempts is the number of attempts made before this one.
	PreviousAttempts int
}

// Review is the supervisor's verdict together with the usage of the
// review call itself.
type Review struct {
	Decision   models.SupervisorDecision
	TokensUsed int64
	CostUSD    float64
	// Fallback is true when Decision is a default rather than the model's answer.
	Fallback bool
	// FallbackReason explains why the default was used.
	FallbackReason string
}

// Supervisor reviews task results and decides what the coordinator does next.
type Supervisor struct {
	completer api.Completer
	worker    models.Worker
	maxTokens int
	logger    *charmlog.Logger
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithSupervisorMaxTokens sets the review output budget.
func WithSupervisorMaxTokens(n int) SupervisorOption {
	return func(s *Supervisor) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithSupervisorLogger sets the logger.
func WithSupervisorLogger(l *charmlog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSupervisor creates a Supervisor that reviews with worker's
// instructions and model.
func NewSupervisor(completer api.Completer, worker models.Worker, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		completer: completer,
		worker:    worker,
		maxTokens: DefaultSupervisorMaxTokens,
		logger:    charmlog.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Review asks the model to judge result. It always returns a usable
// decision:
//   - review call failed: continue if the task succeeded, skip otherwise
//   - answer unparseable: continue if the task succeeded, retry otherwise
func (s *Supervisor) Review(ctx context.Context, result models.TaskResult, rc ReviewContext) Review {
	completion := s.completer.Complete(ctx, api.Request{
		System:    s.worker.Instructions,
		Message:   BuildReviewMessage(result, rc),
		Model:     s.worker.Model,
		MaxTokens: s.maxTokens,
		Pricing:   s.worker.Pricing,
		Tier:      s.worker.Tier,
		TaskType:  api.TaskTypeReview,
	})

	review := Review{
		TokensUsed: completion.TokensUsed,
		CostUSD:    completion.CostUSD,
	}

	if !completion.OK() {
		review.Fallback = true
		review.FallbackReason = fmt.Sprintf("review call failed: %v", completion.Err)
		review.Decision = callFailureDecision(result.Success, review.FallbackReason)
		s.logger.Warn("supervisor review failed, using default", "task", rc.TaskName,
			"action", review.Decision.Action, "err", completion.Err)
		return review
	}

	parsed := ParseDecision(completion.Text)
	if !parsed.Ok() {
		review.Fallback = true
		review.FallbackReason = parsed.Reason
		review.Decision = parseFailureDecision(result.Success, parsed.Reason)
		s.logger.Warn("supervisor answer unparseable, using default", "task", rc.TaskName,
			"action", review.Decision.Action, "reason", parsed.Reason)
		return review
	}

	review.Decision = parsed.Decision
	return review
}

func callFailureDecision(taskSucceeded bool, reason string) models.SupervisorDecision {
	if taskSucceeded {
		return models.SupervisorDecision{Action: models.ActionContinue, Reason: reason}
	}
	return models.SupervisorDecision{Action: models.ActionSkip, Reason: reason}
}

func parseFailureDecision(taskSucceeded bool, reason string) models.SupervisorDecision {
	if taskSucceeded {
		return models.SupervisorDecision{Action: models.ActionContinue, Reason: reason}
	}
	return models.SupervisorDecision{Action: models.ActionRetry, Reason: reason}
}

// BuildReviewMessage renders the user message for a review.
func BuildReviewMessage(result models.TaskResult, rc ReviewContext) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## Task: %s\n\n", rc.TaskName)
	if rc.ExpectedOutput != "" {
		fmt.Fprintf(&sb, "## Expected Output\n\n%s\n\n", rc.ExpectedOutput)
	}
	fmt.Fprintf(&sb, "## Attempt\n\nWorker: %s\nPrevious attempts: %d\nSucceeded: %t\n\n",
		result.WorkerID, rc.PreviousAttempts, result.Success)

	if result.Error != "" {
		fmt.Fprintf(&sb, "## Error\n\n%s\n\n", result.Error)
	}

	output := result.Output
	if len(output) > maxReviewedOutput {
		output = truncateUTF8(output, maxReviewedOutput) + "\n...[truncated]"
	}
	if output != "" {
		fmt.Fprintf(&sb, "## Output\n\n%s\n\n", output)
	}

	sb.WriteString("Respond with the JSON decision object only.")
	return sb.String()
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ParseResult is the outcome of parsing a supervisor answer: either a
// decision, or the reason no decision could be read.
type ParseResult struct {
	Decision models.SupervisorDecision
	// Reason is set when parsing fell back.
	Reason string
	ok     bool
}

// Ok reports whether Decision was read from the answer.
func (p ParseResult) Ok() bool {
	return p.ok
}

func parsed(d models.SupervisorDecision) ParseResult {
	return ParseResult{Decision: d, ok: true}
}

func fallback(format string, args ...any) ParseResult {
	return ParseResult{Reason: fmt.Sprintf(format, args...)}
}

// rawDecision mirrors the JSON shape of a decision before validation.
type rawDecision struct {
	Action        *string        `json:"action"`
	Reason        string         `json:"reason"`
	NextAgentID   string         `json:"nextAgentId"`
	ModifiedInput map[string]any `json:"modifiedInput"`
}

// ParseDecision reads the first balanced JSON object in text that decodes
// and carries an action, and validates it as a decision. The action must be known,
// and escalate must name the next worker.
func ParseDecision(text string) ParseResult {
	candidates := jsonObjects(text)
	if len(candidates) == 0 {
		return fallback("no JSON object in supervisor answer")
	}

	for _, candidate := range candidates {
		var raw rawDecision
		if err := json.Unmarshal([]byte(candidate), &raw); err != nil || raw.Action == nil {
			continue
		}
		action := models.SupervisorAction(strings.ToLower(strings.TrimSpace(*raw.Action)))
		if !action.Valid() {
			return fallback("unknown action %q", *raw.Action)
		}
		next := models.WorkerID(strings.TrimSpace(raw.NextAgentID))
		if action == models.ActionEscalate && next == "" {
			return fallback("escalate without nextAgentId")
		}
		return parsed(models.SupervisorDecision{
			Action:        action,
			Reason:        raw.Reason,
			NextAgentID:   next,
			ModifiedInput: raw.ModifiedInput,
		})
	}
	return fallback("no decision object in supervisor answer")
}

// jsonObjects returns every balanced {...} span in text, in order of their
// opening brace. Braces inside JSON strings, including escaped quotes, are
// ignored. Spans do not overlap.
func jsonObjects(text string) []string {
	var objects []string
	for start := strings.IndexByte(text, '{'); start >= 0; {
		end := matchBrace(text, start)
		if end < 0 {
			// Unbalanced from here; try the next opening brace.
			next := strings.IndexByte(text[start+1:], '{')
			if next < 0 {
				break
			}
			start += next + 1
			continue
		}
		objects = append(objects, text[start:end+1])
		next := strings.IndexByte(text[end+1:], '{')
		if next < 0 {
			break
		}
		start = end + 1 + next
	}
	return objects
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
