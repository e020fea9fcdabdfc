package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TaskStatus is the display status of a task row.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusRetrying  TaskStatus = "retrying"
	StatusEscalated TaskStatus = "escalated"
	StatusCompleted TaskStatus = "completed"
	StatusSkipped   TaskStatus = "skipped"
	StatusFailed    TaskStatus = "failed"
)

// active reports whether the task is being worked on.
func (s TaskStatus) active() bool {
	return s == StatusRunning || s == StatusRetrying || s == StatusEscalated
}

// maxLogs bounds the activity log.
const maxLogs = 200

// TaskRow is the displayed state of one task.
type TaskRow struct {
	ID       string
	Name     string
	Status   TaskStatus
	WorkerID string
	Attempts int
	Note     string
}

// LogEntry is one line of the activity log.
type LogEntry struct {
	Timestamp time.Time
	Failed    bool
	Message   string
}

// RunApp is the bubbletea model for a coordinator run.
type RunApp struct {
	workflowID string
	rows       []*TaskRow
	byID       map[string]*TaskRow
	logs       []LogEntry

	tokens    int64
	cost      float64
	startedAt time.Time
	elapsed   time.Duration

	spinner  spinner.Model
	width    int
	height   int
	quitting bool
	done     bool
	success  bool
	message  string

	// Styles
	titleStyle     lipgloss.Style
	labelStyle     lipgloss.Style
	valueStyle     lipgloss.Style
	progressFull   lipgloss.Style
	progressEmpty  lipgloss.Style
	pendingStyle   lipgloss.Style
	runningStyle   lipgloss.Style
	completedStyle lipgloss.Style
	skippedStyle   lipgloss.Style
	failedStyle    lipgloss.Style
	timeStyle      lipgloss.Style
	hintStyle      lipgloss.Style
}

// NewRunApp creates a RunApp listing tasks as pending.
func NewRunApp(workflowID string, tasks []TaskInfo) *RunApp {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	a := &RunApp{
		workflowID: workflowID,
		byID:       make(map[string]*TaskRow, len(tasks)),
		startedAt:  time.Now(),
		spinner:    s,
		width:      80,
		height:     24,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),

		progressFull: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		progressEmpty: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		runningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")),

		completedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		skippedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),

		failedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		timeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
	for _, t := range tasks {
		a.row(t.ID, t.Name)
	}
	return a
}

// SetRefreshRate sets the spinner frame interval. Non-positive values keep
// the default.
func (a *RunApp) SetRefreshRate(d time.Duration) {
	if d > 0 {
		a.spinner.Spinner.FPS = d
	}
}

// row returns the row for id, adding it if the task was not announced.
func (a *RunApp) row(id, name string) *TaskRow {
	if r, ok := a.byID[id]; ok {
		if name != "" && r.Name == r.ID {
			r.Name = name
		}
		return r
	}
	if name == "" {
		name = id
	}
	r := &TaskRow{ID: id, Name: name, Status: StatusPending}
	a.rows = append(a.rows, r)
	a.byID[id] = r
	return r
}

// Init implements tea.Model.
func (a *RunApp) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update implements tea.Model.
func (a *RunApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case spinner.TickMsg:
		if a.done {
			return a, nil
		}
		a.elapsed = time.Since(a.startedAt)
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case EventMsg:
		a.handleEvent(msg)

	case RunDoneMsg:
		a.done = true
		a.success = msg.Success
		a.message = msg.Message
		a.elapsed = time.Since(a.startedAt)
	}

	return a, nil
}

// handleEvent applies a coordinator event to the rows and the log.
func (a *RunApp) handleEvent(e EventMsg) {
	if e.TokensUsed > a.tokens {
		a.tokens = e.TokensUsed
	}
	if e.Cost > a.cost {
		a.cost = e.Cost
	}

	switch e.Type {
	case EventRunStarted:
		a.log(e, false, fmt.Sprintf("run started with %d tasks", e.Total))
		return
	case EventRunDone:
		a.tokens, a.cost = e.TokensUsed, e.Cost
		return
	}
	if e.TaskID == "" {
		return
	}

	r := a.row(e.TaskID, e.TaskName)
	if e.WorkerID != "" {
		r.WorkerID = e.WorkerID
	}

	switch e.Type {
	case EventTaskStarted:
		r.Status = StatusRunning
		a.log(e, false, fmt.Sprintf("%s started on %s", r.ID, e.WorkerID))

	case EventAttemptFinished:
		r.Attempts = e.Attempt
		r.Note = e.Action
		if e.Action == "retry" {
			r.Status = StatusRetrying
		}
		a.log(e, false, fmt.Sprintf("%s attempt %d: %s %s", r.ID, e.Attempt, e.Action, e.Message))

	case EventTaskEscalated:
		r.Status = StatusEscalated
		r.Note = "escalated to " + e.WorkerID
		a.log(e, false, fmt.Sprintf("%s escalated to %s: %s", r.ID, e.WorkerID, e.Message))

	case EventTaskCompleted:
		r.Status = StatusCompleted
		if e.Message == "skipped" {
			r.Status = StatusSkipped
		}
		r.Note = e.Message
		a.log(e, false, fmt.Sprintf("%s %s", r.ID, r.Status))

	case EventTaskFailed:
		r.Status = StatusFailed
		r.Note = e.Error
		a.log(e, true, fmt.Sprintf("%s failed: %s", r.ID, e.Error))
	}
}

func (a *RunApp) log(e EventMsg, failed bool, message string) {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	a.logs = append(a.logs, LogEntry{Timestamp: ts, Failed: failed, Message: strings.TrimSpace(message)})
	if len(a.logs) > maxLogs {
		a.logs = a.logs[len(a.logs)-maxLogs:]
	}
}

// Rows returns the task rows in display order.
func (a *RunApp) Rows() []TaskRow {
	out := make([]TaskRow, len(a.rows))
	for i, r := range a.rows {
		out[i] = *r
	}
	return out
}

// Logs returns the activity log.
func (a *RunApp) Logs() []LogEntry {
	return append([]LogEntry(nil), a.logs...)
}

// Totals returns the latest token and cost totals.
func (a *RunApp) Totals() (int64, float64) {
	return a.tokens, a.cost
}

// Done reports whether the run has finished.
func (a *RunApp) Done() bool {
	return a.done
}

// counts tallies rows by progress. Failed tasks count as finished.
func (a *RunApp) counts() (finished, failed, running int) {
	for _, r := range a.rows {
		switch {
		case r.Status == StatusFailed:
			finished++
			failed++
		case r.Status == StatusCompleted || r.Status == StatusSkipped:
			finished++
		case r.Status.active():
			running++
		}
	}
	return finished, failed, running
}

// View implements tea.Model.
func (a *RunApp) View() string {
	if a.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(a.titleStyle.Render("flowpilot  " + a.workflowID))
	b.WriteString("\n\n")

	finished, failed, running := a.counts()
	pct := 0.0
	if len(a.rows) > 0 {
		pct = float64(finished) / float64(len(a.rows)) * 100
	}
	b.WriteString(a.renderProgressBar(pct, 30))
	fmt.Fprintf(&b, "  %s %s  %s %s\n\n",
		a.labelStyle.Render("running"), a.valueStyle.Render(fmt.Sprint(running)),
		a.labelStyle.Render("failed"), a.failedStyle.Render(fmt.Sprint(failed)))

	for _, r := range a.rows {
		b.WriteString(a.renderRow(r))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(a.renderLogs())
	b.WriteString("\n")
	b.WriteString(a.renderFooter())
	return b.String()
}

func (a *RunApp) statusIcon(s TaskStatus) string {
	switch s {
	case StatusCompleted:
		return a.completedStyle.Render("✓")
	case StatusSkipped:
		return a.skippedStyle.Render("↷")
	case StatusFailed:
		return a.failedStyle.Render("✗")
	case StatusPending:
		return a.pendingStyle.Render("·")
	default:
		return a.spinner.View()
	}
}

func (a *RunApp) renderRow(r *TaskRow) string {
	name := truncate(r.Name, 28)
	worker := r.WorkerID
	if worker == "" {
		worker = "-"
	}
	attempts := ""
	if r.Attempts > 0 {
		attempts = fmt.Sprintf("#%d", r.Attempts)
	}

	noteWidth := a.width - 60
	if noteWidth < 10 {
		noteWidth = 10
	}

	style := a.pendingStyle
	switch {
	case r.Status == StatusFailed:
		style = a.failedStyle
	case r.Status == StatusSkipped:
		style = a.skippedStyle
	case r.Status == StatusCompleted:
		style = a.completedStyle
	case r.Status.active():
		style = a.runningStyle
	}

	return fmt.Sprintf("%s %-28s %-15s %-10s %-4s %s",
		a.statusIcon(r.Status),
		name,
		worker,
		style.Render(fmt.Sprintf("%-10s", r.Status)),
		attempts,
		a.hintStyle.Render(truncate(r.Note, noteWidth)))
}

func (a *RunApp) renderLogs() string {
	var b strings.Builder
	b.WriteString(a.labelStyle.Render("Activity"))
	b.WriteString("\n")

	visible := a.height - len(a.rows) - 10
	if visible < 3 {
		visible = 3
	}
	start := len(a.logs) - visible
	if start < 0 {
		start = 0
	}
	for _, entry := range a.logs[start:] {
		msg := truncate(entry.Message, a.width-12)
		if entry.Failed {
			msg = a.failedStyle.Render(msg)
		}
		fmt.Fprintf(&b, "  %s %s\n", a.timeStyle.Render(entry.Timestamp.Format("15:04:05")), msg)
	}
	return b.String()
}

func (a *RunApp) renderFooter() string {
	totals := fmt.Sprintf("%s %s  %s %s  %s %s",
		a.labelStyle.Render("tokens"), a.valueStyle.Render(fmt.Sprint(a.tokens)),
		a.labelStyle.Render("cost"), a.valueStyle.Render(fmt.Sprintf("$%.4f", a.cost)),
		a.labelStyle.Render("elapsed"), a.valueStyle.Render(a.elapsed.Round(time.Second).String()))

	if !a.done {
		return totals + "\n" + a.hintStyle.Render("q: quit (cancels the run)")
	}

	status := a.completedStyle.Bold(true).Render("Run succeeded")
	if !a.success {
		status = a.failedStyle.Bold(true).Render("Run failed")
	}
	if a.message != "" {
		status += "  " + a.message
	}
	return totals + "\n" + status + "\n" + a.hintStyle.Render("q: exit")
}

// renderProgressBar renders a progress bar.
func (a *RunApp) renderProgressBar(pct float64, width int) string {
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}

	filled := int(pct / 100 * float64(width))
	empty := width - filled

	bar := a.progressFull.Render(strings.Repeat("█", filled)) +
		a.progressEmpty.Render(strings.Repeat("░", empty))

	return fmt.Sprintf("%s %3.0f%%", bar, pct)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if n <= 3 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// NewRunProgram creates a bubbletea program running a RunApp on the
// alternate screen.
func NewRunProgram(workflowID string, tasks []TaskInfo) (*tea.Program, *RunApp) {
	app := NewRunApp(workflowID, tasks)
	return tea.NewProgram(app, tea.WithAltScreen()), app
}
