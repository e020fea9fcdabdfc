package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/flowpilot-dev/flowpilot/internal/orchestrator"
	"github.com/flowpilot-dev/flowpilot/internal/tui"
	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

type runOutcome struct {
	res *models.RunResult
	err error
}

// runWithTUI runs the coordinator behind the live view. Quitting the view
// cancels the run; the result is still returned.
func runWithTUI(ctx context.Context, cancelRun context.CancelFunc, coord *orchestrator.Coordinator,
	emitter *orchestrator.EventEmitter, refresh time.Duration, workflowID string, tasks []*models.Task) (*models.RunResult, error) {
	infos := make([]tui.TaskInfo, len(tasks))
	for i, t := range tasks {
		infos[i] = tui.TaskInfo{ID: t.ID, Name: t.Name}
	}
	program, app := tui.NewRunProgram(workflowID, infos)
	app.SetRefreshRate(refresh)

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		forwardEventsToTUI(program, emitter.Events())
	}()

	runDone := make(chan runOutcome, 1)
	go func() {
		res, err := coord.ExecuteWorkflow(ctx, workflowID, tasks)
		emitter.Close()
		runDone <- runOutcome{res: res, err: err}
	}()

	tuiDone := make(chan error, 1)
	go func() {
		_, err := program.Run()
		tuiDone <- err
	}()

	select {
	case out := <-runDone:
		<-forwarded
		program.Send(tui.RunDoneMsg{Success: out.res.Success, Message: runSummaryLine(out.res)})
		// Keep the final state on screen until the user quits.
		if err := <-tuiDone; err != nil && out.err == nil {
			return out.res, fmt.Errorf("tui: %w", err)
		}
		return out.res, out.err

	case err := <-tuiDone:
		cancelRun()
		out := <-runDone
		if err != nil && out.err == nil {
			return out.res, fmt.Errorf("tui: %w", err)
		}
		return out.res, out.err
	}
}

// forwardEventsToTUI converts coordinator events to view messages until
// the event channel is closed.
func forwardEventsToTUI(program *tea.Program, events <-chan orchestrator.Event) {
	for event := range events {
		errStr := ""
		if event.Error != nil {
			errStr = event.Error.Error()
		}
		program.Send(tui.EventMsg{
			Type:       string(event.Type),
			TaskID:     event.TaskID,
			TaskName:   event.TaskName,
			WorkerID:   string(event.WorkerID),
			Attempt:    event.Attempt,
			Action:     string(event.Action),
			Message:    event.Message,
			Error:      errStr,
			Timestamp:  event.Timestamp,
			TokensUsed: event.TokensUsed,
			Cost:       event.Cost,
			Total:      event.Total,
		})
	}
}

func runSummaryLine(res *models.RunResult) string {
	return fmt.Sprintf("%d completed, %d failed", len(res.CompletedTasks), len(res.FailedTasks))
}
