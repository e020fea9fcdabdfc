// Package tui provides the live terminal view of a coordinator run.
//
// The view is read-only. It shows every task of the batch with its status,
// the worker handling it and the attempts made, a short activity log, and
// the run's token and cost totals. Users can only quit with 'q' or Ctrl+C.
//
// Usage:
//
//	program, app := tui.NewRunProgram("weekly-report", tasks)
//	go program.Run()
//
//	// Forward coordinator events
//	program.Send(tui.EventMsg{Type: "task_started", TaskID: "fetch"})
//
//	// Signal completion
//	program.Send(tui.RunDoneMsg{Success: true})
package tui
