package agent

import (
	"strings"

	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

// integrationWorkers maps integration and category tags to workers.
var integrationWorkers = map[string]models.WorkerID{
	"gmail":          WorkerEmail,
	"outlook":        WorkerEmail,
	"email":          WorkerEmail,
	"salesforce":     WorkerCRM,
	"hubspot":        WorkerCRM,
	"crm":            WorkerCRM,
	"googlecalendar": WorkerCalendar,
	"calendar":       WorkerCalendar,
	"slack":          WorkerMessaging,
	"teams":          WorkerMessaging,
	"discord":        WorkerMessaging,
	"messaging":      WorkerMessaging,
	"sheets":         WorkerData,
	"googlesheets":   WorkerData,
	"airtable":       WorkerData,
	"notion":         WorkerData,
	"data":           WorkerData,
}

// Router selects the worker for a task from a static decision table.
type Router struct {
	registry *Registry
}

// NewRouter creates a router over registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Route returns the worker for task:
//  1. task.Agent, when it names a registered worker other than the
//     supervisor
//  2. the worker mapped from task.Integration (case-insensitive), or the
//     first registered worker listing the integration as a capability
//  3. the data-transform worker for tasks of type "transform"
//  4. the director
func (r *Router) Route(task *models.Task) models.WorkerID {
	if task.Agent != "" {
		if id := models.WorkerID(task.Agent); id != WorkerSupervisor && r.registry.Has(id) {
			return id
		}
	}

	if integration := normalizeTag(task.Integration); integration != "" {
		if id, ok := integrationWorkers[integration]; ok && r.registry.Has(id) {
			return id
		}
		for _, w := range r.registry.All() {
			if w.ID != WorkerSupervisor && w.Handles(integration) {
				return w.ID
			}
		}
	}

	if strings.EqualFold(task.Type, models.TaskTypeTransform) && r.registry.Has(WorkerDataTransform) {
		return WorkerDataTransform
	}

	return WorkerDirector
}

// normalizeTag lowercases a tag and drops spaces, dashes and underscores so
// that "Google Calendar" and "google_calendar" both match "googlecalendar".
func normalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(tag)
}

// WithPreviousOutputs returns a copy of task whose input carries outputs
// under the previousOutputs key. The task is returned unchanged when outputs
// is empty.
func WithPreviousOutputs(task *models.Task, outputs map[string]any) *models.Task {
	if len(outputs) == 0 {
		return task
	}
	snapshot := make(map[string]any, len(outputs))
	for k, v := range outputs {
		snapshot[k] = v
	}
	return task.WithInput(models.InputKeyPreviousOutputs, snapshot)
}
