package agent

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/flowpilot-dev/flowpilot/internal/api"
	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

// Worker IDs in the default catalog.
const (
	WorkerDirector      models.WorkerID = "director"
	WorkerEmail         models.WorkerID = "email"
	WorkerCRM           models.WorkerID = "crm"
	WorkerCalendar      models.WorkerID = "calendar"
	WorkerMessaging     models.WorkerID = "messaging"
	WorkerData          models.WorkerID = "data"
	WorkerDataTransform models.WorkerID = "data-transform"
	WorkerSupervisor    models.WorkerID = "supervisor"
)

// ErrUnknownWorker is returned when a worker ID is not registered.
var ErrUnknownWorker = errors.New("unknown worker")

// TierDefaultModels maps tiers to their default Anthropic models.
var TierDefaultModels = api.DefaultTierModels(api.ProviderAnthropic)

// Registry is an immutable catalog of workers keyed by ID.
// It is built once at startup and shared read-only.
type Registry struct {
	workers map[models.WorkerID]models.Worker
	order   []models.WorkerID
}

// NewRegistry builds a registry from workers. Later entries with the same
// ID replace earlier ones, keeping the earlier position. The director and
// supervisor workers are required.
func NewRegistry(workers ...models.Worker) (*Registry, error) {
	r := &Registry{workers: make(map[models.WorkerID]models.Worker, len(workers))}
	for _, w := range workers {
		if w.ID == "" {
			return nil, errors.New("worker id is required")
		}
		if w.Tier != "" && !w.Tier.Valid() {
			return nil, fmt.Errorf("worker %s: invalid tier %q", w.ID, w.Tier)
		}
		if _, exists := r.workers[w.ID]; !exists {
			r.order = append(r.order, w.ID)
		}
		w.Capabilities = append([]string(nil), w.Capabilities...)
		r.workers[w.ID] = w
	}
	for _, required := range []models.WorkerID{WorkerDirector, WorkerSupervisor} {
		if _, ok := r.workers[required]; !ok {
			return nil, fmt.Errorf("registry requires a %q worker", required)
		}
	}
	return r, nil
}

// NewDefaultRegistry builds the default catalog. tierModels overrides the
// model used for each tier; missing tiers use TierDefaultModels.
func NewDefaultRegistry(tierModels map[models.Tier]string) (*Registry, error) {
	return NewRegistry(DefaultWorkers(tierModels)...)
}

// DefaultWorkers returns the built-in worker catalog.
func DefaultWorkers(tierModels map[models.Tier]string) []models.Worker {
	workers := []models.Worker{
		{
			ID:           WorkerDirector,
			Name:         "Director",
			Capabilities: []string{"general", "planning", "research"},
			Instructions: directorInstructions,
			Tier:         models.TierArchitect,
		},
		{
			ID:           WorkerEmail,
			Name:         "Email Specialist",
			Capabilities: []string{"email", "gmail", "outlook"},
			Instructions: emailInstructions,
			Tier:         models.TierBuilder,
		},
		{
			ID:           WorkerCRM,
			Name:         "CRM Specialist",
			Capabilities: []string{"crm", "salesforce", "hubspot", "contacts", "leads"},
			Instructions: crmInstructions,
			Tier:         models.TierBuilder,
		},
		{
			ID:           WorkerCalendar,
			Name:         "Calendar Specialist",
			Capabilities: []string{"calendar", "googlecalendar", "scheduling", "meetings"},
			Instructions: calendarInstructions,
			Tier:         models.TierBuilder,
		},
		{
			ID:           WorkerMessaging,
			Name:         "Messaging Specialist",
			Capabilities: []string{"messaging", "slack", "teams", "discord"},
			Instructions: messagingInstructions,
			Tier:         models.TierBuilder,
		},
		{
			ID:           WorkerData,
			Name:         "Data Specialist",
			Capabilities: []string{"data", "sheets", "airtable", "notion", "database"},
			Instructions: dataInstructions,
			Tier:         models.TierBuilder,
		},
		{
			ID:           WorkerDataTransform,
			Name:         "Data Transformer",
			Capabilities: []string{"transform", "format", "aggregate", "filter"},
			Instructions: dataTransformInstructions,
			Tier:         models.TierScout,
		},
		{
			ID:           WorkerSupervisor,
			Name:         "Supervisor",
			Capabilities: []string{"review"},
			Instructions: supervisorInstructions,
			Tier:         models.TierScout,
		},
	}
	for i := range workers {
		fillDefaults(&workers[i], tierModels)
	}
	return workers
}

// fillDefaults sets the model from the tier and the pricing from the model
// when they are unset.
func fillDefaults(w *models.Worker, tierModels map[models.Tier]string) {
	if w.Tier == "" {
		w.Tier = models.TierBuilder
	}
	if w.Model == "" {
		w.Model = tierModels[w.Tier]
	}
	if w.Model == "" {
		w.Model = TierDefaultModels[w.Tier]
	}
	if w.Pricing == (models.Pricing{}) {
		w.Pricing = api.PricingFor(w.Model)
	}
}

// Get returns the worker registered under id.
func (r *Registry) Get(id models.WorkerID) (models.Worker, bool) {
	w, ok := r.workers[id]
	if ok {
		w.Capabilities = append([]string(nil), w.Capabilities...)
	}
	return w, ok
}

// Lookup returns the worker registered under id or an error wrapping
// ErrUnknownWorker.
func (r *Registry) Lookup(id models.WorkerID) (models.Worker, error) {
	w, ok := r.Get(id)
	if !ok {
		return models.Worker{}, fmt.Errorf("%w: %s (registered: %s)", ErrUnknownWorker, id, joinIDs(r.IDs()))
	}
	return w, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id models.WorkerID) bool {
	_, ok := r.workers[id]
	return ok
}

// IDs returns the registered worker IDs in registration order.
func (r *Registry) IDs() []models.WorkerID {
	return append([]models.WorkerID(nil), r.order...)
}

func joinIDs(ids []models.WorkerID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}

// All returns every worker in registration order.
func (r *Registry) All() []models.Worker {
	all := make([]models.Worker, 0, len(r.order))
	for _, id := range r.order {
		w, _ := r.Get(id)
		all = append(all, w)
	}
	return all
}

// Len returns the number of registered workers.
func (r *Registry) Len() int {
	return len(r.order)
}

// workersFile is the on-disk format of a worker catalog extension.
type workersFile struct {
	Workers []models.Worker `yaml:"workers"`
}

// LoadWorkersFile reads additional worker definitions from a YAML file.
// Missing models and pricing are filled from tierModels and the pricing
// table.
func LoadWorkersFile(path string, tierModels map[models.Tier]string) ([]models.Worker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workers file: %w", err)
	}

	var f workersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse workers file %s: %w", path, err)
	}

	for i := range f.Workers {
		w := &f.Workers[i]
		if w.ID == "" {
			return nil, fmt.Errorf("workers file %s: entry %d has no id", path, i)
		}
		if w.Instructions == "" {
			return nil, fmt.Errorf("workers file %s: worker %s has no instructions", path, w.ID)
		}
		fillDefaults(w, tierModels)
	}
	return f.Workers, nil
}
