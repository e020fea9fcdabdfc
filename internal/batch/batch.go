// Package batch loads task batches from YAML or JSON files.
package batch

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

// ErrInvalidBatch is returned when a batch file decodes but is not usable.
var ErrInvalidBatch = errors.New("invalid batch")

// Batch is a set of tasks submitted together.
type Batch struct {
	// WorkflowID is optional; the CLI generates one when empty.
	WorkflowID string
	Tasks      []*models.Task
}

// file is the document form: either this mapping or a bare task list.
type file struct {
	WorkflowID string    `yaml:"workflow_id"`
	Tasks      []rawTask `yaml:"tasks"`
}

// rawTask accepts both snake_case and camelCase keys for the fields that
// have two spellings.
type rawTask struct {
	ID                  string         `yaml:"id"`
	Name                string         `yaml:"name"`
	Description         string         `yaml:"description"`
	Integration         string         `yaml:"integration"`
	Type                string         `yaml:"type"`
	Agent               string         `yaml:"agent"`
	Input               map[string]any `yaml:"input"`
	DependsOn           []string       `yaml:"depends_on"`
	DependsOnCamel      []string       `yaml:"dependsOn"`
	ExpectedOutput      string         `yaml:"expected_output"`
	ExpectedOutputCamel string         `yaml:"expectedOutput"`
}

func (r rawTask) task() *models.Task {
	t := &models.Task{
		ID:             strings.TrimSpace(r.ID),
		Name:           r.Name,
		Description:    r.Description,
		Integration:    r.Integration,
		Type:           r.Type,
		Agent:          r.Agent,
		Input:          r.Input,
		DependsOn:      append(r.DependsOn, r.DependsOnCamel...),
		ExpectedOutput: r.ExpectedOutput,
	}
	if t.ExpectedOutput == "" {
		t.ExpectedOutput = r.ExpectedOutputCamel
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	return t
}

// Load reads and parses a batch file.
func Load(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Parse decodes a batch document. JSON input is accepted since it is
// valid YAML.
func Parse(data []byte) (*Batch, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse batch: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidBatch)
	}

	var f file
	switch doc := root.Content[0]; doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&f.Tasks); err != nil {
			return nil, fmt.Errorf("parse batch: %w", err)
		}
	case yaml.MappingNode:
		if err := doc.Decode(&f); err != nil {
			return nil, fmt.Errorf("parse batch: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: expected a task list or a mapping with tasks", ErrInvalidBatch)
	}

	b := &Batch{WorkflowID: f.WorkflowID, Tasks: make([]*models.Task, 0, len(f.Tasks))}
	for _, r := range f.Tasks {
		b.Tasks = append(b.Tasks, r.task())
	}
	if err := Validate(b.Tasks); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks that every task has a unique, non-empty ID and that its
// input can be rendered as JSON. Nested maps with non-string keys are
// rewritten in place to string keys. Dependency cycles are left to the
// coordinator.
func Validate(tasks []*models.Task) error {
	if len(tasks) == 0 {
		return fmt.Errorf("%w: no tasks", ErrInvalidBatch)
	}
	seen := make(map[string]bool, len(tasks))
	var problems []string
	for i, t := range tasks {
		switch {
		case t.ID == "":
			problems = append(problems, fmt.Sprintf("task %d has no id", i+1))
		case seen[t.ID]:
			problems = append(problems, fmt.Sprintf("duplicate task id %q", t.ID))
		}
		seen[t.ID] = true

		if t.Input != nil {
			in, err := jsonValue("input", t.Input)
			if err != nil {
				problems = append(problems, fmt.Sprintf("task %q: %v", t.ID, err))
				continue
			}
			t.Input = in.(map[string]any)
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidBatch, strings.Join(problems, "; "))
	}
	return nil
}

// jsonValue returns v with every map[any]any, which YAML produces for
// mappings with non-string keys such as `1: one`, replaced by a
// map[string]any. path names v in errors.
func jsonValue(path string, v any) (any, error) {
	switch v := v.(type) {
	case map[string]any:
		for k, e := range v {
			n, err := jsonValue(path+"."+k, e)
			if err != nil {
				return nil, err
			}
			v[k] = n
		}
		return v, nil
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			if k == nil {
				return nil, fmt.Errorf("%s has a null key", path)
			}
			key := fmt.Sprint(k)
			if _, dup := out[key]; dup {
				return nil, fmt.Errorf("%s has duplicate key %q", path, key)
			}
			n, err := jsonValue(path+"."+key, e)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []any:
		for i, e := range v {
			n, err := jsonValue(fmt.Sprintf("%s[%d]", path, i), e)
			if err != nil {
				return nil, err
			}
			v[i] = n
		}
		return v, nil
	}
	return v, nil
}
