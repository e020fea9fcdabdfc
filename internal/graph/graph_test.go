package graph

import (
	"errors"
	"reflect"
	"testing"

	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

func ids(tasks []*models.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestOrder_DependenciesFirst(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*models.Task
		want  []string
	}{
		{
			name:  "empty batch",
			tasks: nil,
			want:  []string{},
		},
		{
			name: "independent tasks keep input order",
			tasks: []*models.Task{
				{ID: "c"}, {ID: "a"}, {ID: "b"},
			},
			want: []string{"c", "a", "b"},
		},
		{
			name: "dependency declared after dependent",
			tasks: []*models.Task{
				{ID: "send", DependsOn: []string{"draft"}},
				{ID: "draft"},
			},
			want: []string{"draft", "send"},
		},
		{
			name: "fan out",
			tasks: []*models.Task{
				{ID: "A"},
				{ID: "B", DependsOn: []string{"A"}},
				{ID: "C", DependsOn: []string{"A"}},
			},
			want: []string{"A", "B", "C"},
		},
		{
			name: "diamond visits dependencies in declared order",
			tasks: []*models.Task{
				{ID: "report", DependsOn: []string{"crm", "calendar"}},
				{ID: "calendar", DependsOn: []string{"fetch"}},
				{ID: "crm", DependsOn: []string{"fetch"}},
				{ID: "fetch"},
			},
			want: []string{"fetch", "crm", "calendar", "report"},
		},
		{
			name: "external dependency is ignored for ordering",
			tasks: []*models.Task{
				{ID: "a", DependsOn: []string{"missing"}},
				{ID: "b"},
			},
			want: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Order(tt.tasks)
			if err != nil {
				t.Fatalf("Order() error = %v", err)
			}
			if !reflect.DeepEqual(ids(got), tt.want) {
				t.Errorf("Order() = %v, want %v", ids(got), tt.want)
			}
		})
	}
}

func TestOrder_EveryTaskAfterItsDependencies(t *testing.T) {
	tasks := []*models.Task{
		{ID: "t5", DependsOn: []string{"t4", "t1"}},
		{ID: "t4", DependsOn: []string{"t3"}},
		{ID: "t3", DependsOn: []string{"t2", "t1"}},
		{ID: "t2", DependsOn: []string{"t1"}},
		{ID: "t1"},
		{ID: "t6", DependsOn: []string{"t2"}},
	}

	got, err := Order(tasks)
	if err != nil {
		t.Fatalf("Order() error = %v", err)
	}
	if len(got) != len(tasks) {
		t.Fatalf("Order() returned %d tasks, want %d", len(got), len(tasks))
	}

	pos := make(map[string]int)
	for i, task := range got {
		pos[task.ID] = i
	}
	for _, task := range tasks {
		for _, dep := range task.DependsOn {
			if pos[dep] >= pos[task.ID] {
				t.Errorf("task %s at %d does not follow dependency %s at %d", task.ID, pos[task.ID], dep, pos[dep])
			}
		}
	}
}

func TestOrder_CycleDetected(t *testing.T) {
	tasks := []*models.Task{
		{ID: "a", DependsOn: []string{"c"}},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"b"}},
	}

	_, err := Order(tasks)
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}

	var cycErr *CyclicDependencyError
	if !errors.As(err, &cycErr) {
		t.Fatalf("expected *CyclicDependencyError, got %T", err)
	}
	if len(cycErr.Cycle) != 4 {
		t.Errorf("expected cycle of 3 tasks plus closing node, got %v", cycErr.Cycle)
	}
	if cycErr.Cycle[0] != cycErr.Cycle[len(cycErr.Cycle)-1] {
		t.Errorf("cycle should start and end at the same task: %v", cycErr.Cycle)
	}
}

func TestOrder_SelfDependency(t *testing.T) {
	_, err := Order([]*models.Task{{ID: "a", DependsOn: []string{"a"}}})
	if !errors.Is(err, ErrCycleDetected) {
		t.Errorf("expected ErrCycleDetected for self dependency, got %v", err)
	}
}

func TestOrder_DuplicateID(t *testing.T) {
	_, err := Order([]*models.Task{{ID: "a"}, {ID: "a"}})
	if !errors.Is(err, ErrDuplicateTask) {
		t.Errorf("expected ErrDuplicateTask, got %v", err)
	}
}

func TestReady(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "A"},
		{ID: "B", DependsOn: []string{"A"}},
		{ID: "C", DependsOn: []string{"A", "B"}},
		{ID: "D", DependsOn: []string{"external"}},
	}
	if err := g.Build(tasks); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if got := g.Ready(map[string]bool{}); !reflect.DeepEqual(got, []string{"A", "D"}) {
		t.Errorf("Ready(none) = %v, want [A D]", got)
	}
	if got := g.Ready(map[string]bool{"A": true, "D": true}); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("Ready(A,D) = %v, want [B]", got)
	}
	if got := g.GetExternalDependencies("D"); !reflect.DeepEqual(got, []string{"external"}) {
		t.Errorf("GetExternalDependencies(D) = %v", got)
	}
	if got := g.GetDependencies("C"); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("GetDependencies(C) = %v, want [A B]", got)
	}
	if got := g.GetDependencies("D"); len(got) != 0 {
		t.Errorf("GetDependencies(D) = %v, want none", got)
	}
	if got := g.GetDependents("A"); !reflect.DeepEqual(got, []string{"B", "C"}) {
		t.Errorf("GetDependents(A) = %v, want [B C]", got)
	}
}
