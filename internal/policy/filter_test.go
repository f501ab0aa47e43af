package policy

import (
	"testing"

	"neuroflow/internal/types"
)

func task(id string, complexity int, completed bool) types.Task {
	return types.Task{ID: id, Title: id, Complexity: complexity, Completed: completed}
}

func ids(tasks []types.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestFilterByCeiling(t *testing.T) {
	tasks := []types.Task{
		task("a", 1, false),
		task("b", 4, false),
		task("c", 2, false),
		task("d", 5, false),
	}

	got := Filter(tasks, 2, false)
	want := []string{"a", "c"}
	if len(got) != len(want) {
		t.Fatalf("Filter returned %v, want %v", ids(got), want)
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("Filter order = %v, want %v", ids(got), want)
		}
	}
}

func TestFilterExcludesCompletedByDefault(t *testing.T) {
	tasks := []types.Task{
		task("a", 1, true),
		task("b", 1, false),
	}
	got := Filter(tasks, 5, false)
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("Filter = %v, want [b]", ids(got))
	}

	got = Filter(tasks, 5, true)
	if len(got) != 2 {
		t.Fatalf("Filter with includeCompleted = %v, want [a b]", ids(got))
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	tasks := []types.Task{
		task("z", 3, false),
		task("a", 1, false),
		task("m", 2, false),
	}
	got := Filter(tasks, 3, false)
	want := []string{"z", "a", "m"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("order = %v, want %v", ids(got), want)
		}
	}
}

func TestFilterEmptyInput(t *testing.T) {
	got := Filter(nil, 3, false)
	if len(got) != 0 {
		t.Fatalf("Filter(nil) = %v, want empty", got)
	}
}

func TestFilterClampsCeiling(t *testing.T) {
	tasks := []types.Task{
		task("a", 1, false),
		task("b", 5, false),
	}

	// Below range clamps to 1.
	got := Filter(tasks, 0, false)
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("Filter(ceiling=0) = %v, want [a]", ids(got))
	}

	// Above range clamps to 5.
	got = Filter(tasks, 99, false)
	if len(got) != 2 {
		t.Fatalf("Filter(ceiling=99) = %v, want both", ids(got))
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	tasks := []types.Task{task("a", 5, false), task("b", 1, false)}
	_ = Filter(tasks, 1, false)
	if tasks[0].ID != "a" || tasks[1].ID != "b" {
		t.Fatalf("input slice mutated: %v", ids(tasks))
	}
}
