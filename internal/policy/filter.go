package policy

import "neuroflow/internal/types"

// Filter returns the tasks whose complexity does not exceed the ceiling,
// optionally including completed ones. Relative order is preserved and the
// input slice is never mutated.
//
// A ceiling outside [1,5] is clamped rather than rejected: the value is
// always policy-derived, and the filter must never crash the UI layer.
func Filter(tasks []types.Task, ceiling int, includeCompleted bool) []types.Task {
	if ceiling < 1 {
		ceiling = 1
	} else if ceiling > 5 {
		ceiling = 5
	}

	out := make([]types.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Complexity > ceiling {
			continue
		}
		if t.Completed && !includeCompleted {
			continue
		}
		out = append(out, t)
	}
	return out
}
