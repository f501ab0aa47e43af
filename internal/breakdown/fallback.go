package breakdown

import (
	"fmt"
	"strings"
	"time"

	"neuroflow/internal/types"
	"neuroflow/internal/ux"
)

// defaultTotalMinutes is used when a task carries no estimate.
const defaultTotalMinutes = 30

// fallbackStep is a template entry: a title pattern and a relative weight
// used to apportion the task's total minutes.
type fallbackStep struct {
	title  string
	weight int
}

// Templates per adaptation tier. Low energy gets three short steps with an
// explicit rest in the middle; medium gets four balanced steps; high gets a
// planning step followed by three larger ones.
var fallbackTemplates = map[types.Tier][]fallbackStep{
	types.TierLow: {
		{title: "Start the smallest piece of \"%s\"", weight: 2},
		{title: "Pause and rest for a moment", weight: 1},
		{title: "Do one more small piece", weight: 2},
	},
	types.TierMedium: {
		{title: "Set up what you need for \"%s\"", weight: 1},
		{title: "Work through the first half", weight: 1},
		{title: "Work through the second half", weight: 1},
		{title: "Wrap up and check the result", weight: 1},
	},
	types.TierHigh: {
		{title: "Plan your approach to \"%s\"", weight: 1},
		{title: "Knock out the core of the work", weight: 3},
		{title: "Handle the remaining details", weight: 2},
		{title: "Review and finish strong", weight: 1},
	},
}

// Fallback deterministically synthesizes a breakdown from the tier template.
// Step minutes are scaled proportionally so they sum exactly to the task's
// estimate (or the default when absent). Fallback generation never touches
// the quota.
func Fallback(task *types.Task, adaptation types.AdaptationRecord) *types.Breakdown {
	template, ok := fallbackTemplates[adaptation.Tier]
	if !ok {
		template = fallbackTemplates[types.TierMedium]
	}

	total := task.EstimatedMinutes
	if total <= 0 {
		total = defaultTotalMinutes
	}

	weightSum := 0
	for _, s := range template {
		weightSum += s.weight
	}

	steps := make([]types.Step, len(template))
	assigned := 0
	for i, s := range template {
		minutes := total * s.weight / weightSum
		if minutes < 1 {
			minutes = 1
		}
		title := s.title
		if strings.Contains(title, "%s") {
			title = fmt.Sprintf(title, task.Title)
		}
		steps[i] = types.Step{Title: title, Minutes: minutes}
		assigned += minutes
	}
	// Rounding remainder lands on the last step so the sum is exact.
	if diff := total - assigned; diff != 0 {
		last := len(steps) - 1
		if steps[last].Minutes+diff >= 1 {
			steps[last].Minutes += diff
		}
	}

	return &types.Breakdown{
		Steps:         steps,
		TotalMinutes:  sumMinutes(steps),
		Adapted:       true,
		Source:        types.SourceFallback,
		Encouragement: ux.Encouragement(adaptation.Tone),
		CreatedAt:     time.Now(),
	}
}

func sumMinutes(steps []types.Step) int {
	total := 0
	for _, s := range steps {
		total += s.Minutes
	}
	return total
}
