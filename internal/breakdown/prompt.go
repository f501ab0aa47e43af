package breakdown

import (
	"fmt"
	"strings"

	"neuroflow/internal/types"
)

// promptTemplate asks for strict JSON so parsing stays mechanical. The tone
// cue shapes the wording of the step titles the model produces; the ceiling
// cue keeps individual steps below what the user can currently take on.
const promptTemplate = `You help people with limited energy break tasks into small, doable steps.

Task: %s%s

Write %s steps to complete this task. Rules:
- Between 3 and 6 steps.
- Each step gets an estimated time in minutes.
- Step times should add up to roughly %d minutes total.
- Keep each step at or below a %d-out-of-5 difficulty.
- %s

Respond with only a JSON object in this exact shape, no other text:
{"steps": [{"title": "...", "minutes": 10}]}`

// toneCues phrase the instruction the way the user should be spoken to.
var toneCues = map[types.Tone]string{
	types.ToneGentle:    "Use soft, reassuring wording. Small steps, no pressure, rest is allowed.",
	types.ToneStandard:  "Use clear, neutral wording.",
	types.ToneEnergetic: "Use brisk, motivating wording that keeps momentum up.",
}

// stepCountHint nudges the model toward fewer steps when the user is
// running low.
var stepCountHint = map[types.Tier]string{
	types.TierLow:    "3 or 4",
	types.TierMedium: "4 or 5",
	types.TierHigh:   "4 to 6",
}

// BuildPrompt assembles the provider prompt for a task under the given
// adaptation record.
func BuildPrompt(task *types.Task, adaptation types.AdaptationRecord) string {
	minutes := task.EstimatedMinutes
	if minutes <= 0 {
		minutes = defaultTotalMinutes
	}

	var desc string
	if strings.TrimSpace(task.Description) != "" {
		desc = fmt.Sprintf("\nDetails: %s", task.Description)
	}

	cue := toneCues[adaptation.Tone]
	if cue == "" {
		cue = toneCues[types.ToneStandard]
	}
	count := stepCountHint[adaptation.Tier]
	if count == "" {
		count = stepCountHint[types.TierMedium]
	}

	return fmt.Sprintf(promptTemplate,
		task.Title, desc, count, minutes, adaptation.ComplexityCeiling, cue)
}
