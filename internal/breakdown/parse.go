package breakdown

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"neuroflow/internal/types"
)

// Step count bounds for an AI-produced breakdown.
const (
	minSteps = 3
	maxSteps = 6
)

type aiResponse struct {
	Steps []aiStep `json:"steps"`
}

type aiStep struct {
	Title   string `json:"title"`
	Minutes int    `json:"minutes"`
}

// parseResponse turns the raw provider text into a Breakdown, rejecting
// anything outside the 3-6 step contract. Providers wrap JSON in markdown
// fences often enough that stripping them here is cheaper than re-prompting.
func parseResponse(raw, model string) (*types.Breakdown, error) {
	body := stripFences(raw)

	var resp aiResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	if len(resp.Steps) < minSteps || len(resp.Steps) > maxSteps {
		return nil, fmt.Errorf("expected %d-%d steps, got %d", minSteps, maxSteps, len(resp.Steps))
	}

	steps := make([]types.Step, 0, len(resp.Steps))
	total := 0
	for i, s := range resp.Steps {
		title := strings.TrimSpace(s.Title)
		if title == "" {
			return nil, fmt.Errorf("step %d has no title", i+1)
		}
		if s.Minutes <= 0 {
			return nil, fmt.Errorf("step %d has non-positive minutes", i+1)
		}
		steps = append(steps, types.Step{Title: title, Minutes: s.Minutes})
		total += s.Minutes
	}

	return &types.Breakdown{
		Steps:        steps,
		TotalMinutes: total,
		Adapted:      true,
		Source:       types.SourceAI,
		Model:        model,
		CreatedAt:    time.Now(),
	}, nil
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(raw string) string {
	body := strings.TrimSpace(raw)
	if !strings.HasPrefix(body, "```") {
		return body
	}
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}
